package core

import (
	"errors"
	"fmt"
	"strconv"

	. "github.com/stevegt/goadapt"
)

// Persister loads and saves the whole conversation store.  names[i]
// must belong to convs[i].
type Persister interface {
	// Exists reports whether a store has been initialized.
	Exists() (bool, error)
	// Init creates an empty store.
	Init() error
	Load() (names []string, convs []*Conversation, err error)
	Save(names []string, convs []*Conversation) error
}

// Store is the list of persisted conversations.  Every read loads the
// whole store and every write rewrites it.  Nothing guards the span
// between a load and the following save, so two concurrent
// invocations can lose an update.
type Store struct {
	p Persister
}

// OpenStore returns a store backed by p, initializing an empty store
// on first run.
func OpenStore(p Persister) (s *Store, err error) {
	ok, err := p.Exists()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreadable, err)
	}
	if !ok {
		Debug("initializing empty conversation store")
		err = p.Init()
		if err != nil {
			return nil, err
		}
	}
	return &Store{p: p}, nil
}

func (s *Store) load() (names []string, convs []*Conversation, err error) {
	names, convs, err = s.p.Load()
	if err != nil {
		if !errors.Is(err, ErrStoreCorrupt) && !errors.Is(err, ErrStoreUnreadable) {
			err = fmt.Errorf("%w: %v", ErrStoreUnreadable, err)
		}
		return nil, nil, err
	}
	if len(names) != len(convs) {
		return nil, nil, fmt.Errorf("%w: %d names but %d conversations", ErrStoreCorrupt, len(names), len(convs))
	}
	for i, c := range convs {
		if c == nil || c.Name() != names[i] {
			return nil, nil, fmt.Errorf("%w: name %q at index %d does not match its conversation", ErrStoreCorrupt, names[i], i)
		}
	}
	return
}

// Names returns the conversation names in order.
func (s *Store) Names() (names []string, err error) {
	names, _, err = s.load()
	return
}

// Conversations returns all conversations in order.
func (s *Store) Conversations() (convs []*Conversation, err error) {
	_, convs, err = s.load()
	return
}

// Len returns the number of conversations.
func (s *Store) Len() (n int, err error) {
	names, _, err := s.load()
	return len(names), err
}

// NextName returns the name for the next new conversation: the
// current count in decimal.
func (s *Store) NextName() (name string, err error) {
	n, err := s.Len()
	if err != nil {
		return
	}
	return strconv.Itoa(n), nil
}

func taken(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// resolve maps a possibly negative index to a position; -1 is the most
// recent conversation.
func resolve(index, n int) (i int, err error) {
	i = index
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("%w: index %d of %d", ErrNoConversation, index, n)
	}
	return i, nil
}

// Get returns the conversation at index and its non-negative position.
func (s *Store) Get(index int) (conv *Conversation, pos int, err error) {
	_, convs, err := s.load()
	if err != nil {
		return
	}
	pos, err = resolve(index, len(convs))
	if err != nil {
		return
	}
	return convs[pos], pos, nil
}

// Append adds a new conversation and its name in one write.
func (s *Store) Append(conv *Conversation) (pos int, err error) {
	names, convs, err := s.load()
	if err != nil {
		return
	}
	if taken(names, conv.Name()) {
		return 0, fmt.Errorf("%w: %q", ErrDuplicateName, conv.Name())
	}
	names = append(names, conv.Name())
	convs = append(convs, conv)
	err = s.p.Save(names, convs)
	if err != nil {
		return
	}
	return len(convs) - 1, nil
}

// Update replaces the conversation at index.  The name must not change.
func (s *Store) Update(index int, conv *Conversation) (err error) {
	names, convs, err := s.load()
	if err != nil {
		return
	}
	pos, err := resolve(index, len(convs))
	if err != nil {
		return
	}
	if names[pos] != conv.Name() {
		return fmt.Errorf("conversation at index %d is %q, not %q", pos, names[pos], conv.Name())
	}
	convs[pos] = conv
	return s.p.Save(names, convs)
}
