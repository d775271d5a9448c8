package core

import (
	"errors"
	"fmt"

	"github.com/stevegt/gptcli/models"
)

var (
	// ErrInvalidTurnSequence means a conversation would break the
	// turn ordering rules.  It signals a bug, not bad user input.
	ErrInvalidTurnSequence = errors.New("invalid turn sequence")
	// ErrInterrupted means the caller cancelled the round trip.
	ErrInterrupted = errors.New("interrupted")
	// ErrStoreCorrupt means the conversation store could be read but
	// not parsed.
	ErrStoreCorrupt = errors.New("conversation store is corrupt")
	// ErrStoreUnreadable means the conversation store exists but
	// could not be read.
	ErrStoreUnreadable = errors.New("conversation store is unreadable")
	// ErrNoTransport means no transport is registered for a model's
	// provider service.
	ErrNoTransport = errors.New("no transport for provider")
	// ErrNoConversation means a conversation index is out of range.
	ErrNoConversation = errors.New("no such conversation")
	// ErrDuplicateName means a conversation name is already taken.
	ErrDuplicateName = errors.New("conversation name already exists")
	// ErrTokenLimit means a request would exceed the model's context
	// window.
	ErrTokenLimit = errors.New("token limit exceeded")
)

// ProviderError is a failed request to a provider.  It is never
// retried.
type ProviderError struct {
	Provider string
	Family   models.Family
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s (%s) request failed: %v", e.Provider, e.Family, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
