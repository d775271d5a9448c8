package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	. "github.com/stevegt/goadapt"
)

// DefaultModel is used when neither the command line nor the config
// file names a model.
var DefaultModel = "gpt-4o"

// ErrUnrecognizedModel is returned when an alias or id is not in the
// registry.
var ErrUnrecognizedModel = errors.New("unrecognized model")

// ErrRegistry is returned by NewRegistry when the descriptors are
// inconsistent.
var ErrRegistry = errors.New("invalid model registry")

// Family is the wire shape a model's provider speaks.  The set is
// closed; adding one means adding a handler in the dispatcher.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyOpenAI
	FamilyAnthropic
	FamilyGoogle
	FamilyLegacy
)

func (f Family) String() string {
	switch f {
	case FamilyOpenAI:
		return "openai-style"
	case FamilyAnthropic:
		return "anthropic-style"
	case FamilyGoogle:
		return "google-style"
	case FamilyLegacy:
		return "legacy-completion"
	}
	return "unknown"
}

// Families lists every known family in a stable order.
func Families() []Family {
	return []Family{FamilyOpenAI, FamilyAnthropic, FamilyGoogle, FamilyLegacy}
}

// Model describes one model: its canonical id, the provider service
// hosting it, and its capabilities.
type Model struct {
	Name       string
	Provider   string
	Family     Family
	Aliases    []string
	TokenLimit int
	// Streaming is false for models that only return whole responses.
	Streaming bool
	// NoSystem is set for models that reject the system role.
	NoSystem bool
}

func (m *Model) clone() *Model {
	cp := *m
	cp.Aliases = append([]string(nil), m.Aliases...)
	return &cp
}

func (m *Model) String() string {
	return fmt.Sprintf("%-28s %-10s %-18s tokens: %-7d %s", m.Name, m.Provider, m.Family, m.TokenLimit, strings.Join(m.Aliases, ","))
}

// Registry is an immutable set of model descriptors.  Aliases and ids
// are checked for collisions when the registry is built.
type Registry struct {
	models  []*Model
	byName  map[string]*Model
	byAlias map[string]*Model
}

// NewRegistry validates the given descriptors and returns a registry
// containing them.
func NewRegistry(list ...*Model) (r *Registry, err error) {
	r = &Registry{
		byName:  make(map[string]*Model),
		byAlias: make(map[string]*Model),
	}
	for _, m := range list {
		if m.Name == "" {
			return nil, fmt.Errorf("%w: model with empty name", ErrRegistry)
		}
		if m.Family == FamilyUnknown || m.Family > FamilyLegacy {
			return nil, fmt.Errorf("%w: model %q has no family", ErrRegistry, m.Name)
		}
		if _, ok := r.byName[m.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate model %q", ErrRegistry, m.Name)
		}
		// copy so callers can't mutate the registry
		cp := m.clone()
		r.byName[cp.Name] = cp
		r.models = append(r.models, cp)
	}
	for _, m := range r.models {
		for _, alias := range m.Aliases {
			if other, ok := r.byAlias[alias]; ok {
				return nil, fmt.Errorf("%w: alias %q claimed by both %q and %q", ErrRegistry, alias, other.Name, m.Name)
			}
			if other, ok := r.byName[alias]; ok && other != m {
				return nil, fmt.Errorf("%w: alias %q of %q is the id of %q", ErrRegistry, alias, m.Name, other.Name)
			}
			r.byAlias[alias] = m
		}
	}
	return
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the built-in registry.
func Default() *Registry {
	defaultOnce.Do(func() {
		var err error
		defaultRegistry, err = NewRegistry(builtin()...)
		Ck(err)
	})
	return defaultRegistry
}

// builtin returns the compiled-in model descriptors.
func builtin() (list []*Model) {
	add := func(name, provider string, family Family, tokenLimit int, aliases ...string) *Model {
		m := &Model{
			Name:       name,
			Provider:   provider,
			Family:     family,
			Aliases:    aliases,
			TokenLimit: tokenLimit,
			Streaming:  true,
		}
		list = append(list, m)
		return m
	}

	add("gpt-3.5-turbo", "openai", FamilyOpenAI, 16385, "3")
	add("gpt-3.5-turbo-0613", "openai", FamilyOpenAI, 4096, "3-0613")
	add("gpt-3.5-turbo-0125", "openai", FamilyOpenAI, 16385, "3-0125")
	add("gpt-4", "openai", FamilyOpenAI, 8192, "4")
	add("gpt-4-0314", "openai", FamilyOpenAI, 8192, "4-0314", "4-old")
	add("gpt-4-0613", "openai", FamilyOpenAI, 8192, "4-0613")
	add("gpt-4-1106-preview", "openai", FamilyOpenAI, 128000, "4t-1106")
	add("gpt-4-0125-preview", "openai", FamilyOpenAI, 128000, "4t-0125")
	add("gpt-4-turbo-preview", "openai", FamilyOpenAI, 128000, "4t", "turbo")
	add("gpt-4-32k", "openai", FamilyOpenAI, 32768, "32k", "4-32k")
	add("gpt-4-32k-0314", "openai", FamilyOpenAI, 32768, "32k-0314")
	add("gpt-4-32k-0613", "openai", FamilyOpenAI, 32768, "32k-0613")
	add("gpt-4o", "openai", FamilyOpenAI, 128000, "4o")
	add("gpt-4o-mini", "openai", FamilyOpenAI, 128000, "4o-mini")
	add("o1", "openai", FamilyOpenAI, 200000)
	o1p := add("o1-preview", "openai", FamilyOpenAI, 128000)
	o1p.Streaming = false
	o1p.NoSystem = true
	o1m := add("o1-mini", "openai", FamilyOpenAI, 128000)
	o1m.Streaming = false
	o1m.NoSystem = true
	o3m := add("o3-mini", "openai", FamilyOpenAI, 200000)
	o3m.NoSystem = true

	add("grok-2-1212", "xai", FamilyOpenAI, 131072, "grok2")
	add("grok-3", "xai", FamilyOpenAI, 131072, "grok", "grok3")

	add("claude-3-opus-20240229", "anthropic", FamilyAnthropic, 200000, "opus3")
	add("claude-3-5-haiku-20241022", "anthropic", FamilyAnthropic, 200000, "haiku")
	add("claude-3-5-sonnet-20241022", "anthropic", FamilyAnthropic, 200000, "sonnet35")
	add("claude-sonnet-4-20250514", "anthropic", FamilyAnthropic, 200000, "sonnet", "claude")
	add("claude-opus-4-20250514", "anthropic", FamilyAnthropic, 200000, "opus")

	add("gemini-1.5-flash", "google", FamilyGoogle, 1048576, "flash15")
	add("gemini-1.5-pro", "google", FamilyGoogle, 2097152, "gemini15")
	add("gemini-2.0-flash", "google", FamilyGoogle, 1048576, "flash")
	add("gemini-2.5-pro", "google", FamilyGoogle, 1048576, "gemini")

	add("gpt-4-base", "openai", FamilyLegacy, 8192, "base")
	add("gpt-3.5-turbo-instruct", "openai", FamilyLegacy, 4096, "instruct")
	add("davinci-002", "openai", FamilyLegacy, 16384, "davinci")

	return
}

// Resolve maps a user-supplied alias or canonical id to the canonical
// id.  Unknown input is always an error; there is no fallback model.
func (r *Registry) Resolve(aliasOrID string) (name string, err error) {
	if m, ok := r.byName[aliasOrID]; ok {
		return m.Name, nil
	}
	if m, ok := r.byAlias[aliasOrID]; ok {
		return m.Name, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnrecognizedModel, aliasOrID)
}

// Lookup returns a copy of the descriptor for a canonical id.
func (r *Registry) Lookup(name string) (m *Model, err error) {
	m, err = r.find(name)
	if err != nil {
		return
	}
	return m.clone(), nil
}

func (r *Registry) find(name string) (m *Model, err error) {
	m, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedModel, name)
	}
	return m, nil
}

// ProviderOf returns the family of the given canonical id.
func (r *Registry) ProviderOf(name string) (f Family, err error) {
	m, err := r.find(name)
	if err != nil {
		return FamilyUnknown, err
	}
	return m.Family, nil
}

// RequiresLegacyProtocol is true for models that take one flat prompt
// string instead of a chat history.
func (r *Registry) RequiresLegacyProtocol(name string) (bool, error) {
	m, err := r.find(name)
	if err != nil {
		return false, err
	}
	return m.Family == FamilyLegacy, nil
}

// SupportsStreaming reports whether the model can stream its reply.
func (r *Registry) SupportsStreaming(name string) (bool, error) {
	m, err := r.find(name)
	if err != nil {
		return false, err
	}
	return m.Streaming, nil
}

// List returns copies of all models sorted by provider and then by
// name.
func (r *Registry) List() (list []*Model) {
	for _, m := range r.models {
		list = append(list, m.clone())
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Provider == list[j].Provider {
			return list[i].Name < list[j].Name
		}
		return list[i].Provider < list[j].Provider
	})
	return
}

// Legend returns a one-line summary of the aliases for each model,
// suitable for flag help text.
func (r *Registry) Legend() string {
	var parts []string
	for _, m := range r.List() {
		if len(m.Aliases) == 0 {
			continue
		}
		parts = append(parts, Spf("%s for %s", strings.Join(m.Aliases, "/"), m.Name))
	}
	return strings.Join(parts, ", ")
}
