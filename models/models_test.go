package models

import (
	"errors"
	"testing"

	. "github.com/stevegt/goadapt"
)

func TestResolve(t *testing.T) {
	r := Default()

	// every alias resolves to its model, repeatably
	for _, m := range r.List() {
		for _, alias := range m.Aliases {
			for i := 0; i < 3; i++ {
				name, err := r.Resolve(alias)
				Tassert(t, err == nil, "resolve %q: %v", alias, err)
				Tassert(t, name == m.Name, "alias %q resolved to %q, expected %q", alias, name, m.Name)
			}
		}
		name, err := r.Resolve(m.Name)
		Tassert(t, err == nil, "resolve %q: %v", m.Name, err)
		Tassert(t, name == m.Name, "id %q resolved to %q", m.Name, name)
	}

	name, err := r.Resolve("4t")
	Tassert(t, err == nil, "%v", err)
	Tassert(t, name == "gpt-4-turbo-preview", "got %q", name)

	name, err = r.Resolve("base")
	Tassert(t, err == nil, "%v", err)
	Tassert(t, name == "gpt-4-base", "got %q", name)

	for _, bad := range []string{"", "gpt-5-nonexistent", "4T", " 4"} {
		_, err = r.Resolve(bad)
		Tassert(t, errors.Is(err, ErrUnrecognizedModel), "expected ErrUnrecognizedModel for %q, got %v", bad, err)
	}
}

func TestProviderPartition(t *testing.T) {
	r := Default()
	seen := make(map[string]Family)
	for _, m := range r.List() {
		f, err := r.ProviderOf(m.Name)
		Tassert(t, err == nil, "%v", err)
		Tassert(t, f != FamilyUnknown, "model %q has no family", m.Name)
		prev, ok := seen[m.Name]
		Tassert(t, !ok || prev == f, "model %q in two families", m.Name)
		seen[m.Name] = f
	}
	_, err := r.ProviderOf("nope")
	Tassert(t, errors.Is(err, ErrUnrecognizedModel), "expected ErrUnrecognizedModel, got %v", err)

	f, err := r.ProviderOf("claude-sonnet-4-20250514")
	Tassert(t, err == nil && f == FamilyAnthropic, "got %v %v", f, err)
	f, err = r.ProviderOf("gemini-2.0-flash")
	Tassert(t, err == nil && f == FamilyGoogle, "got %v %v", f, err)
	f, err = r.ProviderOf("grok-3")
	Tassert(t, err == nil && f == FamilyOpenAI, "got %v %v", f, err)
}

func TestCapabilities(t *testing.T) {
	r := Default()
	legacy, err := r.RequiresLegacyProtocol("gpt-4-base")
	Tassert(t, err == nil && legacy, "gpt-4-base should be legacy")
	legacy, err = r.RequiresLegacyProtocol("gpt-4o")
	Tassert(t, err == nil && !legacy, "gpt-4o should not be legacy")

	stream, err := r.SupportsStreaming("o1-preview")
	Tassert(t, err == nil && !stream, "o1-preview should not stream")
	stream, err = r.SupportsStreaming("gpt-4o")
	Tassert(t, err == nil && stream, "gpt-4o should stream")

	_, err = r.SupportsStreaming("bogus")
	Tassert(t, errors.Is(err, ErrUnrecognizedModel), "got %v", err)
}

func TestNewRegistryValidation(t *testing.T) {
	_, err := NewRegistry(
		&Model{Name: "a", Family: FamilyOpenAI, Aliases: []string{"x"}},
		&Model{Name: "b", Family: FamilyAnthropic, Aliases: []string{"x"}},
	)
	Tassert(t, errors.Is(err, ErrRegistry), "duplicate alias not rejected: %v", err)

	_, err = NewRegistry(
		&Model{Name: "a", Family: FamilyOpenAI},
		&Model{Name: "b", Family: FamilyOpenAI, Aliases: []string{"a"}},
	)
	Tassert(t, errors.Is(err, ErrRegistry), "alias/id collision not rejected: %v", err)

	_, err = NewRegistry(
		&Model{Name: "a", Family: FamilyOpenAI},
		&Model{Name: "a", Family: FamilyGoogle},
	)
	Tassert(t, errors.Is(err, ErrRegistry), "duplicate id not rejected: %v", err)

	_, err = NewRegistry(&Model{Name: "a"})
	Tassert(t, errors.Is(err, ErrRegistry), "missing family not rejected: %v", err)

	// registry holds copies
	m := &Model{Name: "a", Family: FamilyOpenAI, Aliases: []string{"x"}}
	r, err := NewRegistry(m)
	Tassert(t, err == nil, "%v", err)
	m.Aliases[0] = "y"
	name, err := r.Resolve("x")
	Tassert(t, err == nil && name == "a", "registry was mutated through caller's descriptor")
}

func TestList(t *testing.T) {
	list := Default().List()
	for i := 1; i < len(list); i++ {
		a, b := list[i-1], list[i]
		ok := a.Provider < b.Provider || (a.Provider == b.Provider && a.Name < b.Name)
		Tassert(t, ok, "list not sorted at %d: %s, %s", i, a.Name, b.Name)
	}
	legend := Default().Legend()
	Tassert(t, len(legend) > 0, "empty legend")
}

func TestRegistryImmutable(t *testing.T) {
	r := Default()
	m, err := r.Lookup("gpt-4o")
	Tassert(t, err == nil, "%v", err)
	m.Streaming = false
	m.Family = FamilyLegacy
	m.Aliases[0] = "hijacked"
	for _, lm := range r.List() {
		lm.TokenLimit = 1
	}

	ok, err := r.SupportsStreaming("gpt-4o")
	Tassert(t, err == nil && ok, "streaming flag changed through Lookup")
	f, err := r.ProviderOf("gpt-4o")
	Tassert(t, err == nil && f == FamilyOpenAI, "family changed through Lookup: %v", f)
	name, err := r.Resolve("4o")
	Tassert(t, err == nil && name == "gpt-4o", "alias changed through Lookup: %q %v", name, err)
	m, err = r.Lookup("gpt-4o")
	Tassert(t, err == nil && m.TokenLimit == 128000 && m.Aliases[0] == "4o", "descriptor changed: %+v", m)
}
