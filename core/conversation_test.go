package core

import (
	"errors"
	"testing"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/gptcli/models"
)

// sample returns a conversation with a system turn and two exchanges.
func sample(t *testing.T) *Conversation {
	c := NewConversation("0", "S")
	Tassert(t, c.AppendUser("u1") == nil, "append u1")
	Tassert(t, c.AppendAssistant("a1", "gpt-4o") == nil, "append a1")
	Tassert(t, c.AppendUser("u2") == nil, "append u2")
	Tassert(t, c.AppendAssistant("a2", "claude-sonnet-4-20250514") == nil, "append a2")
	return c
}

func TestNewConversation(t *testing.T) {
	c := NewConversation("0", "S")
	Tassert(t, c.Len() == 1, "expected 1 turn, got %d", c.Len())
	sys, ok := c.System()
	Tassert(t, ok && sys == "S", "system %q %v", sys, ok)
	Tassert(t, c.Meta().ID != "", "missing id")

	c = NewConversation("1", "")
	Tassert(t, c.Len() == 0, "expected no turns, got %d", c.Len())
	_, ok = c.System()
	Tassert(t, !ok, "unexpected system turn")
}

func TestAppendOnly(t *testing.T) {
	c := NewConversation("0", "S")
	var prev []Turn
	steps := []func() error{
		func() error { return c.AppendUser("a") },
		func() error { return c.AppendUser("b") },
		func() error { return c.AppendAssistant("c", "gpt-4o") },
		func() error { return c.AppendAssistant("d", "gpt-4o") },
		func() error { return c.AppendAssistant("e", "") },
		func() error { return c.AppendUser("f") },
	}
	for i, step := range steps {
		_ = step()
		turns := c.Turns()
		Tassert(t, len(turns) >= len(prev), "step %d: turn count decreased", i)
		for j := range prev {
			Tassert(t, turns[j] == prev[j], "step %d: turn %d changed", i, j)
		}
		prev = turns
	}
	Tassert(t, c.Len() == 4, "expected 4 turns, got %d", c.Len())

	// same-role adjacency is rejected
	err := c.AppendUser("g")
	Tassert(t, errors.Is(err, ErrInvalidTurnSequence), "expected ErrInvalidTurnSequence, got %v", err)

	// Turns is a copy
	turns := c.Turns()
	turns[0].Content = "changed"
	sys, _ := c.System()
	Tassert(t, sys == "S", "Turns leaked internal state")
}

func TestRestoreConversation(t *testing.T) {
	src := sample(t)
	c, err := RestoreConversation(src.Name(), src.Meta(), src.Turns())
	Tassert(t, err == nil, "%v", err)
	Tassert(t, c.Len() == src.Len(), "length mismatch")

	// a stray system turn is a hard error
	turns := []Turn{
		{Role: RoleSystem, Content: "S"},
		{Role: RoleUser, Content: "u"},
		{Role: RoleSystem, Content: "S2"},
	}
	_, err = RestoreConversation("x", Meta{}, turns)
	Tassert(t, errors.Is(err, ErrInvalidTurnSequence), "expected ErrInvalidTurnSequence, got %v", err)

	_, err = RestoreConversation("x", Meta{}, []Turn{{Role: "robot", Content: "?"}})
	Tassert(t, errors.Is(err, ErrInvalidTurnSequence), "expected ErrInvalidTurnSequence, got %v", err)
}

func TestProjectOpenAI(t *testing.T) {
	c := sample(t)
	p, err := c.Project(models.FamilyOpenAI)
	Tassert(t, err == nil, "%v", err)
	msgs := p.(OpenAIPayload).Messages
	Tassert(t, len(msgs) == 5, "expected 5 messages, got %d", len(msgs))
	Tassert(t, msgs[0].Role == "system" && msgs[0].Content == "S", "bad system message %+v", msgs[0])
	Tassert(t, msgs[4].Role == "assistant" && msgs[4].Content == "a2", "bad last message %+v", msgs[4])
}

func TestProjectSystemExtraction(t *testing.T) {
	c := sample(t)
	turns := c.Turns()[1:]

	p, err := c.Project(models.FamilyAnthropic)
	Tassert(t, err == nil, "%v", err)
	ap := p.(AnthropicPayload)
	Tassert(t, ap.System != nil && *ap.System == "S", "system not extracted")
	Tassert(t, len(ap.Messages) == len(turns), "expected %d messages, got %d", len(turns), len(ap.Messages))
	for i, m := range ap.Messages {
		Tassert(t, m.Role == string(turns[i].Role), "role %d: %q != %q", i, m.Role, turns[i].Role)
		Tassert(t, m.Content == turns[i].Content, "content %d changed", i)
	}

	p, err = c.Project(models.FamilyGoogle)
	Tassert(t, err == nil, "%v", err)
	gp := p.(GooglePayload)
	Tassert(t, gp.System != nil && *gp.System == "S", "system not extracted")
	Tassert(t, len(gp.Contents) == len(turns), "expected %d contents, got %d", len(turns), len(gp.Contents))
	for i, m := range gp.Contents {
		want := string(turns[i].Role)
		if want == "assistant" {
			want = "model"
		}
		Tassert(t, m.Role == want, "role %d: %q != %q", i, m.Role, want)
		Tassert(t, len(m.Parts) == 1 && m.Parts[0].Text == turns[i].Content, "parts %d wrong: %+v", i, m.Parts)
	}

	// no system turn
	c = NewConversation("1", "")
	Tassert(t, c.AppendUser("hi") == nil, "append")
	p, err = c.Project(models.FamilyAnthropic)
	Tassert(t, err == nil, "%v", err)
	Tassert(t, p.(AnthropicPayload).System == nil, "unexpected system")
	Tassert(t, len(p.(AnthropicPayload).Messages) == 1, "expected 1 message")
}

func TestProjectLegacy(t *testing.T) {
	c := NewConversation("0", "a ")
	Tassert(t, c.AppendUser("b\n") == nil, "append")
	Tassert(t, c.AppendAssistant("c", "gpt-4-base") == nil, "append")
	p, err := c.Project(models.FamilyLegacy)
	Tassert(t, err == nil, "%v", err)
	Tassert(t, p.(LegacyPayload).Prompt == "a b\nc", "got %q", p.(LegacyPayload).Prompt)
}

func TestProjectRejectsStraySystem(t *testing.T) {
	c := sample(t)
	// bypass the append rules to simulate a damaged transcript
	c.turns = append(c.turns, Turn{Role: RoleSystem, Content: "late"})
	for _, f := range models.Families() {
		_, err := c.Project(f)
		Tassert(t, errors.Is(err, ErrInvalidTurnSequence), "%s: expected ErrInvalidTurnSequence, got %v", f, err)
	}
}

func TestDisplay(t *testing.T) {
	c := sample(t)
	lines, width := c.Display()
	Tassert(t, len(lines) == 5, "expected 5 lines, got %d", len(lines))
	Tassert(t, lines[0].Label == "system", "label 0 %q", lines[0].Label)
	Tassert(t, lines[1].Label == "user", "label 1 %q", lines[1].Label)
	Tassert(t, lines[2].Label == "gpt-4o", "label 2 %q", lines[2].Label)
	Tassert(t, lines[4].Label == "claude-sonnet-4-20250514", "label 4 %q", lines[4].Label)
	Tassert(t, width == len("claude-sonnet-4-20250514")+1, "width %d", width)

	first, last := c.Summary()
	Tassert(t, first == "u1" && last == "a2", "summary %q %q", first, last)
}
