package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"
	"github.com/stevegt/gptcli/client"
	"github.com/stevegt/gptcli/models"
)

// Role is the speaker of a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.  ModelID is set only on
// assistant turns.
type Turn struct {
	Role    Role
	Content string
	ModelID string
}

// Meta is conversation metadata carried through persistence.
type Meta struct {
	ID      string
	Created time.Time
}

// Conversation is an append-only transcript.  At most one system
// turn exists, and only at position 0; after it, no two adjacent
// turns share a role.
type Conversation struct {
	name  string
	meta  Meta
	turns []Turn
}

// NewConversation starts a conversation whose only turn, if sysmsg is
// non-empty, is the system turn.
func NewConversation(name, sysmsg string) *Conversation {
	c := &Conversation{
		name: name,
		meta: Meta{ID: uuid.NewString(), Created: time.Now().UTC()},
	}
	if sysmsg != "" {
		c.turns = append(c.turns, Turn{Role: RoleSystem, Content: sysmsg})
	}
	return c
}

// RestoreConversation rebuilds a persisted conversation, enforcing the
// same rules as the append methods.
func RestoreConversation(name string, meta Meta, turns []Turn) (c *Conversation, err error) {
	c = &Conversation{name: name, meta: meta}
	for i, t := range turns {
		switch t.Role {
		case RoleSystem:
			if i != 0 {
				return nil, fmt.Errorf("%w: system turn at position %d", ErrInvalidTurnSequence, i)
			}
			c.turns = append(c.turns, t)
		case RoleUser:
			err = c.AppendUser(t.Content)
		case RoleAssistant:
			err = c.AppendAssistant(t.Content, t.ModelID)
		default:
			err = fmt.Errorf("%w: unknown role %q at position %d", ErrInvalidTurnSequence, t.Role, i)
		}
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Conversation) Name() string { return c.name }

func (c *Conversation) Meta() Meta { return c.meta }

func (c *Conversation) Len() int { return len(c.turns) }

// Turns returns a copy of the transcript.
func (c *Conversation) Turns() []Turn {
	return append([]Turn(nil), c.turns...)
}

// Last returns the most recent turn.
func (c *Conversation) Last() (t Turn, ok bool) {
	if len(c.turns) == 0 {
		return
	}
	return c.turns[len(c.turns)-1], true
}

// System returns the system prompt, if any.
func (c *Conversation) System() (sysmsg string, ok bool) {
	if len(c.turns) > 0 && c.turns[0].Role == RoleSystem {
		return c.turns[0].Content, true
	}
	return
}

// AppendUser appends a user turn.
func (c *Conversation) AppendUser(text string) error {
	return c.append(Turn{Role: RoleUser, Content: text})
}

// AppendAssistant appends an assistant turn produced by modelID.
func (c *Conversation) AppendAssistant(text, modelID string) error {
	if modelID == "" {
		return fmt.Errorf("%w: assistant turn without model id", ErrInvalidTurnSequence)
	}
	return c.append(Turn{Role: RoleAssistant, Content: text, ModelID: modelID})
}

func (c *Conversation) append(t Turn) error {
	if n := len(c.turns); n > 0 && c.turns[n-1].Role == t.Role {
		return fmt.Errorf("%w: %s turn follows %s turn", ErrInvalidTurnSequence, t.Role, c.turns[n-1].Role)
	}
	c.turns = append(c.turns, t)
	return nil
}

// Payload is a conversation projected into one family's shape.
type Payload interface {
	Family() models.Family
}

// OpenAIPayload is the transcript verbatim, system turn included.
type OpenAIPayload struct {
	Messages []client.ChatMsg
}

// AnthropicPayload carries the system prompt outside the message list.
type AnthropicPayload struct {
	System   *string
	Messages []client.ChatMsg
}

// GooglePayload is like AnthropicPayload, with assistant renamed to
// model and content wrapped in parts.
type GooglePayload struct {
	System   *string
	Contents []client.Content
}

// LegacyPayload is every turn's content concatenated.
type LegacyPayload struct {
	Prompt string
}

func (OpenAIPayload) Family() models.Family    { return models.FamilyOpenAI }
func (AnthropicPayload) Family() models.Family { return models.FamilyAnthropic }
func (GooglePayload) Family() models.Family    { return models.FamilyGoogle }
func (LegacyPayload) Family() models.Family    { return models.FamilyLegacy }

// Project returns the conversation in the shape the given family
// expects.
func (c *Conversation) Project(f models.Family) (p Payload, err error) {
	switch f {
	case models.FamilyOpenAI:
		return c.ForOpenAI()
	case models.FamilyAnthropic:
		return c.ForAnthropic()
	case models.FamilyGoogle:
		return c.ForGoogle()
	case models.FamilyLegacy:
		return c.ForLegacy()
	}
	return nil, fmt.Errorf("no projection for family %s", f)
}

// ForOpenAI returns every turn as a role/content pair.
func (c *Conversation) ForOpenAI() (p OpenAIPayload, err error) {
	err = c.checkSystem()
	if err != nil {
		return
	}
	for _, t := range c.turns {
		p.Messages = append(p.Messages, client.ChatMsg{Role: string(t.Role), Content: t.Content})
	}
	return
}

// ForAnthropic extracts the system turn.
func (c *Conversation) ForAnthropic() (p AnthropicPayload, err error) {
	sys, rest, err := c.splitSystem()
	if err != nil {
		return
	}
	p.System = sys
	for _, t := range rest {
		p.Messages = append(p.Messages, client.ChatMsg{Role: string(t.Role), Content: t.Content})
	}
	return
}

// ForGoogle extracts the system turn and renames assistant to model.
func (c *Conversation) ForGoogle() (p GooglePayload, err error) {
	sys, rest, err := c.splitSystem()
	if err != nil {
		return
	}
	p.System = sys
	for _, t := range rest {
		role := string(t.Role)
		if t.Role == RoleAssistant {
			role = "model"
		}
		p.Contents = append(p.Contents, client.Content{
			Role:  role,
			Parts: []client.Part{{Text: t.Content}},
		})
	}
	return
}

// ForLegacy concatenates all content in order with no separators.
func (c *Conversation) ForLegacy() (p LegacyPayload, err error) {
	err = c.checkSystem()
	if err != nil {
		return
	}
	var b strings.Builder
	for _, t := range c.turns {
		b.WriteString(t.Content)
	}
	p.Prompt = b.String()
	return
}

func (c *Conversation) checkSystem() error {
	for i, t := range c.turns {
		if t.Role == RoleSystem && i != 0 {
			return fmt.Errorf("%w: system turn at position %d", ErrInvalidTurnSequence, i)
		}
	}
	return nil
}

func (c *Conversation) splitSystem() (sys *string, rest []Turn, err error) {
	err = c.checkSystem()
	if err != nil {
		return
	}
	rest = c.turns
	if s, ok := c.System(); ok {
		sys = &s
		rest = c.turns[1:]
	}
	return
}

// Line is one row of a displayed conversation.
type Line struct {
	Role    Role
	Label   string
	Content string
}

// Display labels each turn with its role, or with the model id for
// assistant turns.  width is the widest label plus one, enough room
// for the label and a trailing colon.
func (c *Conversation) Display() (lines []Line, width int) {
	for _, t := range c.turns {
		label := string(t.Role)
		if t.Role == RoleAssistant {
			label = t.ModelID
		}
		lines = append(lines, Line{Role: t.Role, Label: label, Content: t.Content})
		if w := runewidth.StringWidth(label); w > width {
			width = w
		}
	}
	width++
	return
}

// Summary returns the first user message and the last message, for
// one-line listings.
func (c *Conversation) Summary() (first, last string) {
	for _, t := range c.turns {
		if t.Role == RoleUser {
			first = t.Content
			break
		}
	}
	if t, ok := c.Last(); ok {
		last = t.Content
	}
	return
}
