package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/gptcli/client"
	"github.com/stevegt/gptcli/models"
)

// DefaultMaxTokens is sent to providers that require a reply length
// limit when the caller gives none.
const DefaultMaxTokens = 4096

// noSysAck is the assistant turn that follows a system prompt sent as
// a user turn, for models that reject the system role.
const noSysAck = "Got it!  I will use those instructions as my system message and will follow them faithfully in each of my responses."

// Renderer displays reply text as it arrives.  Fragment receives
// streamed pieces in order; Block receives a whole non-streamed reply.
type Renderer interface {
	Fragment(text string)
	Block(text string)
}

// Reply is the outcome of one successful Send.
type Reply struct {
	Text     string
	Model    string
	Provider string
	Family   models.Family
	Streamed bool
	// Raw is a RawRecord, kept only for the log.
	Raw any
}

// RawRecord is the diagnostic record attached to a Reply.
type RawRecord struct {
	Model     string `json:"model"`
	Provider  string `json:"provider"`
	Family    string `json:"family"`
	Streamed  bool   `json:"streamed"`
	Fragments int    `json:"fragments,omitempty"`
	Response  any    `json:"response,omitempty"`
}

// handler sends a conversation to one provider family.
type handler interface {
	send(ctx context.Context, m *models.Model, streaming bool, conv *Conversation, params client.Params, r Renderer) (Reply, error)
}

// familyHandler is the handler for one family, parameterized by that
// family's request type.  Transports are keyed by provider service.
type familyHandler[Req any] struct {
	family     models.Family
	build      func(m *models.Model, p Payload, params client.Params) (Req, error)
	transports map[string]client.Transport[Req]
}

func newHandler[Req any](f models.Family, build func(*models.Model, Payload, client.Params) (Req, error)) *familyHandler[Req] {
	return &familyHandler[Req]{
		family:     f,
		build:      build,
		transports: make(map[string]client.Transport[Req]),
	}
}

func (h *familyHandler[Req]) send(ctx context.Context, m *models.Model, streaming bool, conv *Conversation, params client.Params, r Renderer) (reply Reply, err error) {
	payload, err := conv.Project(h.family)
	if err != nil {
		return
	}
	req, err := h.build(m, payload, params)
	if err != nil {
		return
	}
	t, ok := h.transports[m.Provider]
	if !ok {
		return Reply{}, fmt.Errorf("%w: %s (%s)", ErrNoTransport, m.Provider, h.family)
	}

	rec := RawRecord{
		Model:    m.Name,
		Provider: m.Provider,
		Family:   h.family.String(),
		Streamed: streaming,
	}
	reply = Reply{
		Model:    m.Name,
		Provider: m.Provider,
		Family:   h.family,
		Streamed: streaming,
	}
	if streaming {
		reply.Text, rec.Fragments, rec.Response, err = streamReply(ctx, t, req, r)
	} else {
		reply.Text, rec.Response, err = completeReply(ctx, t, req, r)
	}
	if err != nil {
		return Reply{}, classify(ctx, m, h.family, err)
	}
	reply.Raw = rec
	return
}

// streamReply consumes a stream, checking for cancellation before
// each fragment.
func streamReply[Req any](ctx context.Context, t client.Transport[Req], req Req, r Renderer) (text string, n int, raw any, err error) {
	stream, err := t.Stream(ctx, req)
	if err != nil {
		return
	}
	defer stream.Close()
	var buf strings.Builder
	for {
		if ctx.Err() != nil {
			return "", n, nil, ctx.Err()
		}
		var frag string
		frag, err = stream.Recv()
		if errors.Is(err, io.EOF) {
			err = nil
			break
		}
		if err != nil {
			return "", n, nil, err
		}
		if frag == "" {
			continue
		}
		n++
		buf.WriteString(frag)
		r.Fragment(frag)
	}
	// a cancel that raced the final fragment still aborts
	if ctx.Err() != nil {
		return "", n, nil, ctx.Err()
	}
	return buf.String(), n, stream.Raw(), nil
}

func completeReply[Req any](ctx context.Context, t client.Transport[Req], req Req, r Renderer) (text string, raw any, err error) {
	resp, err := t.Complete(ctx, req)
	if err != nil {
		return
	}
	if ctx.Err() != nil {
		return "", nil, ctx.Err()
	}
	r.Block(resp.Body)
	return resp.Body, resp.Raw, nil
}

// classify maps a failure to ErrInterrupted when the caller cancelled,
// and to a ProviderError otherwise.
func classify(ctx context.Context, m *models.Model, f models.Family, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		Debug("%s: cancelled: %v", m.Name, err)
		return ErrInterrupted
	}
	return &ProviderError{Provider: m.Provider, Family: f, Err: err}
}

// Dispatcher sends a conversation to whichever provider serves the
// selected model.
type Dispatcher struct {
	registry  *models.Registry
	openai    *familyHandler[client.ChatRequest]
	anthropic *familyHandler[client.SystemChatRequest]
	google    *familyHandler[client.GoogleRequest]
	legacy    *familyHandler[client.CompletionRequest]
	handlers  map[models.Family]handler
}

// NewDispatcher returns a dispatcher with no transports registered.
func NewDispatcher(reg *models.Registry) *Dispatcher {
	d := &Dispatcher{
		registry:  reg,
		openai:    newHandler(models.FamilyOpenAI, buildOpenAI),
		anthropic: newHandler(models.FamilyAnthropic, buildAnthropic),
		google:    newHandler(models.FamilyGoogle, buildGoogle),
		legacy:    newHandler(models.FamilyLegacy, buildLegacy),
	}
	d.handlers = map[models.Family]handler{
		models.FamilyOpenAI:    d.openai,
		models.FamilyAnthropic: d.anthropic,
		models.FamilyGoogle:    d.google,
		models.FamilyLegacy:    d.legacy,
	}
	return d
}

// Registry returns the model registry the dispatcher resolves against.
func (d *Dispatcher) Registry() *models.Registry {
	return d.registry
}

// UseOpenAI registers the openai-style transport for a provider
// service.
func (d *Dispatcher) UseOpenAI(provider string, t client.Transport[client.ChatRequest]) {
	d.openai.transports[provider] = t
}

// UseAnthropic registers the anthropic-style transport for a provider
// service.
func (d *Dispatcher) UseAnthropic(provider string, t client.Transport[client.SystemChatRequest]) {
	d.anthropic.transports[provider] = t
}

// UseGoogle registers the google-style transport for a provider
// service.
func (d *Dispatcher) UseGoogle(provider string, t client.Transport[client.GoogleRequest]) {
	d.google.transports[provider] = t
}

// UseLegacy registers the legacy completion transport for a provider
// service.
func (d *Dispatcher) UseLegacy(provider string, t client.Transport[client.CompletionRequest]) {
	d.legacy.transports[provider] = t
}

// Send sends conv to modelID and returns the reply.  Streamed
// fragments go to r as they arrive.  Nothing is retried.  If ctx is
// cancelled the partial reply is discarded and ErrInterrupted is
// returned.
func (d *Dispatcher) Send(ctx context.Context, modelID string, conv *Conversation, params client.Params, r Renderer) (reply Reply, err error) {
	m, err := d.registry.Lookup(modelID)
	if err != nil {
		return
	}
	family, err := d.registry.ProviderOf(modelID)
	if err != nil {
		return
	}
	streaming, err := d.registry.SupportsStreaming(modelID)
	if err != nil {
		return
	}
	h, ok := d.handlers[family]
	Assert(ok, "no handler for family %s", family)
	if ctx.Err() != nil {
		return Reply{}, ErrInterrupted
	}
	Debug("sending %d turns to %s via %s (%s, streaming %v)", conv.Len(), m.Name, m.Provider, family, streaming)
	return h.send(ctx, m, streaming, conv, params, r)
}

func buildOpenAI(m *models.Model, p Payload, params client.Params) (req client.ChatRequest, err error) {
	pl, ok := p.(OpenAIPayload)
	if !ok {
		return req, fmt.Errorf("expected %s payload, got %s", models.FamilyOpenAI, p.Family())
	}
	msgs := pl.Messages
	if m.NoSystem && len(msgs) > 0 && msgs[0].Role == string(RoleSystem) {
		// send the system prompt as the first user turn
		rewritten := []client.ChatMsg{
			{Role: string(RoleUser), Content: msgs[0].Content},
			{Role: string(RoleAssistant), Content: noSysAck},
		}
		msgs = append(rewritten, msgs[1:]...)
	}
	req = client.ChatRequest{Model: m.Name, Messages: msgs, Params: params}
	return
}

func buildAnthropic(m *models.Model, p Payload, params client.Params) (req client.SystemChatRequest, err error) {
	pl, ok := p.(AnthropicPayload)
	if !ok {
		return req, fmt.Errorf("expected %s payload, got %s", models.FamilyAnthropic, p.Family())
	}
	params.MaxTokens = replyBudget(m, params)
	req = client.SystemChatRequest{Model: m.Name, System: pl.System, Messages: pl.Messages, Params: params}
	return
}

// replyBudget is the reply length limit sent to m: params.MaxTokens,
// or DefaultMaxTokens for families that require a limit.
func replyBudget(m *models.Model, params client.Params) int {
	if params.MaxTokens <= 0 && m.Family == models.FamilyAnthropic {
		return DefaultMaxTokens
	}
	return params.MaxTokens
}

func buildGoogle(m *models.Model, p Payload, params client.Params) (req client.GoogleRequest, err error) {
	pl, ok := p.(GooglePayload)
	if !ok {
		return req, fmt.Errorf("expected %s payload, got %s", models.FamilyGoogle, p.Family())
	}
	req = client.GoogleRequest{Model: m.Name, System: pl.System, Contents: pl.Contents, Params: params}
	return
}

func buildLegacy(m *models.Model, p Payload, params client.Params) (req client.CompletionRequest, err error) {
	pl, ok := p.(LegacyPayload)
	if !ok {
		return req, fmt.Errorf("expected %s payload, got %s", models.FamilyLegacy, p.Family())
	}
	req = client.CompletionRequest{Model: m.Name, Prompt: pl.Prompt, Params: params}
	return
}
