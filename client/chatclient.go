package client

import "context"

// Transport sends one request of a given wire shape to a provider
// service.  Implementations exist per provider service (see the
// openai, anthropic and google packages) and in mock for tests.
type Transport[Req any] interface {
	// Complete issues one blocking request and returns the whole
	// response body.
	Complete(ctx context.Context, req Req) (Response, error)
	// Stream issues a streaming request.  The caller must Close the
	// returned Stream.
	Stream(ctx context.Context, req Req) (Stream, error)
}

// Stream is a lazy sequence of text fragments.  Recv returns io.EOF
// after the last fragment.
type Stream interface {
	Recv() (fragment string, err error)
	// Raw returns whatever provider metadata the stream collected,
	// for diagnostics.
	Raw() any
	Close() error
}

// Response is a single non-streamed reply.
type Response struct {
	Body string
	Raw  any
}

// ChatMsg represents a single chat message.
type ChatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Part is one piece of a google-style message.
type Part struct {
	Text string `json:"text"`
}

// Content is a google-style message.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Params are optional sampling settings.  A nil Temperature leaves
// the provider default in place; MaxTokens of zero does the same
// where the provider allows it.
type Params struct {
	Temperature *float32
	MaxTokens   int
}

// ChatRequest is an openai-style request: the whole transcript,
// system turn included.
type ChatRequest struct {
	Model    string
	Messages []ChatMsg
	Params
}

// SystemChatRequest is an anthropic-style request: the system prompt
// travels outside the message list.
type SystemChatRequest struct {
	Model    string
	System   *string
	Messages []ChatMsg
	Params
}

// GoogleRequest is a google-style request.
type GoogleRequest struct {
	Model    string
	System   *string
	Contents []Content
	Params
}

// CompletionRequest is a legacy single-prompt request.
type CompletionRequest struct {
	Model  string
	Prompt string
	Params
}
