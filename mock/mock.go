package mock

import (
	"context"
	"io"
	"sync"

	"github.com/stevegt/gptcli/client"
)

// Transport is a scripted provider for tests.  It implements
// client.Transport for any request type and records every request it
// receives.
type Transport[Req any] struct {
	mu       sync.Mutex
	requests []Req

	// Body is returned by Complete.
	Body string
	// Fragments are streamed in order by Stream.
	Fragments []string
	// Err, if set, fails the request before any output.
	Err error
	// StreamErr, if set, is returned by Recv after the last fragment
	// instead of io.EOF.
	StreamErr error
	// BeforeRecv, if set, is called at the start of every Recv with
	// the number of fragments already delivered.  Tests use it to
	// cancel mid-stream.
	BeforeRecv func(delivered int)
}

// New returns an empty scripted transport.
func New[Req any]() *Transport[Req] {
	return &Transport[Req]{}
}

// NewStreaming returns a transport that streams the given fragments.
func NewStreaming[Req any](fragments ...string) *Transport[Req] {
	return &Transport[Req]{Fragments: fragments}
}

// NewComplete returns a transport that answers with body.
func NewComplete[Req any](body string) *Transport[Req] {
	return &Transport[Req]{Body: body}
}

// Requests returns the requests received so far.
func (t *Transport[Req]) Requests() []Req {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Req(nil), t.requests...)
}

func (t *Transport[Req]) record(req Req) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, req)
}

// Complete returns Body.
func (t *Transport[Req]) Complete(ctx context.Context, req Req) (resp client.Response, err error) {
	t.record(req)
	if t.Err != nil {
		return resp, t.Err
	}
	if err = ctx.Err(); err != nil {
		return
	}
	return client.Response{Body: t.Body, Raw: map[string]string{"mock": t.Body}}, nil
}

// Stream returns a stream over Fragments.
func (t *Transport[Req]) Stream(ctx context.Context, req Req) (s client.Stream, err error) {
	t.record(req)
	if t.Err != nil {
		return nil, t.Err
	}
	return &stream[Req]{ctx: ctx, t: t}, nil
}

type stream[Req any] struct {
	ctx    context.Context
	t      *Transport[Req]
	i      int
	closed bool
}

func (s *stream[Req]) Recv() (frag string, err error) {
	if s.t.BeforeRecv != nil {
		s.t.BeforeRecv(s.i)
	}
	if err = s.ctx.Err(); err != nil {
		return
	}
	if s.i < len(s.t.Fragments) {
		frag = s.t.Fragments[s.i]
		s.i++
		return frag, nil
	}
	if s.t.StreamErr != nil {
		return "", s.t.StreamErr
	}
	return "", io.EOF
}

func (s *stream[Req]) Raw() any {
	return map[string]int{"fragments": s.i}
}

func (s *stream[Req]) Close() error {
	s.closed = true
	return nil
}

// Renderer records what it is asked to display.
type Renderer struct {
	Fragments []string
	Blocks    []string
}

func (r *Renderer) Fragment(text string) {
	r.Fragments = append(r.Fragments, text)
}

func (r *Renderer) Block(text string) {
	r.Blocks = append(r.Blocks, text)
}
