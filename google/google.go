package google

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"

	"github.com/stevegt/gptcli/client"
	"google.golang.org/genai"
)

// Config selects the endpoint and credentials.
type Config struct {
	APIKey string
	// BaseURL replaces the service root; the SDK appends the API
	// version and method path.
	BaseURL string
	// HTTPClient defaults to the SDK's client.
	HTTPClient *http.Client
}

// Client sends google-style requests to the Gemini API.
type Client struct {
	models *genai.Models
}

// NewClient creates a new Client instance.
func NewClient(ctx context.Context, cfg Config) (c *Client, err error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create gemini client: %w", err)
	}
	return &Client{models: gc.Models}, nil
}

// convert maps a request onto the SDK's contents and config.
func convert(req client.GoogleRequest) (contents []*genai.Content, config *genai.GenerateContentConfig) {
	for _, c := range req.Contents {
		gc := &genai.Content{Role: c.Role}
		for _, p := range c.Parts {
			gc.Parts = append(gc.Parts, genai.NewPartFromText(p.Text))
		}
		contents = append(contents, gc)
	}
	config = &genai.GenerateContentConfig{
		Temperature:     req.Temperature,
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != nil {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(*req.System)}}
	}
	return
}

// Complete sends one generateContent request.
func (c *Client) Complete(ctx context.Context, req client.GoogleRequest) (resp client.Response, err error) {
	contents, config := convert(req)
	r, err := c.models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return
	}
	if len(r.Candidates) == 0 {
		return resp, fmt.Errorf("no candidates in gemini response")
	}
	return client.Response{Body: r.Text(), Raw: r}, nil
}

// Stream sends a streamGenerateContent request.  The first chunk is
// read before returning so that a rejected request fails here.
func (c *Client) Stream(ctx context.Context, req client.GoogleRequest) (s client.Stream, err error) {
	contents, config := convert(req)
	next, stop := iter.Pull2(c.models.GenerateContentStream(ctx, req.Model, contents, config))
	first, err, ok := next()
	if err != nil {
		stop()
		return nil, err
	}
	return &stream{next: next, stop: stop, pending: first, done: !ok}, nil
}

type stream struct {
	next    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	pending *genai.GenerateContentResponse
	done    bool
	last    *genai.GenerateContentResponse
}

func (s *stream) Recv() (frag string, err error) {
	r := s.pending
	s.pending = nil
	if r == nil {
		if s.done {
			return "", io.EOF
		}
		var ok bool
		r, err, ok = s.next()
		if !ok {
			s.done = true
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}
	}
	s.last = r
	return r.Text(), nil
}

// Raw returns the last chunk, which carries the finish reason and
// usage.
func (s *stream) Raw() any { return s.last }

func (s *stream) Close() error {
	s.stop()
	return nil
}

var _ client.Transport[client.GoogleRequest] = (*Client)(nil)
