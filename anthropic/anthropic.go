package anthropic

import (
	"context"
	"fmt"
	"io"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/gptcli/client"
)

// Config selects the endpoint and credentials.  An empty BaseURL
// means the SDK default.
type Config struct {
	APIKey  string
	BaseURL string
}

// Client sends anthropic-style requests through the Messages API.
type Client struct {
	client sdk.Client
}

// NewClient creates a new Client instance.
func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{client: sdk.NewClient(opts...)}
}

func params(req client.SystemChatRequest) (p sdk.MessageNewParams, err error) {
	p.Model = sdk.Model(req.Model)
	p.MaxTokens = int64(req.MaxTokens)
	if req.System != nil {
		p.System = []sdk.TextBlockParam{{Text: *req.System}}
	}
	if req.Temperature != nil {
		p.Temperature = sdk.Float(float64(*req.Temperature))
	}
	for _, msg := range req.Messages {
		block := sdk.NewTextBlock(msg.Content)
		switch msg.Role {
		case "user":
			p.Messages = append(p.Messages, sdk.NewUserMessage(block))
		case "assistant":
			p.Messages = append(p.Messages, sdk.NewAssistantMessage(block))
		default:
			return p, fmt.Errorf("role %q not allowed in anthropic message list", msg.Role)
		}
	}
	return
}

// Complete sends one request and returns the text blocks of the reply.
func (c *Client) Complete(ctx context.Context, req client.SystemChatRequest) (resp client.Response, err error) {
	defer Return(&err)
	p, err := params(req)
	Ck(err)
	msg, err := c.client.Messages.New(ctx, p)
	Ck(err)
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	resp = client.Response{Body: b.String(), Raw: msg}
	return
}

// Stream sends a streaming request.  Only text deltas are returned as
// fragments.
func (c *Client) Stream(ctx context.Context, req client.SystemChatRequest) (s client.Stream, err error) {
	p, err := params(req)
	if err != nil {
		return
	}
	st := c.client.Messages.NewStreaming(ctx, p)
	return &stream{st: st}, nil
}

type stream struct {
	st         *ssestream.Stream[sdk.MessageStreamEventUnion]
	stopReason string
	events     int
}

func (s *stream) Recv() (frag string, err error) {
	for s.st.Next() {
		ev := s.st.Current()
		s.events++
		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" {
				return ev.Delta.Text, nil
			}
		case "message_delta":
			s.stopReason = string(ev.Delta.StopReason)
		}
	}
	if err = s.st.Err(); err != nil {
		return
	}
	return "", io.EOF
}

func (s *stream) Raw() any {
	return map[string]any{"stop_reason": s.stopReason, "events": s.events}
}

func (s *stream) Close() error { return s.st.Close() }

var _ client.Transport[client.SystemChatRequest] = (*Client)(nil)
