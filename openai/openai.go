package openai

import (
	"context"

	gptLib "github.com/sashabaranov/go-openai"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/gptcli/client"
)

// XAIBaseURL is the OpenAI-compatible endpoint for xAI models.
const XAIBaseURL = "https://api.x.ai/v1"

// Config selects the endpoint and credentials.  An empty BaseURL
// means api.openai.com.
type Config struct {
	APIKey  string
	BaseURL string
	OrgID   string
}

func newLib(cfg Config) *gptLib.Client {
	c := gptLib.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	c.OrgID = cfg.OrgID
	return gptLib.NewClientWithConfig(c)
}

// ChatClient sends openai-style chat requests.  It serves any
// OpenAI-compatible service.
type ChatClient struct {
	client *gptLib.Client
}

// NewChatClient creates a new ChatClient instance.
func NewChatClient(cfg Config) *ChatClient {
	return &ChatClient{client: newLib(cfg)}
}

func chatRequest(req client.ChatRequest) (out gptLib.ChatCompletionRequest) {
	out.Model = req.Model
	for _, msg := range req.Messages {
		out.Messages = append(out.Messages, gptLib.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	if req.MaxTokens > 0 {
		out.MaxCompletionTokens = req.MaxTokens
	}
	return
}

// Complete sends a chat request and returns the first choice.
func (oc *ChatClient) Complete(ctx context.Context, req client.ChatRequest) (resp client.Response, err error) {
	defer Return(&err)
	res, err := oc.client.CreateChatCompletion(ctx, chatRequest(req))
	Ck(err)
	Assert(len(res.Choices) > 0, "no choices in response from %s", req.Model)
	resp = client.Response{Body: res.Choices[0].Message.Content, Raw: res}
	return
}

// Stream sends a streaming chat request.
func (oc *ChatClient) Stream(ctx context.Context, req client.ChatRequest) (s client.Stream, err error) {
	r := chatRequest(req)
	r.Stream = true
	st, err := oc.client.CreateChatCompletionStream(ctx, r)
	if err != nil {
		return
	}
	return &chatStream{st: st}, nil
}

type chatStream struct {
	st   *gptLib.ChatCompletionStream
	last gptLib.ChatCompletionStreamResponse
}

func (s *chatStream) Recv() (frag string, err error) {
	res, err := s.st.Recv()
	if err != nil {
		return "", err
	}
	s.last = res
	if len(res.Choices) == 0 {
		return "", nil
	}
	return res.Choices[0].Delta.Content, nil
}

// Raw returns the last chunk received, which carries the finish
// reason.
func (s *chatStream) Raw() any { return s.last }

func (s *chatStream) Close() error { return s.st.Close() }

// CompletionClient sends legacy single-prompt completion requests.
type CompletionClient struct {
	client *gptLib.Client
}

// NewCompletionClient creates a new CompletionClient instance.
func NewCompletionClient(cfg Config) *CompletionClient {
	return &CompletionClient{client: newLib(cfg)}
}

func completionRequest(req client.CompletionRequest) (out gptLib.CompletionRequest) {
	out.Model = req.Model
	out.Prompt = req.Prompt
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	out.MaxTokens = req.MaxTokens
	return
}

// Complete sends a completion request and returns the first choice.
func (cc *CompletionClient) Complete(ctx context.Context, req client.CompletionRequest) (resp client.Response, err error) {
	defer Return(&err)
	res, err := cc.client.CreateCompletion(ctx, completionRequest(req))
	Ck(err)
	Assert(len(res.Choices) > 0, "no choices in response from %s", req.Model)
	resp = client.Response{Body: res.Choices[0].Text, Raw: res}
	return
}

// Stream sends a streaming completion request.
func (cc *CompletionClient) Stream(ctx context.Context, req client.CompletionRequest) (s client.Stream, err error) {
	r := completionRequest(req)
	r.Stream = true
	st, err := cc.client.CreateCompletionStream(ctx, r)
	if err != nil {
		return
	}
	return &completionStream{st: st}, nil
}

type completionStream struct {
	st   *gptLib.CompletionStream
	last gptLib.CompletionResponse
}

func (s *completionStream) Recv() (frag string, err error) {
	res, err := s.st.Recv()
	if err != nil {
		return "", err
	}
	s.last = res
	if len(res.Choices) == 0 {
		return "", nil
	}
	return res.Choices[0].Text, nil
}

func (s *completionStream) Raw() any { return s.last }

func (s *completionStream) Close() error { return s.st.Close() }

// Assert that the clients implement client.Transport.
var (
	_ client.Transport[client.ChatRequest]       = (*ChatClient)(nil)
	_ client.Transport[client.CompletionRequest] = (*CompletionClient)(nil)
)
