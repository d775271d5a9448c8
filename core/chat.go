package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/gptcli/client"
)

// LogEntry is one round trip as written to the diagnostic log.
type LogEntry struct {
	Time     time.Time
	Prompt   string
	Model    string
	Response string
	Raw      any
}

// Logger is an append-only diagnostic sink.
type Logger interface {
	Write(e LogEntry) error
}

// Request describes one round trip.
type Request struct {
	// Prompt is the user turn sent to the model.
	Prompt string
	// LogPrompt is what the log records as the prompt; Prompt if empty.
	LogPrompt string
	// Model is a canonical model id.
	Model string
	// System is the system prompt for a new conversation.
	System string
	// Reply continues the conversation at Index instead of starting
	// a new one.
	Reply bool
	Index int
	// Private skips persistence.
	Private bool
	Params  client.Params
}

// Result is the outcome of a successful round trip.
type Result struct {
	Conversation *Conversation
	// Index is the conversation's position in the store, or -1 for a
	// private conversation that was never stored.
	Index int
	Reply Reply
}

// Chat runs round trips: load or create a conversation, send it, and
// persist it.
type Chat struct {
	Store      *Store
	Dispatcher *Dispatcher
	// Log may be nil.
	Log Logger
	// Stderr receives log write failures; os.Stderr if nil.
	Stderr io.Writer
}

// RoundTrip appends req.Prompt as a user turn, sends the conversation
// and appends the reply.  The store is written only after a complete
// reply; any error, including ErrInterrupted, leaves it untouched.
func (c *Chat) RoundTrip(ctx context.Context, req Request, r Renderer) (res Result, err error) {
	conv, pos, err := c.conversation(req)
	if err != nil {
		return
	}
	err = conv.AppendUser(req.Prompt)
	if err != nil {
		return
	}
	err = c.checkTokens(req.Model, conv, req.Params)
	if err != nil {
		return
	}

	reply, err := c.Dispatcher.Send(ctx, req.Model, conv, req.Params, r)
	if err != nil {
		return
	}
	err = conv.AppendAssistant(reply.Text, reply.Model)
	if err != nil {
		return
	}

	switch {
	case req.Private:
		pos = -1
	case req.Reply:
		err = c.Store.Update(pos, conv)
	default:
		pos, err = c.Store.Append(conv)
	}
	if err != nil {
		return
	}

	c.log(req, reply)
	return Result{Conversation: conv, Index: pos, Reply: reply}, nil
}

func (c *Chat) conversation(req Request) (conv *Conversation, pos int, err error) {
	if req.Reply {
		return c.Store.Get(req.Index)
	}
	name, err := c.Store.NextName()
	if err != nil {
		return
	}
	return NewConversation(name, req.System), -1, nil
}

// checkTokens rejects a conversation that, with room for the reply,
// won't fit the model's context.
func (c *Chat) checkTokens(model string, conv *Conversation, params client.Params) (err error) {
	m, err := c.Dispatcher.Registry().Lookup(model)
	if err != nil {
		return
	}
	if m.TokenLimit <= 0 {
		return
	}
	n, err := conv.TokenCount()
	if err != nil {
		// an estimate is not worth failing the request over
		Debug("token count failed: %v", err)
		return nil
	}
	reserve := replyBudget(m, params)
	if n+reserve > m.TokenLimit {
		return fmt.Errorf("%w: %d tokens plus %d for the reply, %s accepts %d", ErrTokenLimit, n, reserve, model, m.TokenLimit)
	}
	return
}

// log writes the round trip to the diagnostic log.  Failures are
// reported and otherwise ignored.
func (c *Chat) log(req Request, reply Reply) {
	if c.Log == nil {
		return
	}
	prompt := req.LogPrompt
	if prompt == "" {
		prompt = req.Prompt
	}
	err := c.Log.Write(LogEntry{
		Time:     time.Now(),
		Prompt:   prompt,
		Model:    reply.Model,
		Response: reply.Text,
		Raw:      reply.Raw,
	})
	if err != nil {
		w := c.Stderr
		if w == nil {
			w = os.Stderr
		}
		Fpf(w, "warning: could not write log: %v\n", err)
	}
}
