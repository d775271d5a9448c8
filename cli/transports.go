package cli

import (
	"context"

	"github.com/stevegt/gptcli/anthropic"
	conf "github.com/stevegt/gptcli/config"
	"github.com/stevegt/gptcli/core"
	"github.com/stevegt/gptcli/google"
	"github.com/stevegt/gptcli/models"
	"github.com/stevegt/gptcli/openai"
)

// keyVars names the API key variables for each provider service.
var keyVars = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"xai":       "XAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"google":    "GEMINI_API_KEY or GOOGLE_API_KEY",
}

// newDispatcher registers a transport for every provider service
// that has an API key.  Models of the other services fail with
// core.ErrNoTransport.
func newDispatcher(ctx context.Context, cfg *conf.Config, reg *models.Registry) (d *core.Dispatcher, err error) {
	d = core.NewDispatcher(reg)
	if cred, ok := conf.APIKey("openai"); ok {
		oc := openai.Config{APIKey: cred.APIKey, OrgID: cred.OrgID, BaseURL: cfg.BaseURL("openai")}
		d.UseOpenAI("openai", openai.NewChatClient(oc))
		d.UseLegacy("openai", openai.NewCompletionClient(oc))
	}
	if cred, ok := conf.APIKey("xai"); ok {
		base := cfg.BaseURL("xai")
		if base == "" {
			base = openai.XAIBaseURL
		}
		d.UseOpenAI("xai", openai.NewChatClient(openai.Config{APIKey: cred.APIKey, BaseURL: base}))
	}
	if cred, ok := conf.APIKey("anthropic"); ok {
		d.UseAnthropic("anthropic", anthropic.NewClient(anthropic.Config{APIKey: cred.APIKey, BaseURL: cfg.BaseURL("anthropic")}))
	}
	if cred, ok := conf.APIKey("google"); ok {
		gc, err := google.NewClient(ctx, google.Config{APIKey: cred.APIKey, BaseURL: cfg.BaseURL("google")})
		if err != nil {
			return nil, err
		}
		d.UseGoogle("google", gc)
	}
	return d, nil
}

// keyHint names the variable that enables model's provider service.
func keyHint(model string) string {
	m, err := models.Default().Lookup(model)
	if err != nil {
		return "the API key"
	}
	if v, ok := keyVars[m.Provider]; ok {
		return v
	}
	return "the API key for " + m.Provider
}
