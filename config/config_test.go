package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/stevegt/goadapt"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"GPT_CLI_MODEL", "GPT_CLI_SYSTEM", "GPT_CLI_STORE_BACKEND", "GPT_CLI_EDITOR", "EDITOR", "GPT_CLI_MARKDOWN"} {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfg, err := Load(dir)
	Tassert(t, err == nil, "%v", err)
	Tassert(t, cfg.DefaultModel == "gpt-4o", "model %q", cfg.DefaultModel)
	Tassert(t, cfg.SystemPrompt == DefaultSystemPrompt, "system %q", cfg.SystemPrompt)
	Tassert(t, cfg.StoreBackend == BackendJSON, "backend %q", cfg.StoreBackend)
	Tassert(t, cfg.Markdown && cfg.MaxTokens == 0, "%+v", cfg)
	Tassert(t, cfg.StorePath() == filepath.Join(dir, "message_history.json"), "store %q", cfg.StorePath())
	Tassert(t, cfg.LogPath() == filepath.Join(dir, "log.txt"), "log %q", cfg.LogPath())
	Tassert(t, cfg.AttachPath() == filepath.Join(dir, "GPT_ATTACHED_CONTEXT.txt"), "attach %q", cfg.AttachPath())
}

func TestFileAndEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	toml := `
default_model = "claude-sonnet-4-20250514"
store_backend = "bolt"
markdown = false
attach_file = "/tmp/ctx.txt"
google_base_url = "http://localhost:1234"
`
	Tassert(t, os.WriteFile(filepath.Join(dir, FileName), []byte(toml), 0600) == nil, "write")
	Tassert(t, os.WriteFile(filepath.Join(dir, EnvFileName), []byte("GPT_CLI_DOTENV_TEST=from-dotenv\n"), 0600) == nil, "write")
	t.Cleanup(func() { os.Unsetenv("GPT_CLI_DOTENV_TEST") })
	t.Setenv("GPT_CLI_SYSTEM", "be terse")
	t.Setenv("EDITOR", "nano")
	t.Setenv("GPT_CLI_EDITOR", "code --wait")

	cfg, err := Load(dir)
	Tassert(t, err == nil, "%v", err)
	Tassert(t, cfg.DefaultModel == "claude-sonnet-4-20250514", "model %q", cfg.DefaultModel)
	Tassert(t, cfg.SystemPrompt == "be terse", "system %q", cfg.SystemPrompt)
	Tassert(t, !cfg.Markdown, "markdown not disabled")
	Tassert(t, cfg.Editor == "code --wait", "editor %q", cfg.Editor)
	Tassert(t, cfg.StorePath() == filepath.Join(dir, "message_history.db"), "store %q", cfg.StorePath())
	Tassert(t, cfg.AttachPath() == "/tmp/ctx.txt", "attach %q", cfg.AttachPath())
	Tassert(t, cfg.BaseURL("google") == "http://localhost:1234", "base url %q", cfg.BaseURL("google"))
	Tassert(t, cfg.BaseURL("openai") == "", "base url %q", cfg.BaseURL("openai"))
	Tassert(t, os.Getenv("GPT_CLI_DOTENV_TEST") == "from-dotenv", ".env not loaded")

	t.Setenv("GPT_CLI_EDITOR", "")
	cfg, err = Load(dir)
	Tassert(t, err == nil, "%v", err)
	Tassert(t, cfg.Editor == "nano", "editor %q", cfg.Editor)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("GPT_CLI_STORE_BACKEND", "sqlite")
	_, err := Load(dir)
	Tassert(t, err != nil, "bad backend accepted")

	t.Setenv("GPT_CLI_STORE_BACKEND", "")
	Tassert(t, os.WriteFile(filepath.Join(dir, FileName), []byte("max_tokens = -1\n"), 0600) == nil, "write")
	_, err = Load(dir)
	Tassert(t, err != nil, "negative max_tokens accepted")

	Tassert(t, os.WriteFile(filepath.Join(dir, FileName), []byte("this is not toml"), 0600) == nil, "write")
	_, err = Load(dir)
	Tassert(t, err != nil, "garbage accepted")
}

func TestAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("OPENAI_API_KEY", "sk-oai")
	t.Setenv("OPENAI_ORGANIZATION", "org-1")
	t.Setenv("XAI_API_KEY", "")
	cred, ok := APIKey("anthropic")
	Tassert(t, ok && cred.APIKey == "sk-ant", "anthropic %+v", cred)
	cred, ok = APIKey("openai")
	Tassert(t, ok && cred.OrgID == "org-1", "openai %+v", cred)
	_, ok = APIKey("xai")
	Tassert(t, !ok, "empty key accepted")
	_, ok = APIKey("nosuch")
	Tassert(t, !ok, "unknown provider accepted")
}

func TestDir(t *testing.T) {
	t.Setenv("GPT_CLI_HOME", "/some/where")
	dir, err := Dir()
	Tassert(t, err == nil && dir == "/some/where", "dir %q %v", dir, err)
	t.Setenv("GPT_CLI_HOME", "")
	dir, err = Dir()
	Tassert(t, err == nil && filepath.Base(dir) == DirName, "dir %q %v", dir, err)
}

func TestHomeExpansion(t *testing.T) {
	clearEnv(t)
	home, err := os.UserHomeDir()
	Tassert(t, err == nil, "%v", err)
	t.Setenv("GPT_CLI_HOME", "~/gptcli-test-home")
	dir, err := Dir()
	Tassert(t, err == nil && dir == filepath.Join(home, "gptcli-test-home"), "dir %q %v", dir, err)

	cfgdir := t.TempDir()
	Tassert(t, os.WriteFile(filepath.Join(cfgdir, FileName), []byte(`attach_file = "~/notes/ctx.txt"`+"\n"), 0600) == nil, "write")
	cfg, err := Load(cfgdir)
	Tassert(t, err == nil, "%v", err)
	Tassert(t, cfg.AttachPath() == filepath.Join(home, "notes", "ctx.txt"), "attach %q", cfg.AttachPath())
}
