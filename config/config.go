package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/stevegt/envi"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/gptcli/models"
	"github.com/stevegt/gptcli/util"
)

// DefaultSystemPrompt starts every new conversation unless overridden.
const DefaultSystemPrompt = "You are a helpful, accurate AI assistant who provides BRIEF excellent responses to queries (NEVER say fluff like 'As an AI')."

const (
	// DirName is the config directory under the home directory.
	DirName = ".gpt_cli"
	// FileName is the TOML config file in the config directory.
	FileName = "config.toml"
	// EnvFileName holds API keys as KEY=value lines.
	EnvFileName = ".env"

	BackendJSON = "json"
	BackendBolt = "bolt"
)

// Config holds user settings.  Keys absent from config.toml keep
// their defaults.
type Config struct {
	DefaultModel string `toml:"default_model"`
	SystemPrompt string `toml:"system_prompt"`
	// StoreBackend is "json" or "bolt".
	StoreBackend string `toml:"store_backend"`
	AttachFile   string `toml:"attach_file"`
	Editor       string `toml:"editor"`
	Markdown     bool   `toml:"markdown"`
	// MaxTokens caps the reply length.  Zero sends no limit, except to
	// providers that require one.
	MaxTokens    int    `toml:"max_tokens"`

	OpenAIBaseURL    string `toml:"openai_base_url"`
	XAIBaseURL       string `toml:"xai_base_url"`
	AnthropicBaseURL string `toml:"anthropic_base_url"`
	GoogleBaseURL    string `toml:"google_base_url"`

	// Dir is the directory the config was loaded from.
	Dir string `toml:"-"`
}

// env returns the named variable, or def if it is unset or empty.
func env(name, def string) string {
	if s := envi.String(name, ""); s != "" {
		return s
	}
	return def
}

// Default returns the built-in settings rooted at dir.
func Default(dir string) *Config {
	return &Config{
		DefaultModel: models.DefaultModel,
		SystemPrompt: DefaultSystemPrompt,
		StoreBackend: BackendJSON,
		AttachFile:   "GPT_ATTACHED_CONTEXT.txt",
		Editor:       "vim",
		Markdown:     true,
		Dir:          dir,
	}
}

// Dir returns $GPT_CLI_HOME, or ~/.gpt_cli.
func Dir() (dir string, err error) {
	dir = env("GPT_CLI_HOME", "")
	if dir != "" {
		return util.ExpandHome(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot find home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Load reads dir/.env into the environment, decodes dir/config.toml
// over the defaults, and applies environment overrides.  Missing files
// are not an error.
func Load(dir string) (cfg *Config, err error) {
	defer Return(&err)
	cfg = Default(dir)

	err = godotenv.Load(filepath.Join(dir, EnvFileName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("cannot load %s: %w", EnvFileName, err)
	}

	path := filepath.Join(dir, FileName)
	_, err = toml.DecodeFile(path, cfg)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("cannot decode %s: %w", path, err)
	}
	cfg.Dir = dir
	cfg.AttachFile, err = util.ExpandHome(cfg.AttachFile)
	Ck(err)

	cfg.DefaultModel = env("GPT_CLI_MODEL", cfg.DefaultModel)
	cfg.SystemPrompt = env("GPT_CLI_SYSTEM", cfg.SystemPrompt)
	cfg.StoreBackend = env("GPT_CLI_STORE_BACKEND", cfg.StoreBackend)
	cfg.Editor = env("EDITOR", cfg.Editor)
	cfg.Editor = env("GPT_CLI_EDITOR", cfg.Editor)
	if s := env("GPT_CLI_MARKDOWN", ""); s != "" {
		cfg.Markdown, err = strconv.ParseBool(s)
		Ck(err, "GPT_CLI_MARKDOWN")
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have a fixed set of legal values.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendJSON, BackendBolt:
	default:
		return fmt.Errorf("store_backend must be %q or %q, not %q", BackendJSON, BackendBolt, c.StoreBackend)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative, not %d", c.MaxTokens)
	}
	if c.DefaultModel == "" {
		return fmt.Errorf("default_model is empty")
	}
	return nil
}

// StorePath is the conversation store for the configured backend.
func (c *Config) StorePath() string {
	if c.StoreBackend == BackendBolt {
		return filepath.Join(c.Dir, "message_history.db")
	}
	return filepath.Join(c.Dir, "message_history.json")
}

// LogPath is the append-only round trip log.
func (c *Config) LogPath() string {
	return filepath.Join(c.Dir, "log.txt")
}

// AttachPath is the file read by -f and edited by -w.  A relative
// attach_file is relative to the config directory.
func (c *Config) AttachPath() string {
	if filepath.IsAbs(c.AttachFile) {
		return c.AttachFile
	}
	return filepath.Join(c.Dir, c.AttachFile)
}

// Credentials for one provider service.
type Credentials struct {
	APIKey string
	OrgID  string
}

// APIKey returns the credentials for a provider service from the
// environment.  ok is false when no key is set.
func APIKey(provider string) (cred Credentials, ok bool) {
	switch provider {
	case "openai":
		cred.APIKey = env("OPENAI_API_KEY", "")
		cred.OrgID = env("OPENAI_ORGANIZATION", "")
	case "xai":
		cred.APIKey = env("XAI_API_KEY", "")
	case "anthropic":
		cred.APIKey = env("ANTHROPIC_API_KEY", "")
	case "google":
		cred.APIKey = env("GEMINI_API_KEY", env("GOOGLE_API_KEY", ""))
	}
	return cred, cred.APIKey != ""
}

// BaseURL returns the configured endpoint override for a provider
// service, or "" for the client default.
func (c *Config) BaseURL(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIBaseURL
	case "xai":
		return c.XAIBaseURL
	case "anthropic":
		return c.AnthropicBaseURL
	case "google":
		return c.GoogleBaseURL
	}
	return ""
}
