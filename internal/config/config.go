// Package config loads and saves the RAIN configuration file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk configuration (~/.rain/config.toml).
type Config struct {
	LLM     LLMConfig     `toml:"llm"`
	Agent   AgentConfig   `toml:"agent"`
	Email   EmailConfig   `toml:"email"`
	Search  SearchConfig  `toml:"search"`
	Notes   NotesConfig   `toml:"notes"`
	Web     WebConfig     `toml:"web"`
	Logging LoggingConfig `toml:"logging"`
	Tracing TracingConfig `toml:"tracing"`
}

// LLMConfig selects the chat model. The API key is normally entered in the
// web console and never written here.
type LLMConfig struct {
	Provider  string `toml:"provider"` // openai, anthropic, ollama
	BaseURL   string `toml:"base_url,omitempty"`
	Model     string `toml:"model"`
	APIKey    string `toml:"api_key,omitempty"`
	MaxTokens int    `toml:"max_tokens"`
	Timeout   string `toml:"timeout"`
}

// AgentConfig tunes the tool-calling loop.
type AgentConfig struct {
	MaxIterations int    `toml:"max_iterations"`
	SystemPrompt  string `toml:"system_prompt,omitempty"`
}

// EmailConfig is the SMTP relay used by the send_email tool.
type EmailConfig struct {
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int    `toml:"smtp_port"`
}

// SearchConfig configures the web_search tool.
type SearchConfig struct {
	Endpoint   string `toml:"endpoint"`
	MaxResults int    `toml:"max_results"`
}

// NotesConfig configures where save_note writes files.
type NotesConfig struct {
	Dir string `toml:"dir"`
}

// WebConfig configures the web console listener.
type WebConfig struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	SessionTTL string `toml:"session_ttl"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text or json
}

// TracingConfig enables OTLP trace export when an endpoint is set.
type TracingConfig struct {
	OTLPEndpoint string `toml:"otlp_endpoint,omitempty"`
}

// DefaultConfig returns a config that talks to Groq and Gmail.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "openai",
			BaseURL:   "https://api.groq.com/openai/v1",
			Model:     "meta-llama/llama-4-maverick-17b-128e-instruct",
			MaxTokens: 1024,
			Timeout:   "60s",
		},
		Agent: AgentConfig{
			MaxIterations: 15,
		},
		Email: EmailConfig{
			SMTPHost: "smtp.gmail.com",
			SMTPPort: 587,
		},
		Search: SearchConfig{
			Endpoint:   "https://html.duckduckgo.com/html/",
			MaxResults: 5,
		},
		Notes: NotesConfig{
			Dir: ".",
		},
		Web: WebConfig{
			Host:       "127.0.0.1",
			Port:       8501,
			SessionTTL: "2h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Dir returns the config directory. RAIN_HOME overrides ~/.rain.
func Dir() string {
	if d := os.Getenv("RAIN_HOME"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rain"
	}
	return filepath.Join(home, ".rain")
}

// Path returns the config file path.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the config file. A missing file yields the defaults; keys absent
// from the file keep their default values.
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile reads the config from an explicit path.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to Path().
func (c *Config) Save() error {
	return c.SaveFile(Path())
}

// SaveFile writes the config to path with owner-only permissions.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0600)
}

// LLMTimeout returns the parsed provider timeout (60s when unset or invalid).
func (c *Config) LLMTimeout() time.Duration {
	return parseDurationOr(c.LLM.Timeout, 60*time.Second)
}

// SessionTTL returns how long an idle browser session is kept.
func (c *Config) SessionTTL() time.Duration {
	return parseDurationOr(c.Web.SessionTTL, 2*time.Hour)
}

func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
