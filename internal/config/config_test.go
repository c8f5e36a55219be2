package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("RAIN_HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoadFileKeepsDefaultsForAbsentKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[llm]
model = "llama-3.3-70b-versatile"

[web]
port = 9000
`), 0600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Model)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 9000, cfg.Web.Port)
	assert.Equal(t, "smtp.gmail.com", cfg.Email.SMTPHost)
	assert.Equal(t, 15, cfg.Agent.MaxIterations)
}

func TestLoadFileParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[llm\nmodel ="), 0600))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestSaveWritesOwnerOnlyFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RAIN_HOME", filepath.Join(dir, "nested"))

	cfg := DefaultConfig()
	cfg.Web.Port = 8600
	require.NoError(t, cfg.Save())

	info, err := os.Stat(Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8600, loaded.Web.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "platform" }, "llm.provider"},
		{"missing model", func(c *Config) { c.LLM.Model = "" }, "llm.model"},
		{"openai without base url", func(c *Config) { c.LLM.BaseURL = "" }, "llm.base_url"},
		{"ollama without base url is fine", func(c *Config) { c.LLM.Provider = "ollama"; c.LLM.BaseURL = "" }, ""},
		{"bad timeout", func(c *Config) { c.LLM.Timeout = "soon" }, "llm.timeout"},
		{"zero iterations", func(c *Config) { c.Agent.MaxIterations = 0 }, "agent.max_iterations"},
		{"bad smtp port", func(c *Config) { c.Email.SMTPPort = 70000 }, "email.smtp_port"},
		{"non-http search", func(c *Config) { c.Search.Endpoint = "ftp://example.com" }, "search.endpoint"},
		{"no notes dir", func(c *Config) { c.Notes.Dir = "" }, "notes.dir"},
		{"negative ttl", func(c *Config) { c.Web.SessionTTL = "-1h" }, "web.session_ttl"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRedact(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "gsk_abcdefghijklmnop"

	redacted := cfg.Redact()
	assert.Equal(t, "gsk_...mnop", redacted.LLM.APIKey)
	assert.Equal(t, "gsk_abcdefghijklmnop", cfg.LLM.APIKey, "original must not change")
	assert.Equal(t, "****", RedactKey("short"))
}

func TestDurations(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 60*time.Second, cfg.LLMTimeout())
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL())

	cfg.LLM.Timeout = "bogus"
	cfg.Web.SessionTTL = "15m"
	assert.Equal(t, 60*time.Second, cfg.LLMTimeout())
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL())
}
