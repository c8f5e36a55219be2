package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that the config has usable values.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic":
		if c.LLM.Model == "" {
			return fmt.Errorf("llm.model is required")
		}
	case "ollama":
		if c.LLM.Model == "" {
			return fmt.Errorf("llm.model is required")
		}
	default:
		return fmt.Errorf("llm.provider must be one of: openai, anthropic, ollama")
	}
	if c.LLM.Provider == "openai" && c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required for provider %q", c.LLM.Provider)
	}
	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens must not be negative")
	}
	if err := checkDuration("llm.timeout", c.LLM.Timeout); err != nil {
		return err
	}

	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be at least 1")
	}

	if c.Email.SMTPHost == "" {
		return fmt.Errorf("email.smtp_host is required")
	}
	if c.Email.SMTPPort < 1 || c.Email.SMTPPort > 65535 {
		return fmt.Errorf("email.smtp_port must be between 1 and 65535")
	}

	if !strings.HasPrefix(c.Search.Endpoint, "http://") && !strings.HasPrefix(c.Search.Endpoint, "https://") {
		return fmt.Errorf("search.endpoint must be an http(s) URL")
	}
	if c.Search.MaxResults < 1 {
		return fmt.Errorf("search.max_results must be at least 1")
	}

	if c.Notes.Dir == "" {
		return fmt.Errorf("notes.dir is required")
	}

	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port must be between 1 and 65535")
	}
	if err := checkDuration("web.session_ttl", c.Web.SessionTTL); err != nil {
		return err
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}
	return nil
}

func checkDuration(key, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", key)
	}
	return nil
}

// Redact returns a copy of the config with API keys masked for display.
func (c *Config) Redact() *Config {
	out := *c
	if c.LLM.APIKey != "" {
		out.LLM.APIKey = RedactKey(c.LLM.APIKey)
	}
	return &out
}

// RedactKey masks a secret, keeping the first and last four characters.
func RedactKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
