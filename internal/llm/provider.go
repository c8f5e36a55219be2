// Package llm provides chat-completion providers that support tool calling.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/rainagent/rain/internal/config"
	"github.com/rainagent/rain/internal/tools"
)

// maxResponseBody caps how much of a provider response is read.
const maxResponseBody = 4 << 20

// Provider is a chat model the agent loop can drive.
type Provider interface {
	tools.ChatToolProvider
	// Name returns the provider name for display.
	Name() string
}

// APIError is a non-200 answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.StatusCode, truncateStr(e.Body, 200))
}

// NewProvider creates an LLM provider based on the config.
// apiKey overrides llm.api_key when non-empty (the web console passes the
// key the user typed). The systemPrompt is injected into each request.
func NewProvider(cfg *config.Config, apiKey, systemPrompt string) (Provider, error) {
	llm := cfg.LLM
	if apiKey == "" {
		apiKey = llm.APIKey
	}
	timeout := cfg.LLMTimeout()

	switch llm.Provider {
	case "openai":
		return NewOpenAI(llm.BaseURL, apiKey, llm.Model, systemPrompt, llm.MaxTokens, timeout), nil
	case "anthropic":
		return NewAnthropic(llm.BaseURL, apiKey, llm.Model, systemPrompt, llm.MaxTokens, timeout), nil
	case "ollama":
		baseURL := llm.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return NewOllama(baseURL, llm.Model, systemPrompt, llm.MaxTokens, timeout), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", llm.Provider)
	}
}

// postJSON sends body to url and decodes a 200 response into out.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Provider: provider, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// truncateStr cuts s to at most n runes.
func truncateStr(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
