package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainagent/rain/internal/config"
	"github.com/rainagent/rain/internal/tools"
)

var searchDef = tools.ToolDef{
	Name:        "web_search",
	Description: "search",
	Parameters: tools.ToolParameters{
		Type:       "object",
		Properties: map[string]tools.ToolProperty{"query": {Type: "string"}},
		Required:   []string{"query"},
	},
}

type captured struct {
	mu     sync.Mutex
	path   string
	header http.Header
	body   []byte
}

func (c *captured) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

func (c *captured) Header(k string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.header.Get(k)
}

func (c *captured) Decode(t *testing.T, v any) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NoError(t, json.Unmarshal(c.body, v))
}

// captureServer answers every request with body and records the last request.
func captureServer(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.path, c.header, c.body = r.URL.Path, r.Header.Clone(), b
		c.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestOpenAIToolCall(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK, `{
		"choices": [{
			"finish_reason": "tool_calls",
			"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "web_search", "arguments": "{\"query\":\"go\"}"}}]
			}
		}]
	}`)

	p := NewOpenAI(srv.URL+"/", "gsk_test", "llama", "be helpful", 512, time.Second)
	reply, err := p.ChatWithTools(context.Background(), []tools.Message{{Role: "user", Content: "search go"}}, []tools.ToolDef{searchDef})
	require.NoError(t, err)

	want := tools.Reply{
		FinishReason: "tool_calls",
		ToolCalls:    []tools.ToolCall{{ID: "call_1", Name: "web_search", ArgsJSON: `{"query":"go"}`}},
	}
	if diff := cmp.Diff(want, reply); diff != "" {
		t.Errorf("reply mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "/chat/completions", got.Path())
	assert.Equal(t, "Bearer gsk_test", got.Header("Authorization"))

	var sent chatRequest
	got.Decode(t, &sent)
	assert.Equal(t, "llama", sent.Model)
	assert.Equal(t, 512, sent.MaxTokens)
	require.Len(t, sent.Messages, 2)
	assert.Equal(t, chatMessage{Role: "system", Content: "be helpful"}, sent.Messages[0])
	require.Len(t, sent.Tools, 1)
	assert.Equal(t, "function", sent.Tools[0].Type)
	assert.Equal(t, "web_search", sent.Tools[0].Function.Name)
}

func TestOpenAISendsToolResults(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK, `{"choices":[{"finish_reason":"stop","message":{"role":"assistant","content":" Done. "}}]}`)
	p := NewOpenAI(srv.URL, "k", "m", "", 0, time.Second)

	reply, err := p.ChatWithTools(context.Background(), []tools.Message{
		{Role: "user", Content: "q"},
		{Role: "assistant", ToolCalls: []tools.ToolCall{{ID: "c1", Name: "web_search", ArgsJSON: `{}`}}},
		{Role: "tool", ToolCallID: "c1", Name: "web_search", Content: "result"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, tools.Reply{Content: "Done.", FinishReason: "stop"}, reply)

	var sent chatRequest
	got.Decode(t, &sent)
	require.Len(t, sent.Messages, 3) // no system prompt configured
	assert.Equal(t, "c1", sent.Messages[1].ToolCalls[0].ID)
	assert.Equal(t, "function", sent.Messages[1].ToolCalls[0].Type)
	assert.Equal(t, "c1", sent.Messages[2].ToolCallID)
	assert.Empty(t, sent.Tools)
}

func TestOpenAIReasoningFallback(t *testing.T) {
	srv, _ := captureServer(t, http.StatusOK, `{"choices":[{"message":{"content":"","reasoning_content":"thinking...\n\nThe answer is 4."}}]}`)
	p := NewOpenAI(srv.URL, "k", "m", "", 0, time.Second)

	reply, err := p.ChatWithTools(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "The answer is 4.", reply.Content)
	assert.Equal(t, "stop", reply.FinishReason)
}

func TestOpenAIErrors(t *testing.T) {
	srv, _ := captureServer(t, http.StatusUnauthorized, `{"error":{"message":"Invalid API Key"}}`)
	p := NewOpenAI(srv.URL, "bad", "m", "", 0, time.Second)

	_, err := p.ChatWithTools(context.Background(), nil, nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Invalid API Key")

	empty, _ := captureServer(t, http.StatusOK, `{"choices":[]}`)
	_, err = NewOpenAI(empty.URL, "k", "m", "", 0, time.Second).ChatWithTools(context.Background(), nil, nil)
	assert.EqualError(t, err, "LLM returned empty choices")
}

func TestAnthropicToolUse(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK, `{
		"stop_reason": "tool_use",
		"content": [
			{"type": "text", "text": "Let me look."},
			{"type": "tool_use", "id": "toolu_1", "name": "web_search", "input": {"query": "go"}}
		]
	}`)
	p := NewAnthropic(srv.URL, "sk-ant", "claude", "sys", 0, time.Second)

	reply, err := p.ChatWithTools(context.Background(), []tools.Message{
		{Role: "user", Content: "q"},
		{Role: "assistant", ToolCalls: []tools.ToolCall{{ID: "a", Name: "web_search", ArgsJSON: `{"query":"x"}`}, {ID: "b", Name: "save_note", ArgsJSON: `{}`}}},
		{Role: "tool", ToolCallID: "a", Content: "r1"},
		{Role: "tool", ToolCallID: "b", Content: "r2"},
	}, []tools.ToolDef{searchDef})
	require.NoError(t, err)

	assert.Equal(t, "tool_calls", reply.FinishReason)
	assert.Equal(t, "Let me look.", reply.Content)
	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "toolu_1", reply.ToolCalls[0].ID)
	assert.JSONEq(t, `{"query":"go"}`, reply.ToolCalls[0].ArgsJSON)

	assert.Equal(t, "/v1/messages", got.Path())
	assert.Equal(t, "sk-ant", got.Header("x-api-key"))
	assert.Equal(t, "2023-06-01", got.Header("anthropic-version"))

	var sent anthropicRequest
	got.Decode(t, &sent)
	assert.Equal(t, "sys", sent.System)
	assert.Equal(t, 1024, sent.MaxTokens)
	require.Len(t, sent.Tools, 1)
	assert.Equal(t, []string{"query"}, sent.Tools[0].InputSchema.Required)

	// user, assistant(tool_use x2), user(tool_result x2)
	require.Len(t, sent.Messages, 3)
	assert.Equal(t, "assistant", sent.Messages[1].Role)
	assert.Len(t, sent.Messages[1].Content, 2)
	assert.Equal(t, "user", sent.Messages[2].Role)
	require.Len(t, sent.Messages[2].Content, 2)
	assert.Equal(t, "tool_result", sent.Messages[2].Content[1].Type)
	assert.Equal(t, "b", sent.Messages[2].Content[1].ToolUseID)
}

func TestAnthropicFinalText(t *testing.T) {
	srv, _ := captureServer(t, http.StatusOK, `{"stop_reason":"end_turn","content":[{"type":"text","text":"Hi there"}]}`)
	reply, err := NewAnthropic(srv.URL, "k", "m", "", 100, time.Second).ChatWithTools(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, tools.Reply{Content: "Hi there", FinishReason: "stop"}, reply)
}

func TestOllamaToolCallsGetIDs(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK, `{
		"message": {"role": "assistant", "content": "", "tool_calls": [
			{"function": {"name": "save_note", "arguments": {"filename": "a.txt", "content": "x"}}}
		]}
	}`)
	p := NewOllama(srv.URL, "llama3.1", "sys", 256, time.Second)

	reply, err := p.ChatWithTools(context.Background(), []tools.Message{{Role: "user", Content: "save"}}, []tools.ToolDef{searchDef})
	require.NoError(t, err)

	assert.Equal(t, "/api/chat", got.Path())
	assert.Equal(t, "tool_calls", reply.FinishReason)
	require.Len(t, reply.ToolCalls, 1)
	assert.True(t, strings.HasPrefix(reply.ToolCalls[0].ID, "call_"))
	assert.Equal(t, "save_note", reply.ToolCalls[0].Name)
	assert.JSONEq(t, `{"filename":"a.txt","content":"x"}`, reply.ToolCalls[0].ArgsJSON)

	var sent ollamaRequest
	got.Decode(t, &sent)
	assert.False(t, sent.Stream)
	require.NotNil(t, sent.Options)
	assert.Equal(t, 256, sent.Options.NumPredict)
	assert.Equal(t, "system", sent.Messages[0].Role)
	require.Len(t, sent.Tools, 1)
}

func TestOllamaConnectionError(t *testing.T) {
	p := NewOllama("http://127.0.0.1:1", "m", "", 0, time.Second)
	_, err := p.ChatWithTools(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is Ollama running?")
}

func TestNewProvider(t *testing.T) {
	cfg := config.DefaultConfig()

	p, err := NewProvider(cfg, "gsk_key", "sys")
	require.NoError(t, err)
	openai, ok := p.(*OpenAIProvider)
	require.True(t, ok)
	assert.Equal(t, "gsk_key", openai.apiKey)
	assert.Equal(t, "https://api.groq.com/openai/v1", openai.baseURL)
	assert.Equal(t, "openai-compat (meta-llama/llama-4-maverick-17b-128e-instruct)", p.Name())

	cfg.LLM.APIKey = "from-file"
	p, err = NewProvider(cfg, "", "sys")
	require.NoError(t, err)
	assert.Equal(t, "from-file", p.(*OpenAIProvider).apiKey)

	cfg.LLM.Provider = "ollama"
	cfg.LLM.BaseURL = ""
	p, err = NewProvider(cfg, "", "sys")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434", p.(*OllamaProvider).baseURL)

	cfg.LLM.Provider = "anthropic"
	p, err = NewProvider(cfg, "", "sys")
	require.NoError(t, err)
	assert.Equal(t, defaultAnthropicURL, p.(*AnthropicProvider).baseURL)

	cfg.LLM.Provider = "platform"
	_, err = NewProvider(cfg, "", "sys")
	assert.EqualError(t, err, "unknown LLM provider: platform")
}

func TestExtractConclusion(t *testing.T) {
	assert.Equal(t, "final", extractConclusion("a\n\nb\n\nfinal\n\n"))
	assert.Equal(t, "single", extractConclusion("  single "))
}

func TestAPIErrorKeepsRunesWhole(t *testing.T) {
	body := strings.Repeat("é", 300)
	err := &APIError{Provider: "LLM", StatusCode: 500, Body: body}

	msg := err.Error()
	assert.True(t, utf8.ValidString(msg))
	assert.Equal(t, "LLM returned 500: "+strings.Repeat("é", 200)+"...", msg)
	assert.Equal(t, "abc", truncateStr("abc", 200))
}
