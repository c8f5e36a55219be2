package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rainagent/rain/internal/tools"
)

// OllamaProvider implements Provider for a local Ollama instance.
type OllamaProvider struct {
	baseURL      string
	model        string
	systemPrompt string
	maxTokens    int
	client       *http.Client
}

// NewOllama creates a new Ollama provider.
func NewOllama(baseURL, model, systemPrompt string, maxTokens int, timeout time.Duration) *OllamaProvider {
	return &OllamaProvider{
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        model,
		systemPrompt: systemPrompt,
		maxTokens:    maxTokens,
		client:       newHTTPClient(timeout), // local models can be slower
	}
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Tools    []chatTool      `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

// Ollama passes arguments as a JSON object, not a string.
type ollamaToolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaResponse struct {
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error,omitempty"`
}

func (p *OllamaProvider) ChatWithTools(ctx context.Context, messages []tools.Message, defs []tools.ToolDef) (tools.Reply, error) {
	reqBody := ollamaRequest{
		Model:    p.model,
		Messages: p.toOllamaMessages(messages),
		Stream:   false,
	}
	if p.maxTokens > 0 {
		reqBody.Options = &ollamaOptions{NumPredict: p.maxTokens}
	}
	for _, d := range defs {
		reqBody.Tools = append(reqBody.Tools, chatTool{Type: "function", Function: d})
	}

	var resp ollamaResponse
	if err := postJSON(ctx, p.client, "Ollama", p.baseURL+"/api/chat", nil, reqBody, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return tools.Reply{}, err
		}
		return tools.Reply{}, fmt.Errorf("%w (is Ollama running?)", err)
	}
	if resp.Error != "" {
		return tools.Reply{}, fmt.Errorf("Ollama error: %s", resp.Error)
	}

	reply := tools.Reply{
		Content:      strings.TrimSpace(resp.Message.Content),
		FinishReason: "stop",
	}
	for _, tc := range resp.Message.ToolCalls {
		args := string(tc.Function.Arguments)
		if args == "" || args == "null" {
			args = "{}"
		}
		// Ollama does not assign call IDs.
		reply.ToolCalls = append(reply.ToolCalls, tools.ToolCall{
			ID:       "call_" + uuid.NewString(),
			Name:     tc.Function.Name,
			ArgsJSON: args,
		})
	}
	if len(reply.ToolCalls) > 0 {
		reply.FinishReason = "tool_calls"
	}
	return reply, nil
}

func (p *OllamaProvider) toOllamaMessages(messages []tools.Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(messages)+1)
	if p.systemPrompt != "" {
		out = append(out, ollamaMessage{Role: "system", Content: p.systemPrompt})
	}
	for _, m := range messages {
		om := ollamaMessage{Role: m.Role, Content: m.Content}
		if m.Role == "tool" {
			om.ToolName = m.Name
		}
		for _, tc := range m.ToolCalls {
			var call ollamaToolCall
			call.Function.Name = tc.Name
			call.Function.Arguments = json.RawMessage(tc.ArgsJSON)
			if !json.Valid(call.Function.Arguments) {
				call.Function.Arguments = json.RawMessage("{}")
			}
			om.ToolCalls = append(om.ToolCalls, call)
		}
		out = append(out, om)
	}
	return out
}

func (p *OllamaProvider) Name() string {
	return fmt.Sprintf("ollama (%s)", p.model)
}
