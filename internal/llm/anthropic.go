package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rainagent/rain/internal/tools"
)

const defaultAnthropicURL = "https://api.anthropic.com"

// AnthropicProvider implements Provider for the Anthropic Messages API.
type AnthropicProvider struct {
	baseURL      string
	apiKey       string
	model        string
	systemPrompt string
	maxTokens    int
	client       *http.Client
}

// NewAnthropic creates a new Anthropic provider. An empty baseURL uses the
// public API.
func NewAnthropic(baseURL, apiKey, model, systemPrompt string, maxTokens int, timeout time.Duration) *AnthropicProvider {
	if baseURL == "" {
		baseURL = defaultAnthropicURL
	}
	if maxTokens <= 0 {
		maxTokens = 1024 // required by the API
	}
	return &AnthropicProvider{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		model:        model,
		systemPrompt: systemPrompt,
		maxTokens:    maxTokens,
		client:       newHTTPClient(timeout),
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

// anthropicBlock is a text, tool_use, or tool_result content block.
type anthropicBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type anthropicTool struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	InputSchema tools.ToolParameters `json:"input_schema"`
}

type anthropicResponse struct {
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *AnthropicProvider) ChatWithTools(ctx context.Context, messages []tools.Message, defs []tools.ToolDef) (tools.Reply, error) {
	reqBody := anthropicRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System:    p.systemPrompt,
		Messages:  toAnthropicMessages(messages),
	}
	for _, d := range defs {
		reqBody.Tools = append(reqBody.Tools, anthropicTool{Name: d.Name, Description: d.Description, InputSchema: d.Parameters})
	}

	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": "2023-06-01",
	}
	var resp anthropicResponse
	if err := postJSON(ctx, p.client, "Anthropic", p.baseURL+"/v1/messages", headers, reqBody, &resp); err != nil {
		return tools.Reply{}, err
	}

	if resp.Error != nil {
		return tools.Reply{}, fmt.Errorf("Anthropic error: %s", resp.Error.Message)
	}
	if len(resp.Content) == 0 {
		return tools.Reply{}, errors.New("Anthropic returned empty content")
	}

	var (
		reply tools.Reply
		text  []string
	)
	for _, b := range resp.Content {
		switch b.Type {
		case "text":
			text = append(text, b.Text)
		case "tool_use":
			args := string(b.Input)
			if args == "" || args == "null" {
				args = "{}"
			}
			reply.ToolCalls = append(reply.ToolCalls, tools.ToolCall{ID: b.ID, Name: b.Name, ArgsJSON: args})
		}
	}
	reply.Content = strings.TrimSpace(strings.Join(text, "\n"))
	reply.FinishReason = "stop"
	if len(reply.ToolCalls) > 0 {
		reply.FinishReason = "tool_calls"
	}
	return reply, nil
}

// toAnthropicMessages maps the loop transcript onto Messages API turns.
// Tool results become tool_result blocks in a user turn; consecutive results
// share one turn since roles must alternate.
func toAnthropicMessages(messages []tools.Message) []anthropicMessage {
	var out []anthropicMessage
	for _, m := range messages {
		switch m.Role {
		case "system":
			continue
		case "tool":
			block := anthropicBlock{Type: "tool_result", ToolUseID: m.ToolCallID, Content: m.Content}
			if n := len(out); n > 0 && out[n-1].Role == "user" && out[n-1].Content[0].Type == "tool_result" {
				out[n-1].Content = append(out[n-1].Content, block)
				continue
			}
			out = append(out, anthropicMessage{Role: "user", Content: []anthropicBlock{block}})
		case "assistant":
			var blocks []anthropicBlock
			if m.Content != "" {
				blocks = append(blocks, anthropicBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				input := json.RawMessage(tc.ArgsJSON)
				if !json.Valid(input) {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropicBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: input})
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropicMessage{Role: "assistant", Content: blocks})
		default:
			out = append(out, anthropicMessage{Role: "user", Content: []anthropicBlock{{Type: "text", Text: m.Content}}})
		}
	}
	return out
}

func (p *AnthropicProvider) Name() string {
	return fmt.Sprintf("anthropic (%s)", p.model)
}
