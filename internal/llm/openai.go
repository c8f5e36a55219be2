package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rainagent/rain/internal/tools"
)

// OpenAIProvider implements Provider for any OpenAI-compatible API
// (Groq, OpenAI, Together AI, vLLM, etc.).
type OpenAIProvider struct {
	baseURL      string
	apiKey       string
	model        string
	systemPrompt string
	maxTokens    int
	client       *http.Client
}

// NewOpenAI creates a new OpenAI-compatible provider.
func NewOpenAI(baseURL, apiKey, model, systemPrompt string, maxTokens int, timeout time.Duration) *OpenAIProvider {
	return &OpenAIProvider{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		model:        model,
		systemPrompt: systemPrompt,
		maxTokens:    maxTokens,
		client:       newHTTPClient(timeout),
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Tools     []chatTool    `json:"tools,omitempty"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role             string         `json:"role"`
	Content          string         `json:"content,omitempty"`
	ReasoningContent string         `json:"reasoning_content,omitempty"` // thinking models (Kimi, DeepSeek, etc.)
	ToolCalls        []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID       string         `json:"tool_call_id,omitempty"`
	Name             string         `json:"name,omitempty"`
}

type chatTool struct {
	Type     string        `json:"type"`
	Function tools.ToolDef `json:"function"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *OpenAIProvider) ChatWithTools(ctx context.Context, messages []tools.Message, defs []tools.ToolDef) (tools.Reply, error) {
	reqBody := chatRequest{
		Model:     p.model,
		Messages:  p.toChatMessages(messages),
		MaxTokens: p.maxTokens,
	}
	for _, d := range defs {
		reqBody.Tools = append(reqBody.Tools, chatTool{Type: "function", Function: d})
	}

	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	var chatResp chatResponse
	if err := postJSON(ctx, p.client, "LLM", p.baseURL+"/chat/completions", headers, reqBody, &chatResp); err != nil {
		return tools.Reply{}, err
	}

	if chatResp.Error != nil {
		return tools.Reply{}, fmt.Errorf("LLM error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return tools.Reply{}, errors.New("LLM returned empty choices")
	}

	choice := chatResp.Choices[0]
	msg := choice.Message
	reply := tools.Reply{
		Content:          strings.TrimSpace(msg.Content),
		ReasoningContent: msg.ReasoningContent,
		FinishReason:     "stop",
	}
	for _, tc := range msg.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, tools.ToolCall{
			ID:       tc.ID,
			Name:     tc.Function.Name,
			ArgsJSON: tc.Function.Arguments,
		})
	}
	if len(reply.ToolCalls) > 0 {
		reply.FinishReason = "tool_calls"
		return reply, nil
	}

	// Thinking models (Kimi K2.5, DeepSeek-R1, etc.) may put the answer
	// in reasoning_content instead of content (when max_tokens is exhausted
	// by reasoning). Extract just the last paragraph as the likely conclusion.
	if reply.Content == "" && msg.ReasoningContent != "" {
		reply.Content = extractConclusion(msg.ReasoningContent)
	}
	return reply, nil
}

func (p *OpenAIProvider) toChatMessages(messages []tools.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages)+1)
	if p.systemPrompt != "" {
		out = append(out, chatMessage{Role: "system", Content: p.systemPrompt})
	}
	for _, m := range messages {
		cm := chatMessage{
			Role:             m.Role,
			Content:          m.Content,
			ReasoningContent: m.ReasoningContent,
			ToolCallID:       m.ToolCallID,
			Name:             m.Name,
		}
		for _, tc := range m.ToolCalls {
			call := chatToolCall{ID: tc.ID, Type: "function"}
			call.Function.Name = tc.Name
			call.Function.Arguments = tc.ArgsJSON
			cm.ToolCalls = append(cm.ToolCalls, call)
		}
		out = append(out, cm)
	}
	return out
}

func (p *OpenAIProvider) Name() string {
	return fmt.Sprintf("openai-compat (%s)", p.model)
}

// extractConclusion pulls the last non-empty paragraph from a thinking model's
// reasoning chain, which is typically the final answer/conclusion.
func extractConclusion(reasoning string) string {
	reasoning = strings.TrimSpace(reasoning)
	parts := strings.Split(reasoning, "\n\n")
	for i := len(parts) - 1; i >= 0; i-- {
		p := strings.TrimSpace(parts[i])
		if p != "" {
			return p
		}
	}
	return reasoning
}
