// Package tools provides the tools the agent can call during chat.
// It defines the Tool interface, shared wire types, and the agentic loop.
package tools

import "context"

// Tool is a callable function the agent can invoke.
type Tool interface {
	// Def returns the tool's definition (name, description, parameters schema).
	Def() ToolDef
	// Call executes the tool with JSON-encoded arguments and returns the result string.
	// Failures are reported in the returned text, never as a Go error, so the
	// model can read them and react.
	Call(ctx context.Context, argsJSON string) string
}

// ToolDef is the OpenAI-compatible tool definition passed to the LLM.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  ToolParameters `json:"parameters"`
}

// ToolParameters describes the JSON Schema for the tool's input.
type ToolParameters struct {
	Type       string                  `json:"type"`
	Properties map[string]ToolProperty `json:"properties"`
	Required   []string                `json:"required,omitempty"`
}

// ToolProperty describes a single parameter field.
type ToolProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Message is a chat message that supports all roles including tool results.
type Message struct {
	Role             string     `json:"role"`                        // system, user, assistant, tool
	Content          string     `json:"content,omitempty"`           // text content
	ReasoningContent string     `json:"reasoning_content,omitempty"` // thinking models
	ToolCallID       string     `json:"tool_call_id,omitempty"`      // for role=tool
	Name             string     `json:"name,omitempty"`              // tool name for role=tool
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`        // for assistant with pending calls
}

// ToolCall is a tool invocation requested by the LLM.
type ToolCall struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ArgsJSON string `json:"args_json"`
}

// Reply is one model turn.
type Reply struct {
	Content          string
	ReasoningContent string
	ToolCalls        []ToolCall
	// FinishReason is "tool_calls" when the model wants to invoke tools,
	// or "stop" when it has a final text reply.
	FinishReason string
}

// ChatToolProvider is an LLM provider that supports the tool-calling protocol.
// The provider prepends its configured system prompt; callers should not
// include a system message.
type ChatToolProvider interface {
	ChatWithTools(ctx context.Context, messages []Message, tools []ToolDef) (Reply, error)
}
