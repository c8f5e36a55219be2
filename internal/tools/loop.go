package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxIterations bounds LLM→tool→LLM cycles per invocation.
const DefaultMaxIterations = 15

// StoppedOutput is returned as the final answer when the iteration budget
// runs out or the context deadline passes.
const StoppedOutput = "Agent stopped due to iteration limit or time limit."

// StepKind tells an Observer what happened in the loop.
type StepKind string

const (
	StepInvoke      StepKind = "invoke"      // the model asked for a tool call
	StepObservation StepKind = "observation" // a tool returned its result
	StepFinal       StepKind = "final"       // the model produced its answer
)

// Step is one event of the agent loop.
type Step struct {
	Round   int      `json:"round"`
	Kind    StepKind `json:"kind"`
	Tool    string   `json:"tool,omitempty"`
	Args    string   `json:"args,omitempty"`
	Content string   `json:"content,omitempty"` // model text alongside a call, tool output, or final answer
}

// Observer receives loop steps as they happen. It must not block.
type Observer func(Step)

// ToolUse records a single tool invocation during the agent loop.
type ToolUse struct {
	Name    string // tool name, e.g. "web_search"
	Summary string // first 80 chars of the result, for display
}

// LoopOptions configures RunAgentLoop.
type LoopOptions struct {
	MaxIterations int
	Observer      Observer
}

// LoopResult is what RunAgentLoop produced.
type LoopResult struct {
	Output  string
	Used    []ToolUse
	Stopped bool // iteration budget exhausted
}

// RunAgentLoop drives the multi-turn tool-calling loop for a single user message.
//
// Flow:
//  1. Call LLM with messages + tool definitions.
//  2. If finish_reason == "tool_calls": execute each requested tool in order, append results, loop.
//  3. Otherwise: return the final text reply.
//
// When MaxIterations rounds pass without a final reply, or ctx's deadline
// expires, the loop gives up and returns StoppedOutput as the answer.
// Cancellation is still returned as an error.
func RunAgentLoop(
	ctx context.Context,
	provider ChatToolProvider,
	messages []Message,
	tools []Tool,
	opts LoopOptions,
) (LoopResult, error) {
	maxRounds := opts.MaxIterations
	if maxRounds <= 0 {
		maxRounds = DefaultMaxIterations
	}
	emit := opts.Observer
	if emit == nil {
		emit = func(Step) {}
	}

	toolMap := make(map[string]Tool, len(tools))
	toolDefs := make([]ToolDef, len(tools))
	names := make([]string, len(tools))
	for i, t := range tools {
		def := t.Def()
		toolMap[def.Name] = t
		toolDefs[i] = def
		names[i] = def.Name
	}

	// Work on a copy of messages so the caller's slice is not modified.
	msgs := make([]Message, len(messages))
	copy(msgs, messages)

	var res LoopResult
	stop := func(round int) (LoopResult, error) {
		res.Output = StoppedOutput
		res.Stopped = true
		emit(Step{Round: round, Kind: StepFinal, Content: StoppedOutput})
		return res, nil
	}

	for round := 1; round <= maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return stop(round)
			}
			return res, err
		}

		reply, err := provider.ChatWithTools(ctx, msgs, toolDefs)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return stop(round)
			}
			return res, err
		}

		if reply.FinishReason != "tool_calls" || len(reply.ToolCalls) == 0 {
			res.Output = reply.Content
			emit(Step{Round: round, Kind: StepFinal, Content: reply.Content})
			return res, nil
		}

		// Keep reasoning_content so thinking models can verify the chain next turn.
		msgs = append(msgs, Message{
			Role:             "assistant",
			Content:          reply.Content,
			ReasoningContent: reply.ReasoningContent,
			ToolCalls:        reply.ToolCalls,
		})

		for _, call := range reply.ToolCalls {
			emit(Step{Round: round, Kind: StepInvoke, Tool: call.Name, Args: call.ArgsJSON, Content: reply.Content})
			result := dispatchTool(ctx, toolMap, names, call)
			emit(Step{Round: round, Kind: StepObservation, Tool: call.Name, Content: result})
			res.Used = append(res.Used, ToolUse{Name: call.Name, Summary: truncate80(result)})
			msgs = append(msgs, Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    result,
			})
		}
	}

	return stop(maxRounds)
}

func truncate80(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) > 80 {
		return string([]rune(s)[:80]) + "…"
	}
	return s
}

// dispatchTool executes a single tool call.
func dispatchTool(ctx context.Context, toolMap map[string]Tool, names []string, call ToolCall) string {
	t, ok := toolMap[call.Name]
	if !ok {
		return fmt.Sprintf("%s is not a valid tool, try one of [%s].", call.Name, strings.Join(names, ", "))
	}
	args := call.ArgsJSON
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	return t.Call(ctx, args)
}
