package agent

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rainagent/rain/internal/llm"
	"github.com/rainagent/rain/internal/tools"
)

// Looked up lazily so a provider installed after package init is honoured.
func tracer() trace.Tracer {
	return otel.Tracer("github.com/rainagent/rain/internal/agent")
}

type invokeSpan struct {
	span trace.Span
}

func startInvokeSpan(ctx context.Context, model, input string) (context.Context, *invokeSpan) {
	ctx, span := tracer().Start(ctx, "rain.invoke_agent", trace.WithAttributes(
		attribute.String("gen_ai.operation.name", "invoke_agent"),
		attribute.String("gen_ai.agent.name", "rain"),
		attribute.String("gen_ai.request.model", model),
		attribute.Int("rain.input.length", len(input)),
	))
	return ctx, &invokeSpan{span: span}
}

func (s *invokeSpan) finish(toolsUsed int, stopped bool) {
	s.span.SetAttributes(
		attribute.Int("rain.tools.used", toolsUsed),
		attribute.Bool("rain.stopped", stopped),
	)
	s.span.End()
}

func (s *invokeSpan) fail(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
	s.span.End()
}

// tracedTool wraps a tool so every call gets its own span.
type tracedTool struct {
	tools.Tool
	name string
}

func traced(t tools.Tool) tools.Tool {
	return tracedTool{Tool: t, name: t.Def().Name}
}

func (t tracedTool) Call(ctx context.Context, argsJSON string) string {
	ctx, span := tracer().Start(ctx, "rain.execute_tool "+t.name, trace.WithAttributes(
		attribute.String("gen_ai.operation.name", "execute_tool"),
		attribute.String("gen_ai.tool.name", t.name),
	))
	defer span.End()
	out := t.Tool.Call(ctx, argsJSON)
	span.SetAttributes(attribute.Int("rain.tool.result_length", len(out)))
	return out
}

// tracedProvider wraps each model round in a span.
type tracedProvider struct {
	llm.Provider
}

func (p tracedProvider) ChatWithTools(ctx context.Context, messages []tools.Message, defs []tools.ToolDef) (tools.Reply, error) {
	ctx, span := tracer().Start(ctx, "rain.chat", trace.WithAttributes(
		attribute.String("gen_ai.operation.name", "chat"),
		attribute.String("gen_ai.request.model", p.Name()),
		attribute.Int("rain.messages", len(messages)),
	))
	defer span.End()
	reply, err := p.Provider.ChatWithTools(ctx, messages, defs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return reply, err
	}
	span.SetAttributes(
		attribute.String("gen_ai.response.finish_reason", reply.FinishReason),
		attribute.Int("rain.tool_calls", len(reply.ToolCalls)),
	)
	return reply, nil
}
