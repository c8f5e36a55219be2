// Package agent assembles the tool-calling executor: a chat model, the three
// tools with the user's credentials bound, and the system prompt.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rainagent/rain/internal/config"
	"github.com/rainagent/rain/internal/knowledge"
	"github.com/rainagent/rain/internal/llm"
	"github.com/rainagent/rain/internal/mailer"
	"github.com/rainagent/rain/internal/search"
	"github.com/rainagent/rain/internal/tools"
)

// Credentials are supplied by the user per session and never persisted.
type Credentials struct {
	GroqAPIKey       string `json:"groq_api_key"`
	SenderEmail      string `json:"sender_email"`
	EmailPassword    string `json:"email_password"`
	DefaultRecipient string `json:"default_recipient"`
}

// Trimmed returns a copy with surrounding whitespace removed.
func (c Credentials) Trimmed() Credentials {
	return Credentials{
		GroqAPIKey:       strings.TrimSpace(c.GroqAPIKey),
		SenderEmail:      strings.TrimSpace(c.SenderEmail),
		EmailPassword:    strings.TrimSpace(c.EmailPassword),
		DefaultRecipient: strings.TrimSpace(c.DefaultRecipient),
	}
}

// Complete reports whether all four fields are filled in.
func (c Credentials) Complete() bool {
	t := c.Trimmed()
	return t.GroqAPIKey != "" && t.SenderEmail != "" && t.EmailPassword != "" && t.DefaultRecipient != ""
}

// ErrIncompleteCredentials is returned by New when a field is blank.
var ErrIncompleteCredentials = errors.New("incomplete credentials")

// Option customizes New. Tests use these to replace network dependencies.
type Option func(*options)

type options struct {
	provider llm.Provider
	mailer   tools.Mailer
	searcher tools.Searcher
}

// WithProvider uses p instead of building one from config.
func WithProvider(p llm.Provider) Option { return func(o *options) { o.provider = p } }

// WithMailer uses m instead of SMTP.
func WithMailer(m tools.Mailer) Option { return func(o *options) { o.mailer = m } }

// WithSearcher uses s instead of the DuckDuckGo client.
func WithSearcher(s tools.Searcher) Option { return func(o *options) { o.searcher = s } }

// Executor runs user requests through the tool-calling loop.
// It is safe for concurrent use; each Invoke is independent.
type Executor struct {
	provider      llm.Provider
	tools         []tools.Tool
	maxIterations int
	noOutput      string
}

// Response is the outcome of one Invoke.
type Response struct {
	Output   string       `json:"output"`
	Thoughts string       `json:"thoughts"`
	Steps    []tools.Step `json:"steps"`
	Stopped  bool         `json:"stopped,omitempty"`
}

// New builds an executor for one set of credentials.
func New(cfg *config.Config, creds Credentials, opts ...Option) (*Executor, error) {
	creds = creds.Trimmed()
	if !creds.Complete() {
		return nil, ErrIncompleteCredentials
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.provider == nil {
		p, err := llm.NewProvider(cfg, creds.GroqAPIKey, knowledge.SystemPrompt(cfg.Agent.SystemPrompt))
		if err != nil {
			return nil, fmt.Errorf("create provider: %w", err)
		}
		o.provider = p
	}
	if o.mailer == nil {
		o.mailer = mailer.New(cfg.Email.SMTPHost, cfg.Email.SMTPPort)
	}
	if o.searcher == nil {
		o.searcher = search.New(cfg.Search.Endpoint, cfg.Search.MaxResults)
	}

	toolset := []tools.Tool{
		tools.NewWebSearchTool(o.searcher),
		tools.NewSendEmailTool(o.mailer, tools.EmailCredentials{
			SenderEmail:      creds.SenderEmail,
			Password:         creds.EmailPassword,
			DefaultRecipient: creds.DefaultRecipient,
		}),
		tools.NewSaveNoteTool(cfg.Notes.Dir),
	}
	for i, t := range toolset {
		toolset[i] = traced(t)
	}

	ex := &Executor{
		provider:      tracedProvider{o.provider},
		tools:         toolset,
		maxIterations: cfg.Agent.MaxIterations,
		noOutput:      knowledge.UI().NoOutput,
	}
	slog.Debug("agent ready", "model", ex.Name(), "tools", ex.toolNames())
	return ex, nil
}

// Name describes the underlying model.
func (e *Executor) Name() string {
	return e.provider.Name()
}

// toolNames lists the tools in the order they are offered to the model.
func (e *Executor) toolNames() []string {
	names := make([]string, len(e.tools))
	for i, t := range e.tools {
		names[i] = t.Def().Name
	}
	return names
}

// Invoke answers a single request. Only input is sent to the model; earlier
// turns of the conversation are not included. observer may be nil.
func (e *Executor) Invoke(ctx context.Context, input string, observer tools.Observer) (*Response, error) {
	ctx, span := startInvokeSpan(ctx, e.provider.Name(), input)

	var (
		steps    []tools.Step
		thoughts = newThoughtLog()
	)
	record := func(s tools.Step) {
		steps = append(steps, s)
		thoughts.add(s)
		if observer != nil {
			observer(s)
		}
	}

	slog.Debug("agent invoke", "model", e.provider.Name(), "input_len", len(input))
	res, err := tools.RunAgentLoop(ctx, e.provider,
		[]tools.Message{{Role: "user", Content: input}},
		e.tools,
		tools.LoopOptions{MaxIterations: e.maxIterations, Observer: record},
	)
	if err != nil {
		span.fail(err)
		slog.Warn("agent invoke failed", "err", err)
		return nil, err
	}

	output := strings.TrimSpace(res.Output)
	if output == "" {
		output = e.noOutput
	}
	span.finish(len(res.Used), res.Stopped)
	slog.Info("agent answered", "tools_used", len(res.Used), "stopped", res.Stopped)

	return &Response{
		Output:   output,
		Thoughts: thoughts.String(),
		Steps:    steps,
		Stopped:  res.Stopped,
	}, nil
}
