package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainagent/rain/internal/mailer"
	"github.com/rainagent/rain/internal/search"
)

type fakeMailer struct {
	sent []mailer.Message
	auth []mailer.Auth
	err  error
}

func (f *fakeMailer) Send(_ context.Context, auth mailer.Auth, msg mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	f.auth = append(f.auth, auth)
	return nil
}

type fakeSearcher struct {
	query   string
	results []search.Result
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]search.Result, error) {
	f.query = query
	return f.results, f.err
}

func TestSubjectFromContent(t *testing.T) {
	long := strings.Repeat("a", 60)
	cases := []struct {
		name, in, want string
	}{
		{"first line", "Project done\nReport attached.", "Project done"},
		{"trimmed", "  \n  Hello there  \nbye", "Hello there"},
		{"exactly fifty", strings.Repeat("b", 50), strings.Repeat("b", 50)},
		{"cut", long, strings.Repeat("a", 50) + "..."},
		{"runes", strings.Repeat("é", 51), strings.Repeat("é", 50) + "..."},
		{"empty", "", "No Subject"},
		{"blank", "   \n\t", "No Subject"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SubjectFromContent(tc.in))
		})
	}
}

func TestSendEmailUsesExplicitRecipient(t *testing.T) {
	m := &fakeMailer{}
	tool := NewSendEmailTool(m, EmailCredentials{SenderEmail: "me@example.com", Password: "pw", DefaultRecipient: "default@example.com"})

	out := tool.Call(context.Background(), `{"content":"The project is done.\nReport attached.","recipient_email":"boss@example.com"}`)

	assert.Equal(t, "Email sent successfully to boss@example.com!", out)
	require.Len(t, m.sent, 1)
	assert.Equal(t, mailer.Message{
		From:    "me@example.com",
		To:      "boss@example.com",
		Subject: "The project is done.",
		Body:    "The project is done.\nReport attached.",
	}, m.sent[0])
	assert.Equal(t, mailer.Auth{Username: "me@example.com", Password: "pw"}, m.auth[0])
}

func TestSendEmailFallsBackToDefaultRecipient(t *testing.T) {
	m := &fakeMailer{}
	tool := NewSendEmailTool(m, EmailCredentials{SenderEmail: "me@example.com", Password: "pw", DefaultRecipient: "default@example.com"})

	out := tool.Call(context.Background(), `{"content":"hi"}`)

	assert.Equal(t, "Email sent successfully to default@example.com!", out)
	require.Len(t, m.sent, 1)
	assert.Equal(t, "default@example.com", m.sent[0].To)
}

func TestSendEmailErrors(t *testing.T) {
	t.Run("no recipient", func(t *testing.T) {
		m := &fakeMailer{}
		tool := NewSendEmailTool(m, EmailCredentials{SenderEmail: "me@example.com", Password: "pw"})
		out := tool.Call(context.Background(), `{"content":"hi"}`)
		assert.Equal(t, "Error: No recipient email provided and no default is set.", out)
		assert.Empty(t, m.sent)
	})

	t.Run("no sender credentials", func(t *testing.T) {
		m := &fakeMailer{}
		tool := NewSendEmailTool(m, EmailCredentials{DefaultRecipient: "x@example.com"})
		out := tool.Call(context.Background(), `{"content":"hi"}`)
		assert.Equal(t, "Error: Sender email credentials are not configured.", out)
		assert.Empty(t, m.sent)
	})

	t.Run("delivery failure", func(t *testing.T) {
		m := &fakeMailer{err: errors.New("535 auth failed")}
		tool := NewSendEmailTool(m, EmailCredentials{SenderEmail: "me@example.com", Password: "pw", DefaultRecipient: "x@example.com"})
		out := tool.Call(context.Background(), `{"content":"hi"}`)
		assert.Equal(t, "Failed to send email: 535 auth failed", out)
	})

	t.Run("bad arguments", func(t *testing.T) {
		tool := NewSendEmailTool(&fakeMailer{}, EmailCredentials{})
		out := tool.Call(context.Background(), `not json`)
		assert.True(t, strings.HasPrefix(out, "Failed to send email:"), out)
	})
}

func TestSaveNote(t *testing.T) {
	dir := t.TempDir()
	tool := NewSaveNoteTool(dir)

	out := tool.Call(context.Background(), `{"filename":"groceries.txt","content":"milk\neggs"}`)
	assert.Equal(t, "Note saved successfully as groceries.txt.", out)

	data, err := os.ReadFile(filepath.Join(dir, "groceries.txt"))
	require.NoError(t, err)
	assert.Equal(t, "milk\neggs", string(data))

	// Overwrites silently.
	out = tool.Call(context.Background(), `{"filename":"groceries.txt","content":"bread"}`)
	assert.Equal(t, "Note saved successfully as groceries.txt.", out)
	data, err = os.ReadFile(filepath.Join(dir, "groceries.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bread", string(data))
}

func TestSaveNoteSubdirectory(t *testing.T) {
	dir := t.TempDir()
	tool := NewSaveNoteTool(dir)

	out := tool.Call(context.Background(), `{"filename":"work/todo.txt","content":"ship it"}`)
	assert.Equal(t, "Note saved successfully as work/todo.txt.", out)

	data, err := os.ReadFile(filepath.Join(dir, "work", "todo.txt"))
	require.NoError(t, err)
	assert.Equal(t, "ship it", string(data))
}

func TestSaveNoteRejectsEscapes(t *testing.T) {
	dir := t.TempDir()
	tool := NewSaveNoteTool(dir)

	for _, name := range []string{"", "../outside.txt", "/etc/passwd", "a/../../b.txt", ".."} {
		out := tool.Call(context.Background(), `{"filename":"`+name+`","content":"x"}`)
		assert.True(t, strings.HasPrefix(out, "Failed to save note:"), "%q: %s", name, out)
	}
	_, err := os.Stat(filepath.Join(filepath.Dir(dir), "outside.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestSaveNoteTooLarge(t *testing.T) {
	tool := NewSaveNoteTool(t.TempDir())
	big := strings.Repeat("x", maxNoteSize+1)
	out := tool.Call(context.Background(), `{"filename":"big.txt","content":"`+big+`"}`)
	assert.Contains(t, out, "content too large")
}

func TestWebSearch(t *testing.T) {
	s := &fakeSearcher{results: []search.Result{
		{Title: "Go", URL: "https://go.dev", Snippet: "The Go programming language"},
	}}
	tool := NewWebSearchTool(s)

	out := tool.Call(context.Background(), `{"query":"golang"}`)
	assert.Equal(t, "golang", s.query)
	assert.Equal(t, search.Format(s.results), out)
	assert.Contains(t, out, "https://go.dev")
}

func TestWebSearchErrors(t *testing.T) {
	tool := NewWebSearchTool(&fakeSearcher{err: errors.New("boom")})
	assert.Equal(t, "error: search failed: boom", tool.Call(context.Background(), `{"query":"x"}`))
	assert.Equal(t, "error: query is required", tool.Call(context.Background(), `{"query":"  "}`))

	empty := NewWebSearchTool(&fakeSearcher{})
	assert.Equal(t, "No good search result found", empty.Call(context.Background(), `{"query":"nothing"}`))
}

func TestToolDefs(t *testing.T) {
	defs := map[string]ToolDef{}
	for _, tool := range []Tool{
		NewWebSearchTool(&fakeSearcher{}),
		NewSendEmailTool(&fakeMailer{}, EmailCredentials{}),
		NewSaveNoteTool(""),
	} {
		d := tool.Def()
		defs[d.Name] = d
	}
	require.Len(t, defs, 3)
	assert.Equal(t, []string{"query"}, defs["web_search"].Parameters.Required)
	assert.Equal(t, []string{"content"}, defs["send_email"].Parameters.Required)
	assert.Equal(t, []string{"filename", "content"}, defs["save_note"].Parameters.Required)
}
