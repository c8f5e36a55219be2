package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rainagent/rain/internal/mailer"
)

const maxSubjectLen = 50

// Mailer delivers one message. *mailer.SMTP implements it.
type Mailer interface {
	Send(ctx context.Context, auth mailer.Auth, msg mailer.Message) error
}

// EmailCredentials are bound into the tool when the agent is initialized,
// so the model never sees or supplies them.
type EmailCredentials struct {
	SenderEmail      string
	Password         string
	DefaultRecipient string
}

// SendEmailTool sends the user's message as a plain-text email.
type SendEmailTool struct {
	creds  EmailCredentials
	mailer Mailer
}

// NewSendEmailTool creates the tool with credentials baked in.
func NewSendEmailTool(m Mailer, creds EmailCredentials) *SendEmailTool {
	return &SendEmailTool{creds: creds, mailer: m}
}

func (t *SendEmailTool) Def() ToolDef {
	return ToolDef{
		Name: "send_email",
		Description: "Sends an email with a message. The subject line will be automatically generated. " +
			"Use this tool when a user asks to send an email, a message, a note, or a notification to someone. " +
			"The 'content' parameter should contain the ENTIRE message the user wants to send. " +
			"For example, if the user says \"email my manager that the project is done and the report is attached\", " +
			"the 'content' argument should be \"The project is done and the report is attached.\". " +
			"The 'recipient_email' is the address to send the email to. If not provided, a default address will be used.",
		Parameters: ToolParameters{
			Type: "object",
			Properties: map[string]ToolProperty{
				"content": {
					Type:        "string",
					Description: "The full message body",
				},
				"recipient_email": {
					Type:        "string",
					Description: "Recipient address (optional)",
				},
			},
			Required: []string{"content"},
		},
	}
}

type sendEmailArgs struct {
	Content        string `json:"content"`
	RecipientEmail string `json:"recipient_email"`
}

func (t *SendEmailTool) Call(ctx context.Context, argsJSON string) string {
	var args sendEmailArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return fmt.Sprintf("Failed to send email: invalid arguments: %v", err)
	}

	recipient := strings.TrimSpace(args.RecipientEmail)
	if recipient == "" {
		recipient = t.creds.DefaultRecipient
	}
	if recipient == "" {
		return "Error: No recipient email provided and no default is set."
	}
	if t.creds.SenderEmail == "" || t.creds.Password == "" {
		return "Error: Sender email credentials are not configured."
	}

	msg := mailer.Message{
		From:    t.creds.SenderEmail,
		To:      recipient,
		Subject: SubjectFromContent(args.Content),
		Body:    args.Content,
	}
	auth := mailer.Auth{Username: t.creds.SenderEmail, Password: t.creds.Password}
	if err := t.mailer.Send(ctx, auth, msg); err != nil {
		return fmt.Sprintf("Failed to send email: %v", err)
	}
	return fmt.Sprintf("Email sent successfully to %s!", recipient)
}

// SubjectFromContent derives a subject from the first line of the message:
// at most 50 characters, with "..." appended when cut, "No Subject" when empty.
func SubjectFromContent(content string) string {
	firstLine, _, _ := strings.Cut(strings.TrimSpace(content), "\n")
	runes := []rune(firstLine)
	if len(runes) > maxSubjectLen {
		return string(runes[:maxSubjectLen]) + "..."
	}
	if firstLine == "" {
		return "No Subject"
	}
	return firstLine
}
