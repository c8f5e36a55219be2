// Package mailer delivers plain-text email over SMTP with STARTTLS.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

const defaultTimeout = 30 * time.Second

// Auth is the SMTP login. For Gmail this is the address and an app password.
type Auth struct {
	Username string
	Password string
}

// Message is a plain-text email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// SMTP sends messages through a single relay.
type SMTP struct {
	host    string
	port    int
	timeout time.Duration
}

// New creates a sender for host:port (e.g. smtp.gmail.com:587).
func New(host string, port int) *SMTP {
	return &SMTP{host: host, port: port, timeout: defaultTimeout}
}

// Addr returns host:port for display.
func (s *SMTP) Addr() string {
	return fmt.Sprintf("%s:%d", s.host, s.port)
}

// Send logs in with auth and delivers msg. STARTTLS is mandatory.
func (s *SMTP) Send(ctx context.Context, auth Auth, msg Message) error {
	m, err := msg.build()
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.host,
		mail.WithPort(s.port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(auth.Username),
		mail.WithPassword(auth.Password),
		mail.WithTimeout(s.timeout),
	)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send via %s: %w", s.Addr(), err)
	}
	return nil
}

func (msg Message) build() (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", msg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}
