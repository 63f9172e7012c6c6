// Package notify turns state-machine events into outbound messages. The rest
// of the application only ever emits intents; delivery is best-effort and
// decoupled from the transaction that triggered it.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/google/uuid"
)

// Intent describes one message to deliver: a template key, a recipient, and
// the structured context the template renders from.
type Intent struct {
	ID        string
	Template  string
	Recipient string
	Data      map[string]string
}

// NewIntent builds an intent with a fresh ID.
func NewIntent(template, recipient string, data map[string]string) Intent {
	return Intent{
		ID:        uuid.NewString(),
		Template:  template,
		Recipient: recipient,
		Data:      data,
	}
}

// Dispatcher delivers notification intents.
type Dispatcher interface {
	Dispatch(ctx context.Context, intent Intent) error
}

// Send renders and dispatches each intent, logging failures instead of
// propagating them. State transitions must commit whether or not their
// notifications go out.
func Send(ctx context.Context, d Dispatcher, intents ...Intent) {
	for _, intent := range intents {
		if intent.Recipient == "" {
			continue
		}
		if err := d.Dispatch(ctx, intent); err != nil {
			slog.Warn("notification delivery failed",
				"intent", intent.ID, "template", intent.Template, "recipient", intent.Recipient, "error", err)
			continue
		}
		slog.Info("notification sent",
			"intent", intent.ID, "template", intent.Template, "recipient", intent.Recipient)
	}
}

// LogDispatcher renders intents and writes them to the log instead of
// delivering them. Used in development and tests.
type LogDispatcher struct{}

// Dispatch implements Dispatcher.
func (LogDispatcher) Dispatch(_ context.Context, intent Intent) error {
	subject, body, err := Render(intent.Template, intent.Data)
	if err != nil {
		return err
	}
	slog.Info("notification (log only)",
		"intent", intent.ID, "recipient", intent.Recipient, "subject", subject, "body", body)
	return nil
}

// SMTPDispatcher delivers intents as plain-text email over SMTP.
type SMTPDispatcher struct {
	Addr string // host:port
	From string
}

// Dispatch implements Dispatcher.
func (d *SMTPDispatcher) Dispatch(_ context.Context, intent Intent) error {
	subject, body, err := Render(intent.Template, intent.Data)
	if err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", d.From)
	fmt.Fprintf(&msg, "To: %s\r\n", intent.Recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	if err := smtp.SendMail(d.Addr, nil, d.From, []string{intent.Recipient}, []byte(msg.String())); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	return nil
}
