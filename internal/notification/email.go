// Package notification defines the boundary to the external email
// collaborator.  Message content and formatting belong to that
// collaborator; this service only decides whether and what to hand off.
package notification

import (
	"context"
	"log"
)

// Sender delivers one email.  Implementations must treat delivery as
// best-effort; the core booking flow never depends on the result.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender is the default Sender used when no email integration is
// configured.  It writes the would-be delivery to the process log so
// development and test environments can observe notification traffic.
type LogSender struct{}

// NewLogSender returns a LogSender.
func NewLogSender() LogSender { return LogSender{} }

// Send logs the delivery and always succeeds.
func (LogSender) Send(_ context.Context, to, subject, body string) error {
	log.Printf("notify: email to=%s subject=%q body=%q", to, subject, body)
	return nil
}
