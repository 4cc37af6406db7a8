// Package notify e-mails restaurant staff about reservation changes.
package notify

import (
	"context"

	"github.com/wolfman30/tablebot/pkg/logging"
)

// DefaultFromName is used when no sender name is configured.
const DefaultFromName = "Tablebot Reservations"

// Message is one staff e-mail about a reservation. Code and Kind let the
// provider tag the message so staff can filter by booking.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
	Code    string
	Kind    string
}

// Mailer hands a message to an e-mail provider.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer logs messages instead of sending them. It backs local
// development and deployments without an e-mail provider.
type LogMailer struct {
	logger *logging.Logger
}

func NewLogMailer(logger *logging.Logger) *LogMailer {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("staff e-mail not sent; no provider configured",
		"to", msg.To, "subject", msg.Subject, "code", msg.Code, "kind", msg.Kind)
	return nil
}
