package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/wolfman30/tablebot/pkg/logging"
)

type sendgridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// SendGridMailer sends staff e-mail through the SendGrid v3 API. Messages are
// filed under the "reservation" category plus their event type, and carry
// the reservation code as a custom arg so the activity feed can be searched
// by booking.
type SendGridMailer struct {
	client sendgridAPI
	from   *mail.Email
	logger *logging.Logger
}

// NewSendGridMailer returns nil when no API key is configured.
func NewSendGridMailer(cfg SendGridConfig, logger *logging.Logger) *SendGridMailer {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = DefaultFromName
	}
	return &SendGridMailer{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.FromEmail),
		logger: logger,
	}
}

func (s *SendGridMailer) Send(ctx context.Context, msg Message) error {
	resp, err := s.client.SendWithContext(ctx, s.build(msg))
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "code", msg.Code)
		return fmt.Errorf("notify: sendgrid: %w", err)
	}
	if resp.StatusCode >= 400 {
		s.logger.Error("sendgrid rejected message", "status", resp.StatusCode, "body", resp.Body, "code", msg.Code)
		return fmt.Errorf("notify: sendgrid returned status %d", resp.StatusCode)
	}
	s.logger.Info("staff e-mail sent via sendgrid", "code", msg.Code, "kind", msg.Kind, "status", resp.StatusCode)
	return nil
}

func (s *SendGridMailer) build(msg Message) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(s.from)
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail("", msg.To))
	if msg.Code != "" {
		p.SetCustomArg("reservation_code", msg.Code)
	}
	m.AddPersonalizations(p)

	m.AddContent(mail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m.AddContent(mail.NewContent("text/html", msg.HTML))
	}
	m.AddCategories("reservation")
	if msg.Kind != "" {
		m.AddCategories(msg.Kind)
	}
	return m
}

var _ Mailer = (*SendGridMailer)(nil)
