package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/wolfman30/tablebot/pkg/logging"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig holds configuration for AWS SES.
type SESConfig struct {
	FromEmail string
	FromName  string
	// ConfigurationSet, when set, routes sending events for staff mail to
	// the matching SES event destination.
	ConfigurationSet string
}

// SESMailer sends staff e-mail through SES v2. The reservation code and
// event type travel as message tags.
type SESMailer struct {
	client sesAPI
	from   string
	cfgSet string
	logger *logging.Logger
}

func NewSESMailer(client *sesv2.Client, cfg SESConfig, logger *logging.Logger) *SESMailer {
	if client == nil {
		return nil
	}
	return newSESMailer(client, cfg, logger)
}

func newSESMailer(client sesAPI, cfg SESConfig, logger *logging.Logger) *SESMailer {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = DefaultFromName
	}
	return &SESMailer{
		client: client,
		from:   fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail),
		cfgSet: cfg.ConfigurationSet,
		logger: logger,
	}
}

func (s *SESMailer) Send(ctx context.Context, msg Message) error {
	out, err := s.client.SendEmail(ctx, s.input(msg))
	if err != nil {
		s.logger.Error("SES send failed", "error", err, "code", msg.Code)
		return fmt.Errorf("notify: ses: %w", err)
	}
	s.logger.Info("staff e-mail sent via SES", "code", msg.Code, "kind", msg.Kind, "message_id", aws.ToString(out.MessageId))
	return nil
}

func (s *SESMailer) input(msg Message) *sesv2.SendEmailInput {
	body := &types.Body{Text: utf8(msg.Text)}
	if msg.HTML != "" {
		body.Html = utf8(msg.HTML)
	}
	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{Subject: utf8(msg.Subject), Body: body},
		},
	}
	if s.cfgSet != "" {
		in.ConfigurationSetName = aws.String(s.cfgSet)
	}
	if msg.Code != "" {
		in.EmailTags = append(in.EmailTags, types.MessageTag{Name: aws.String("reservation_code"), Value: aws.String(msg.Code)})
	}
	if msg.Kind != "" {
		// Tag values may not contain dots.
		in.EmailTags = append(in.EmailTags, types.MessageTag{Name: aws.String("event_type"), Value: aws.String(tagValue(msg.Kind))})
	}
	return in
}

func utf8(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}

func tagValue(s string) string {
	return strings.ReplaceAll(s, ".", "_")
}

var _ Mailer = (*SESMailer)(nil)
