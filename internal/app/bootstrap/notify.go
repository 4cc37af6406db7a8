package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/tablebot/internal/config"
	"github.com/wolfman30/tablebot/internal/notify"
	"github.com/wolfman30/tablebot/pkg/logging"
)

// BuildMailer picks the provider named by EMAIL_PROVIDER. A provider that is
// missing its credentials falls back to logging the staff e-mail.
func BuildMailer(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) notify.Mailer {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewLogMailer(logger)
	}

	switch cfg.EmailProvider {
	case "sendgrid":
		if mailer := notify.NewSendGridMailer(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger); mailer != nil {
			return mailer
		}
		logger.Warn("sendgrid selected without SENDGRID_API_KEY; logging staff e-mail instead")
	case "ses":
		if mailer := notify.NewSESMailer(sesClient, notify.SESConfig{
			FromEmail:        cfg.EmailFrom,
			FromName:         cfg.EmailFromName,
			ConfigurationSet: cfg.SESConfigurationSet,
		}, logger); mailer != nil {
			return mailer
		}
		logger.Warn("ses selected without an AWS client; logging staff e-mail instead")
	}
	return notify.NewLogMailer(logger)
}
