package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/tablebot/internal/config"
	"github.com/wolfman30/tablebot/internal/events"
	"github.com/wolfman30/tablebot/internal/notify"
	"github.com/wolfman30/tablebot/pkg/logging"
)

const (
	handlerStaffEmail = "staff_email"
	handlerSQS        = "sqs"
)

// BuildOutboxHandler fans each outbox entry out to the staff notifier and
// the SQS forwarder, skipping targets that are not configured. It returns
// nil when nothing consumes the outbox.
func BuildOutboxHandler(cfg *appconfig.Config, deliveries *events.DeliveryLog, mailer notify.Mailer, sqsClient *sqs.Client, logger *logging.Logger) events.DeliveryHandler {
	if cfg == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	var handlers []events.DeliveryHandler
	if staff := notify.NewStaffNotifier(mailer, cfg.StaffNotificationEmail, cfg.Location(), logger); staff != nil {
		handlers = append(handlers, events.NewIdempotentHandler(handlerStaffEmail, deliveries, staff, logger))
	}
	if sqsClient != nil && cfg.ReservationEventsQueueURL != "" {
		forwarder := events.NewSQSPublisher(sqsClient, cfg.ReservationEventsQueueURL)
		handlers = append(handlers, events.NewIdempotentHandler(handlerSQS, deliveries, forwarder, logger))
	}
	if len(handlers) == 0 {
		return nil
	}
	logger.Info("outbox delivery configured", "handlers", len(handlers))
	return events.NewFanoutHandler(handlers...)
}
