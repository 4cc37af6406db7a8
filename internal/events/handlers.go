package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfman30/tablebot/pkg/logging"
)

// FanoutHandler passes each entry to every handler. The entry counts as
// delivered only when all of them succeed.
type FanoutHandler struct {
	handlers []DeliveryHandler
}

func NewFanoutHandler(handlers ...DeliveryHandler) *FanoutHandler {
	var live []DeliveryHandler
	for _, h := range handlers {
		if h != nil {
			live = append(live, h)
		}
	}
	return &FanoutHandler{handlers: live}
}

func (f *FanoutHandler) Handle(ctx context.Context, entry OutboxEntry) error {
	var errs []error
	for _, h := range f.handlers {
		if err := h.Handle(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len reports how many handlers are attached.
func (f *FanoutHandler) Len() int { return len(f.handlers) }

type deliveryRecorder interface {
	Delivered(ctx context.Context, handler string, entryID uuid.UUID) (bool, error)
	Record(ctx context.Context, handler string, entry OutboxEntry) (bool, error)
}

// IdempotentHandler skips entries its wrapped handler already delivered, so a
// retried fan-out does not e-mail staff or enqueue to SQS twice.
type IdempotentHandler struct {
	name   string
	log    deliveryRecorder
	next   DeliveryHandler
	logger *logging.Logger
}

// NewIdempotentHandler wraps next. A nil log disables the check.
func NewIdempotentHandler(name string, log *DeliveryLog, next DeliveryHandler, logger *logging.Logger) *IdempotentHandler {
	if logger == nil {
		logger = logging.Default()
	}
	var rec deliveryRecorder
	if log != nil {
		rec = log
	}
	return &IdempotentHandler{name: name, log: rec, next: next, logger: logger}
}

func (h *IdempotentHandler) Handle(ctx context.Context, entry OutboxEntry) error {
	if h.log == nil {
		return h.next.Handle(ctx, entry)
	}
	done, err := h.log.Delivered(ctx, h.name, entry.ID)
	if err != nil {
		return err
	}
	if done {
		h.logger.Debug("outbox entry already delivered", "handler", h.name, "outbox_id", entry.ID, "type", entry.Type)
		return nil
	}
	if err := h.next.Handle(ctx, entry); err != nil {
		return err
	}
	if _, err := h.log.Record(ctx, h.name, entry); err != nil {
		h.logger.Warn("failed to record outbox delivery", "handler", h.name, "outbox_id", entry.ID, "error", err)
	}
	return nil
}
