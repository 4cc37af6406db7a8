package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/tablebot/internal/events"
	"github.com/wolfman30/tablebot/pkg/logging"
)

// StaffNotifier e-mails the restaurant whenever a reservation is confirmed
// or cancelled. It is driven by the outbox deliverer.
type StaffNotifier struct {
	mailer Mailer
	to     string
	loc    *time.Location
	logger *logging.Logger
}

// NewStaffNotifier returns nil when there is no mailer or recipient, so the
// caller can leave it out of the fan-out.
func NewStaffNotifier(mailer Mailer, to string, loc *time.Location, logger *logging.Logger) *StaffNotifier {
	to = strings.TrimSpace(to)
	if mailer == nil || to == "" {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &StaffNotifier{mailer: mailer, to: to, loc: loc, logger: logger}
}

// Handle implements events.DeliveryHandler. Event types it does not know are
// acknowledged without sending anything.
func (n *StaffNotifier) Handle(ctx context.Context, entry events.OutboxEntry) error {
	env, err := events.DecodeEnvelope(entry.Payload)
	if err != nil {
		return err
	}
	evt, err := env.Event()
	if errors.Is(err, events.ErrUnknownEventType) {
		n.logger.Debug("staff notifier ignoring event", "event_type", env.EventType, "outbox_id", entry.ID)
		return nil
	}
	if err != nil {
		return err
	}

	msg, err := render(env.EventType, n.to, n.view(evt))
	if err != nil {
		return err
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: staff e-mail for %s %s: %w", env.Code, env.EventType, err)
	}
	return nil
}

func (n *StaffNotifier) view(evt events.ReservationEvent) reservationView {
	switch e := evt.(type) {
	case events.ReservationConfirmedV1:
		start := e.StartsAt.In(n.loc)
		return reservationView{
			Code:      e.Code,
			Guest:     e.GuestName,
			Phone:     e.Phone,
			PartySize: e.PartySize,
			Date:      start.Format("2006-01-02 (Mon)"),
			From:      start.Format("15:04"),
			To:        e.EndsAt.In(n.loc).Format("15:04"),
			Short:     start.Format("Jan 2 15:04"),
			Heading:   "New reservation " + e.Code,
		}
	case events.ReservationCancelledV1:
		start := e.StartsAt.In(n.loc)
		return reservationView{
			Code:      e.Code,
			Guest:     e.GuestName,
			Phone:     e.Phone,
			PartySize: e.PartySize,
			Date:      start.Format("2006-01-02"),
			From:      start.Format("15:04"),
			Short:     start.Format("Jan 2 15:04"),
			Heading:   "Reservation " + e.Code + " cancelled",
		}
	}
	return reservationView{Code: evt.ReservationCode()}
}

var _ events.DeliveryHandler = (*StaffNotifier)(nil)
