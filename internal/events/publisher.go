package events

import (
	"context"
	"time"

	"github.com/wolfman30/tablebot/internal/reservation"
)

type appender interface {
	Append(ctx context.Context, evt ReservationEvent) (Envelope, error)
}

// ReservationPublisher writes reservation lifecycle events to the outbox.
type ReservationPublisher struct {
	outbox appender
	now    func() time.Time
}

func NewReservationPublisher(store *OutboxStore) *ReservationPublisher {
	if store == nil {
		panic("events: outbox store required")
	}
	return &ReservationPublisher{outbox: store, now: time.Now}
}

func (p *ReservationPublisher) ReservationConfirmed(ctx context.Context, r reservation.Reservation) error {
	_, err := p.outbox.Append(ctx, ReservationConfirmedV1{
		Code:        r.Code,
		EventID:     r.EventID,
		GuestName:   r.Name,
		Phone:       r.Phone,
		PartySize:   r.PartySize,
		StartsAt:    r.Start.UTC(),
		EndsAt:      r.End().UTC(),
		ConfirmedAt: p.now().UTC(),
	})
	return err
}

func (p *ReservationPublisher) ReservationCancelled(ctx context.Context, r reservation.Reservation) error {
	_, err := p.outbox.Append(ctx, ReservationCancelledV1{
		Code:        r.Code,
		EventID:     r.EventID,
		GuestName:   r.Name,
		Phone:       r.Phone,
		PartySize:   r.PartySize,
		StartsAt:    r.Start.UTC(),
		CancelledAt: p.now().UTC(),
	})
	return err
}
