package events

import "time"

const (
	TypeReservationConfirmed = "reservation.confirmed.v1"
	TypeReservationCancelled = "reservation.cancelled.v1"
)

// ReservationConfirmedV1 is emitted once a reservation is in the calendar.
type ReservationConfirmedV1 struct {
	Code        string    `json:"code"`
	EventID     string    `json:"calendar_event_id"`
	GuestName   string    `json:"guest_name"`
	Phone       string    `json:"phone"`
	PartySize   int       `json:"party_size"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

func (ReservationConfirmedV1) EventType() string { return TypeReservationConfirmed }
func (e ReservationConfirmedV1) ReservationCode() string { return e.Code }
func (e ReservationConfirmedV1) OccurredAt() time.Time { return e.ConfirmedAt }

// ReservationCancelledV1 is emitted once a reservation's event is deleted.
type ReservationCancelledV1 struct {
	Code        string    `json:"code"`
	EventID     string    `json:"calendar_event_id"`
	GuestName   string    `json:"guest_name"`
	Phone       string    `json:"phone"`
	PartySize   int       `json:"party_size"`
	StartsAt    time.Time `json:"starts_at"`
	CancelledAt time.Time `json:"cancelled_at"`
}

func (ReservationCancelledV1) EventType() string { return TypeReservationCancelled }
func (e ReservationCancelledV1) ReservationCode() string { return e.Code }
func (e ReservationCancelledV1) OccurredAt() time.Time { return e.CancelledAt }
