// Package reservation validates, commits and cancels table reservations.
// Every confirmed reservation lives in the calendar as an event whose text
// carries its code; nothing else is authoritative.
package reservation

import (
	"context"
	"time"

	"github.com/wolfman30/tablebot/internal/availability"
	"github.com/wolfman30/tablebot/internal/timewindow"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Proposal is a booking request before validation.
type Proposal struct {
	Name      string
	Phone     string
	PartySize int
	Start     time.Time
}

// Reservation is a proposed or committed booking.
type Reservation struct {
	Code      string        `json:"code"`
	Name      string        `json:"name"`
	Phone     string        `json:"phone"`
	PartySize int           `json:"party_size"`
	Start     time.Time     `json:"start"`
	Duration  time.Duration `json:"duration"`
	Status    Status        `json:"status"`
	EventID   string        `json:"event_id,omitempty"`
}

func (r Reservation) End() time.Time { return r.Start.Add(r.Duration) }

func (r Reservation) Interval() (timewindow.Interval, error) {
	return timewindow.Of(r.Start, r.Duration)
}

// Policy holds the fixed booking rules.
type Policy struct {
	CalendarID    string
	Window        availability.OperatingWindow
	SlotDuration  time.Duration
	Granularity   time.Duration
	Capacity      int
	HorizonMonths int
	ListingDays   int
	Location      string
}

// DefaultPolicy is the restaurant's standing configuration.
func DefaultPolicy(loc *time.Location) Policy {
	return Policy{
		CalendarID:    "primary",
		Window:        availability.DefaultWindow(loc),
		SlotDuration:  2 * time.Hour,
		Granularity:   30 * time.Minute,
		Capacity:      3,
		HorizonMonths: 1,
		ListingDays:   30,
	}
}

func (p Policy) location() *time.Location {
	if p.Window.Location == nil {
		return time.UTC
	}
	return p.Window.Location
}

// horizonEnd is the latest permitted start.
func (p Policy) horizonEnd(now time.Time) time.Time {
	return now.AddDate(0, p.HorizonMonths, 0)
}

// Ledger is a secondary record of reservations kept alongside the calendar.
type Ledger interface {
	Record(ctx context.Context, r Reservation) error
	MarkCancelled(ctx context.Context, code string) error
	ActiveCodes(ctx context.Context, from, to time.Time) ([]string, error)
}

// Publisher announces lifecycle changes to downstream consumers.
type Publisher interface {
	ReservationConfirmed(ctx context.Context, r Reservation) error
	ReservationCancelled(ctx context.Context, r Reservation) error
}
