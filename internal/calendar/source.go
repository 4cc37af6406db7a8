// Package calendar talks to the calendar that stores reservations. The
// calendar is the system of record: every confirmed reservation is an event.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when an event does not exist or was deleted.
	ErrNotFound = errors.New("calendar: event not found")
	// ErrServiceUnavailable is returned on timeouts and transport failures.
	ErrServiceUnavailable = errors.New("calendar: service unavailable")
)

// CommitError reports a rejected event write.
type CommitError struct {
	Op  string
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("calendar: %s rejected: %v", e.Op, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// BusyEvent is an occupied span read from the calendar. For all-day events
// Start and End are midnight boundaries in the business timezone.
type BusyEvent struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool
}

// Reminder is a notification attached to an inserted event.
type Reminder struct {
	Method  string
	Minutes int
}

// EventPayload is the body of an event write.
type EventPayload struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Reminders   []Reminder
}

// DefaultReminders mirrors what the booking desk has always attached.
func DefaultReminders() []Reminder {
	return []Reminder{
		{Method: "email", Minutes: 24 * 60},
		{Method: "popup", Minutes: 60},
	}
}

// EventSource reads and writes calendar events. Implementations bound each
// call by a timeout and map failures onto ErrNotFound,
// ErrServiceUnavailable and *CommitError. Timeouts, transport failures and
// throttling are ErrServiceUnavailable for every call; any other failure of
// InsertEvent, UpdateEvent or DeleteEvent is a *CommitError, and of
// ListEvents is ErrServiceUnavailable.
type EventSource interface {
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]BusyEvent, error)
	InsertEvent(ctx context.Context, calendarID string, payload EventPayload) (BusyEvent, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	UpdateEvent(ctx context.Context, calendarID, eventID string, payload EventPayload) (BusyEvent, error)
}
