package reservation

import (
	"errors"
	"fmt"

	"github.com/wolfman30/tablebot/internal/calendar"
)

var (
	// ErrInvalidTime means the slot does not fit the operating window.
	ErrInvalidTime = errors.New("reservation: time outside operating hours")
	// ErrInvalidHorizon means the start is in the past or too far ahead.
	ErrInvalidHorizon = errors.New("reservation: time outside booking horizon")
	// ErrInvalidPartySize means the party size is not positive.
	ErrInvalidPartySize = errors.New("reservation: party size must be positive")
	// ErrCodeInUse means another reservation already carries the code.
	ErrCodeInUse = errors.New("reservation: code already used by another reservation")
	// ErrNotFound means no reservation carries the requested code.
	ErrNotFound = calendar.ErrNotFound
)

// SlotUnavailableError reports a slot already at capacity.
type SlotUnavailableError struct {
	Current  int
	Capacity int
}

func (e *SlotUnavailableError) Error() string {
	return fmt.Sprintf("reservation: slot has %d of %d bookings", e.Current, e.Capacity)
}

// IsValidation reports whether err is a rejected proposal rather than a
// collaborator failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidTime) || errors.Is(err, ErrInvalidHorizon) || errors.Is(err, ErrInvalidPartySize)
}
