package conversation

import (
	"strings"

	"github.com/wolfman30/tablebot/internal/reservation"
)

// Intent is what the guest is trying to do, as classified upstream.
type Intent string

const (
	IntentCheckAvailability Intent = "check_availability"
	IntentCreateBooking     Intent = "create_booking"
	IntentCancelBooking     Intent = "cancel_booking"
	IntentConfirmBooking    Intent = "confirm_booking"
	IntentDeclineBooking    Intent = "decline_booking"
	IntentOther             Intent = "other"
)

// ParseIntent maps an upstream label to an Intent. Unknown labels are
// IntentOther.
func ParseIntent(raw string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(raw))) {
	case IntentCheckAvailability:
		return IntentCheckAvailability
	case IntentCreateBooking:
		return IntentCreateBooking
	case IntentCancelBooking:
		return IntentCancelBooking
	case IntentConfirmBooking:
		return IntentConfirmBooking
	case IntentDeclineBooking:
		return IntentDeclineBooking
	default:
		return IntentOther
	}
}

// InboundRequest is one structured turn from the chat front end. Field
// values come from an extractor and may hold placeholders such as "None".
type InboundRequest struct {
	Intent          string `json:"intent" validate:"required,max=64"`
	Name            string `json:"name,omitempty" validate:"max=100"`
	Phone           string `json:"phone,omitempty" validate:"max=32"`
	PartySize       string `json:"partySize,omitempty" validate:"max=8"`
	Date            string `json:"date,omitempty" validate:"max=16"`
	Time            string `json:"time,omitempty" validate:"max=16"`
	Text            string `json:"text,omitempty" validate:"max=1000"`
	ReservationCode string `json:"reservationCode,omitempty" validate:"max=16"`
}

var missingSentinels = map[string]struct{}{
	"":             {},
	"none":         {},
	"null":         {},
	"invalid time": {},
}

// present returns the trimmed value, or "" when it is a placeholder.
func present(raw string) string {
	v := strings.TrimSpace(raw)
	if _, ok := missingSentinels[strings.ToLower(v)]; ok {
		return ""
	}
	return v
}

// ReplyKind tells the front end how to render a Reply.
type ReplyKind string

const (
	ReplyAvailability    ReplyKind = "availability"
	ReplyProposal        ReplyKind = "proposal"
	ReplyConfirmed       ReplyKind = "confirmed"
	ReplyDeclined        ReplyKind = "declined"
	ReplyMissingInfo     ReplyKind = "missing_info"
	ReplyInvalid         ReplyKind = "invalid"
	ReplySlotUnavailable ReplyKind = "slot_unavailable"
	ReplyPrompt          ReplyKind = "prompt"
	ReplyBookingList     ReplyKind = "booking_list"
	ReplyCancelled       ReplyKind = "cancelled"
	ReplyNotFound        ReplyKind = "not_found"
	ReplyAborted         ReplyKind = "aborted"
	ReplyExpired         ReplyKind = "expired"
	ReplyUnavailable     ReplyKind = "unavailable"
	ReplyOther           ReplyKind = "other"
	ReplyError           ReplyKind = "error"
)

// Reply is the guest-visible answer to a request.
type Reply struct {
	Kind        ReplyKind                `json:"kind"`
	Text        string                   `json:"text"`
	Missing     []string                 `json:"missing,omitempty"`
	Reservation *reservation.Reservation `json:"reservation,omitempty"`
	Suggestions []string                 `json:"suggestions,omitempty"`
}
