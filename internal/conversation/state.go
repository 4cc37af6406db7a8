package conversation

import (
	"context"
	"time"

	"github.com/wolfman30/tablebot/internal/reservation"
)

// DefaultStateTTL bounds how long an unanswered proposal or deletion
// dialog is remembered.
const DefaultStateTTL = 30 * time.Minute

// PendingBooking is a proposal waiting for the guest to confirm or decline.
type PendingBooking struct {
	Reservation reservation.Reservation `json:"reservation"`
	ProposedAt  time.Time               `json:"proposed_at"`
}

// DeletionStage tracks where a guest is in the cancellation dialog.
type DeletionStage string

const (
	StageWaitingForPhone DeletionStage = "waiting_for_phone"
	StageWaitingForCode  DeletionStage = "waiting_for_code"
)

// PendingDeletion is an in-progress cancellation dialog. Codes holds the
// reservations listed for the phone the guest gave.
type PendingDeletion struct {
	Stage DeletionStage `json:"stage"`
	Phone string        `json:"phone,omitempty"`
	Codes []string      `json:"codes,omitempty"`
}

func (d *PendingDeletion) offered(code string) bool {
	for _, c := range d.Codes {
		if c == code {
			return true
		}
	}
	return false
}

// StateStore keeps per-conversation dialog state. Saving nil removes the
// entry; loading a missing or expired entry returns nil without error.
// TakeBooking loads and removes the pending booking atomically.
type StateStore interface {
	LoadBooking(ctx context.Context, conversationID string) (*PendingBooking, error)
	TakeBooking(ctx context.Context, conversationID string) (*PendingBooking, error)
	SaveBooking(ctx context.Context, conversationID string, booking *PendingBooking) error
	LoadDeletion(ctx context.Context, conversationID string) (*PendingDeletion, error)
	SaveDeletion(ctx context.Context, conversationID string, deletion *PendingDeletion) error
}
