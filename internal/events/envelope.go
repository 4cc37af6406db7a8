package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReservationEvent is a versioned change to one reservation.
type ReservationEvent interface {
	EventType() string
	ReservationCode() string
	OccurredAt() time.Time
}

// ErrUnknownEventType is returned by Envelope.Event for types this build
// does not decode.
var ErrUnknownEventType = errors.New("events: unknown event type")

// Envelope is what lands in the outbox payload column and on the SQS queue.
type Envelope struct {
	EventID    uuid.UUID       `json:"event_id"`
	EventType  string          `json:"event_type"`
	Code       string          `json:"reservation_code"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func newEnvelope(evt ReservationEvent) (Envelope, error) {
	if evt == nil {
		return Envelope{}, errors.New("events: reservation event required")
	}
	code := strings.TrimSpace(evt.ReservationCode())
	if code == "" {
		return Envelope{}, fmt.Errorf("events: %s without reservation code", evt.EventType())
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal %s: %w", evt.EventType(), err)
	}
	return Envelope{
		EventID:    uuid.New(),
		EventType:  evt.EventType(),
		Code:       code,
		OccurredAt: evt.OccurredAt().UTC(),
		Payload:    payload,
	}, nil
}

// aggregate is the outbox row's grouping key and the SQS "aggregate"
// attribute.
func (e Envelope) aggregate() string {
	return "reservation:" + e.Code
}

// DecodeEnvelope reads an outbox payload back into its envelope.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("events: decode envelope: %w", err)
	}
	if env.EventType == "" {
		return Envelope{}, fmt.Errorf("events: envelope missing event type")
	}
	return env, nil
}

// Event decodes the payload into its concrete type, ReservationConfirmedV1
// or ReservationCancelledV1.
func (e Envelope) Event() (ReservationEvent, error) {
	var (
		evt ReservationEvent
		err error
	)
	switch e.EventType {
	case TypeReservationConfirmed:
		var v ReservationConfirmedV1
		err = json.Unmarshal(e.Payload, &v)
		evt = v
	case TypeReservationCancelled:
		var v ReservationCancelledV1
		err = json.Unmarshal(e.Payload, &v)
		evt = v
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, e.EventType)
	}
	if err != nil {
		return nil, fmt.Errorf("events: decode %s: %w", e.EventType, err)
	}
	return evt, nil
}
