package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNewEnvelopeCarriesReservation(t *testing.T) {
	confirmedAt := time.Date(2024, 5, 1, 9, 30, 0, 0, time.FixedZone("CST", 8*3600))
	env, err := newEnvelope(ReservationConfirmedV1{
		Code:        "AB12CD",
		EventID:     "evt-1",
		GuestName:   "Lin",
		PartySize:   4,
		StartsAt:    confirmedAt.Add(48 * time.Hour),
		EndsAt:      confirmedAt.Add(50 * time.Hour),
		ConfirmedAt: confirmedAt,
	})
	if err != nil {
		t.Fatalf("newEnvelope failed: %v", err)
	}
	if env.EventType != TypeReservationConfirmed {
		t.Fatalf("unexpected type: %s", env.EventType)
	}
	if env.Code != "AB12CD" || env.aggregate() != "reservation:AB12CD" {
		t.Fatalf("unexpected code %q aggregate %q", env.Code, env.aggregate())
	}
	if !env.OccurredAt.Equal(confirmedAt) || env.OccurredAt.Location() != time.UTC {
		t.Fatalf("expected UTC occurrence time, got %s", env.OccurredAt)
	}
}

func TestEnvelopeEventRoundTrip(t *testing.T) {
	cancelledAt := time.Unix(1714550400, 0).UTC()
	env, err := newEnvelope(ReservationCancelledV1{Code: "QW12ER", GuestName: "Chen", CancelledAt: cancelledAt})
	if err != nil {
		t.Fatalf("newEnvelope: %v", err)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	stored, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	evt, err := stored.Event()
	if err != nil {
		t.Fatalf("decode event: %v", err)
	}
	cancelled, ok := evt.(ReservationCancelledV1)
	if !ok {
		t.Fatalf("unexpected event type %T", evt)
	}
	if cancelled.GuestName != "Chen" || !cancelled.CancelledAt.Equal(cancelledAt) {
		t.Fatalf("unexpected payload %#v", cancelled)
	}
}

func TestEnvelopeValidation(t *testing.T) {
	if _, err := newEnvelope(nil); err == nil {
		t.Fatal("expected nil event error")
	}
	if _, err := newEnvelope(ReservationConfirmedV1{}); err == nil {
		t.Fatal("expected missing code error")
	}
	if _, err := DecodeEnvelope([]byte(`{"reservation_code":"AB12CD"}`)); err == nil {
		t.Fatal("expected missing type error")
	}
	if _, err := (Envelope{EventType: "menu.updated.v1"}).Event(); !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
	if _, err := (Envelope{EventType: TypeReservationConfirmed, Payload: []byte("nope")}).Event(); err == nil {
		t.Fatal("expected payload decode error")
	}
}
