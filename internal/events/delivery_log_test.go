package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestDeliveryLog(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	log := newDeliveryLogWithQuerier(mock)
	sent, pending := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT 1 FROM outbox_deliveries").WithArgs("staff_email", sent).WillReturnRows(pgxmock.NewRows([]string{"one"}).AddRow(1))
	done, err := log.Delivered(context.Background(), "staff_email", sent)
	if err != nil || !done {
		t.Fatalf("expected delivered entry, got done=%v err=%v", done, err)
	}

	mock.ExpectQuery("SELECT 1 FROM outbox_deliveries").WithArgs("staff_email", pending).WillReturnError(pgx.ErrNoRows)
	done, err = log.Delivered(context.Background(), "staff_email", pending)
	if err != nil || done {
		t.Fatalf("expected undelivered entry, got done=%v err=%v", done, err)
	}

	entry := OutboxEntry{ID: pending, Type: TypeReservationConfirmed}
	mock.ExpectExec(`INSERT INTO outbox_deliveries .* ON CONFLICT \(handler, outbox_id\) DO NOTHING`).
		WithArgs("staff_email", pending, TypeReservationConfirmed).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	recorded, err := log.Record(context.Background(), "staff_email", entry)
	if err != nil || !recorded {
		t.Fatalf("expected delivery recorded, got %v %v", recorded, err)
	}

	mock.ExpectExec("INSERT INTO outbox_deliveries").
		WithArgs("staff_email", pending, TypeReservationConfirmed).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	recorded, err = log.Record(context.Background(), "staff_email", entry)
	if err != nil || recorded {
		t.Fatalf("expected repeat delivery to be a no-op, got %v %v", recorded, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeliveryLogLookupError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT 1 FROM outbox_deliveries").WithArgs("sqs", id).WillReturnError(errors.New("conn reset"))
	if _, err := newDeliveryLogWithQuerier(mock).Delivered(context.Background(), "sqs", id); err == nil {
		t.Fatal("expected lookup error")
	}
}
