package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DeliveryLog remembers which handler already delivered which outbox entry.
// A fan-out that failed halfway is retried as a whole; the log keeps the
// handlers that succeeded the first time from sending again.
type DeliveryLog struct {
	db rowQuerier
}

func NewDeliveryLog(pool *pgxpool.Pool) *DeliveryLog {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &DeliveryLog{db: pool}
}

func newDeliveryLogWithQuerier(db rowQuerier) *DeliveryLog {
	if db == nil {
		panic("events: querier required")
	}
	return &DeliveryLog{db: db}
}

// Delivered reports whether handler already delivered the entry.
func (l *DeliveryLog) Delivered(ctx context.Context, handler string, entryID uuid.UUID) (bool, error) {
	query := `SELECT 1 FROM outbox_deliveries WHERE handler = $1 AND outbox_id = $2`
	var one int
	if err := l.db.QueryRow(ctx, query, handler, entryID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: %s delivered %s: %w", handler, entryID, err)
	}
	return true, nil
}

// Record notes that handler delivered entry. It returns false when the
// delivery was already on record.
func (l *DeliveryLog) Record(ctx context.Context, handler string, entry OutboxEntry) (bool, error) {
	query := `
		INSERT INTO outbox_deliveries (handler, outbox_id, event_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (handler, outbox_id) DO NOTHING
	`
	ct, err := l.db.Exec(ctx, query, handler, entry.ID, entry.Type)
	if err != nil {
		return false, fmt.Errorf("events: record %s delivery of %s: %w", handler, entry.ID, err)
	}
	return ct.RowsAffected() > 0, nil
}
