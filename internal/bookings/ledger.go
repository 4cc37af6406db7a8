// Package bookings keeps a Postgres ledger of reservations alongside the
// calendar. The calendar stays authoritative; the ledger gives staff an
// audit trail and widens the set of codes checked for collisions.
package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/tablebot/internal/reservation"
	"github.com/wolfman30/tablebot/pkg/logging"
)

var bookingsTracer = otel.Tracer("tablebot.internal.bookings")

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Ledger implements reservation.Ledger on Postgres.
type Ledger struct {
	db     querier
	logger *logging.Logger
}

// NewLedger creates a ledger backed by a pgx pool.
func NewLedger(pool *pgxpool.Pool, logger *logging.Logger) *Ledger {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return newLedgerWithQuerier(pool, logger)
}

func newLedgerWithQuerier(db querier, logger *logging.Logger) *Ledger {
	if db == nil {
		panic("bookings: querier required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Ledger{db: db, logger: logger}
}

// Record upserts a reservation keyed by code and calendar event. A
// reschedule keeps the event and overwrites the times; a code issued again
// after a cancellation belongs to a new event and gets its own row.
func (l *Ledger) Record(ctx context.Context, r reservation.Reservation) error {
	ctx, span := bookingsTracer.Start(ctx, "bookings.record")
	defer span.End()
	span.SetAttributes(attribute.String("reservation.code", r.Code))

	query := `
		INSERT INTO reservation_ledger (code, event_id, guest_name, phone, party_size, starts_at, ends_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code, event_id) DO UPDATE
		SET starts_at = EXCLUDED.starts_at,
		    ends_at = EXCLUDED.ends_at,
		    updated_at = now()
		WHERE reservation_ledger.status <> 'cancelled'
	`
	_, err := l.db.Exec(ctx, query,
		r.Code, r.EventID, r.Name, r.Phone, r.PartySize,
		toPGTime(r.Start), toPGTime(r.End()), string(reservation.StatusConfirmed),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("bookings: record %s: %w", r.Code, err)
	}
	l.logger.Debug("reservation recorded in ledger", "code", r.Code, "event_id", r.EventID)
	return nil
}

// MarkCancelled flags the reservation as cancelled. Unknown codes are not
// an error; the ledger may have been attached after the booking was made.
func (l *Ledger) MarkCancelled(ctx context.Context, code string) error {
	ctx, span := bookingsTracer.Start(ctx, "bookings.mark_cancelled")
	defer span.End()

	query := `
		UPDATE reservation_ledger
		SET status = $2, cancelled_at = now(), updated_at = now()
		WHERE code = $1 AND status <> $2
	`
	ct, err := l.db.Exec(ctx, query, code, string(reservation.StatusCancelled))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("bookings: cancel %s: %w", code, err)
	}
	if ct.RowsAffected() == 0 {
		l.logger.Debug("ledger has no active entry to cancel", "code", code)
	}
	return nil
}

// ActiveCodes returns codes of confirmed reservations starting in [from, to).
func (l *Ledger) ActiveCodes(ctx context.Context, from, to time.Time) ([]string, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.active_codes")
	defer span.End()

	query := `
		SELECT code
		FROM reservation_ledger
		WHERE status = $1 AND starts_at >= $2 AND starts_at < $3
		ORDER BY starts_at
	`
	rows, err := l.db.Query(ctx, query, string(reservation.StatusConfirmed), toPGTime(from), toPGTime(to))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("bookings: active codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("bookings: scan code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func toPGTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{
		Time:  t.UTC(),
		Valid: true,
	}
}
