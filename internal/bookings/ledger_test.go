package bookings

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/tablebot/internal/reservation"
	"github.com/wolfman30/tablebot/pkg/logging"
)

func newMockLedger(t *testing.T) (*Ledger, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newLedgerWithQuerier(mock, logging.New("error")), mock
}

func TestLedgerRecord(t *testing.T) {
	ledger, mock := newMockLedger(t)
	start := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	r := reservation.Reservation{
		Code:      "AB12CD",
		Name:      "Lin",
		Phone:     "0912345678",
		PartySize: 4,
		Start:     start,
		Duration:  2 * time.Hour,
		Status:    reservation.StatusConfirmed,
		EventID:   "evt-1",
	}

	mock.ExpectExec("INSERT INTO reservation_ledger").
		WithArgs("AB12CD", "evt-1", "Lin", "0912345678", 4, toPGTime(start), toPGTime(start.Add(2*time.Hour)), "confirmed").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, ledger.Record(context.Background(), r))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRecordError(t *testing.T) {
	ledger, mock := newMockLedger(t)
	mock.ExpectExec("INSERT INTO reservation_ledger").WillReturnError(errors.New("connection reset"))

	err := ledger.Record(context.Background(), reservation.Reservation{Code: "AB12CD", Start: time.Now(), Duration: time.Hour})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AB12CD")
}

func TestLedgerMarkCancelled(t *testing.T) {
	ledger, mock := newMockLedger(t)

	mock.ExpectExec("UPDATE reservation_ledger").WithArgs("AB12CD", "cancelled").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, ledger.MarkCancelled(context.Background(), "AB12CD"))

	mock.ExpectExec("UPDATE reservation_ledger").WithArgs("ZZZZZZ", "cancelled").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.NoError(t, ledger.MarkCancelled(context.Background(), "ZZZZZZ"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerActiveCodes(t *testing.T) {
	ledger, mock := newMockLedger(t)
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	rows := pgxmock.NewRows([]string{"code"}).AddRow("AB12CD").AddRow("QW12ER")
	mock.ExpectQuery("SELECT code").WithArgs("confirmed", toPGTime(from), toPGTime(to)).WillReturnRows(rows)

	codes, err := ledger.ActiveCodes(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, []string{"AB12CD", "QW12ER"}, codes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerSatisfiesReservationLedger(t *testing.T) {
	var _ reservation.Ledger = (*Ledger)(nil)
}

func TestLedgerRecordReissuedCodeUsesNewEvent(t *testing.T) {
	ledger, mock := newMockLedger(t)
	start := time.Date(2024, 6, 9, 18, 0, 0, 0, time.UTC)
	r := reservation.Reservation{
		Code:      "AB12CD",
		Name:      "Chen",
		Phone:     "0922333444",
		PartySize: 2,
		Start:     start,
		Duration:  time.Hour,
		EventID:   "evt-2",
	}

	// The earlier booking under AB12CD was cancelled as evt-1; the upsert
	// targets (code, event_id) so this confirmation inserts its own row.
	mock.ExpectExec(`ON CONFLICT \(code, event_id\)`).
		WithArgs("AB12CD", "evt-2", "Chen", "0922333444", 2, toPGTime(start), toPGTime(start.Add(time.Hour)), "confirmed").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, ledger.Record(context.Background(), r))
	require.NoError(t, mock.ExpectationsWereMet())
}
