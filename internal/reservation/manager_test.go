package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/tablebot/internal/calendar"
	"github.com/wolfman30/tablebot/internal/observability/metrics"
	"github.com/wolfman30/tablebot/internal/timewindow"
	"github.com/wolfman30/tablebot/pkg/logging"
)

const testCalendar = "restaurant"

var taipei = timewindow.LoadLocation("Asia/Taipei")

// fixed clock: Wednesday 2024-05-01 08:00 local
var testNow = time.Date(2024, 5, 1, 8, 0, 0, 0, taipei)

func tomorrowAt(h, m int) time.Time {
	return time.Date(2024, 5, 2, h, m, 0, 0, taipei)
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *calendar.MemorySource) {
	t.Helper()
	src := calendar.NewMemorySource()
	policy := DefaultPolicy(taipei)
	policy.CalendarID = testCalendar
	opts = append([]Option{
		WithClock(func() time.Time { return testNow }),
		WithMetrics(metrics.NewReservationMetrics(prometheus.NewRegistry())),
	}, opts...)
	return NewManager(src, policy, logging.New("error"), opts...), src
}

func seedBooking(src *calendar.MemorySource, code string, start time.Time) {
	summary, description := EmbedCode(Reservation{Code: code, Name: "Guest " + code, Phone: "0900" + code, PartySize: 2})
	src.Seed(testCalendar, calendar.BusyEvent{
		ID:          "evt-" + code,
		Summary:     summary,
		Description: description,
		Start:       start,
		End:         start.Add(2 * time.Hour),
	})
}

func TestValidate(t *testing.T) {
	mgr, _ := newTestManager(t)

	tests := []struct {
		name    string
		start   time.Time
		party   int
		wantErr error
	}{
		{"inside window", tomorrowAt(12, 0), 2, nil},
		{"last slot ends at close", tomorrowAt(14, 0), 2, nil},
		{"before opening", tomorrowAt(9, 30), 2, ErrInvalidTime},
		{"ends after closing", tomorrowAt(14, 30), 2, ErrInvalidTime},
		{"in the past", time.Date(2024, 4, 30, 12, 0, 0, 0, taipei), 2, ErrInvalidHorizon},
		{"beyond one month", time.Date(2024, 6, 3, 12, 0, 0, 0, taipei), 2, ErrInvalidHorizon},
		{"exactly one month ahead", time.Date(2024, 6, 1, 8, 0, 0, 0, taipei).Add(2 * time.Hour), 2, ErrInvalidHorizon},
		{"empty party", tomorrowAt(12, 0), 0, ErrInvalidPartySize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot, err := mgr.Validate(Proposal{Name: "Lin", Phone: "0911", PartySize: tt.party, Start: tt.start})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 2*time.Hour, slot.Duration())
		})
	}
}

func TestValidateAcceptsOtherZones(t *testing.T) {
	mgr, _ := newTestManager(t)
	// 04:00 UTC is 12:00 in Taipei
	slot, err := mgr.Validate(Proposal{PartySize: 2, Start: time.Date(2024, 5, 2, 4, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, 12, slot.Start().Hour())
}

func TestProposeAndCommit(t *testing.T) {
	mgr, src := newTestManager(t)
	ctx := context.Background()

	pending, err := mgr.Propose(ctx, Proposal{Name: " Lin ", Phone: "0912345678", PartySize: 4, Start: tomorrowAt(12, 0)})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, pending.Status)
	assert.True(t, ValidCode(pending.Code))
	assert.Equal(t, "Lin", pending.Name)
	assert.Equal(t, 0, src.Len(testCalendar))

	confirmed, err := mgr.Commit(ctx, pending)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	assert.NotEmpty(t, confirmed.EventID)
	assert.Equal(t, StatusPending, pending.Status)

	events, err := src.ListEvents(ctx, testCalendar, tomorrowAt(0, 0), tomorrowAt(23, 0))
	require.NoError(t, err)
	require.Len(t, events, 1)
	code, ok := ExtractCode(events[0].Summary, events[0].Description)
	require.True(t, ok)
	assert.Equal(t, pending.Code, code)
	assert.Contains(t, events[0].Description, "Phone: 0912345678")
}

func TestCommitTwiceWritesOneEvent(t *testing.T) {
	ledger := &recordingLedger{}
	pub := &recordingPublisher{}
	mgr, src := newTestManager(t, WithLedger(ledger), WithPublisher(pub))
	ctx := context.Background()

	pending, err := mgr.Propose(ctx, Proposal{Name: "Lin", Phone: "0912345678", PartySize: 4, Start: tomorrowAt(12, 0)})
	require.NoError(t, err)

	first, err := mgr.Commit(ctx, pending)
	require.NoError(t, err)
	second, err := mgr.Commit(ctx, pending)
	require.NoError(t, err)

	assert.Equal(t, first.EventID, second.EventID)
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, StatusConfirmed, second.Status)
	assert.Equal(t, 1, src.Len(testCalendar))
	assert.Len(t, ledger.recorded, 1)
	assert.Equal(t, []string{pending.Code}, pub.confirmed)
}

func TestCommitRejectsCodeHeldByAnotherBooking(t *testing.T) {
	mgr, src := newTestManager(t)
	ctx := context.Background()
	seedBooking(src, "ABC123", tomorrowAt(10, 0))

	_, err := mgr.Commit(ctx, &Reservation{
		Code:      "ABC123",
		Name:      "Lin",
		Phone:     "0911",
		PartySize: 2,
		Start:     tomorrowAt(12, 0),
		Duration:  2 * time.Hour,
		Status:    StatusPending,
	})
	require.ErrorIs(t, err, ErrCodeInUse)
	assert.Equal(t, 1, src.Len(testCalendar))
}

func TestProposeRejectsFullSlot(t *testing.T) {
	mgr, src := newTestManager(t)
	for _, code := range []string{"AAAAA1", "AAAAA2", "AAAAA3"} {
		seedBooking(src, code, tomorrowAt(11, 0))
	}

	_, err := mgr.Propose(context.Background(), Proposal{Name: "Lin", Phone: "0911", PartySize: 2, Start: tomorrowAt(12, 0)})
	var slotErr *SlotUnavailableError
	require.True(t, errors.As(err, &slotErr))
	assert.Equal(t, 3, slotErr.Current)
	assert.Equal(t, 3, slotErr.Capacity)

	// bookings ending at 13:00 do not overlap a 13:00 start
	_, err = mgr.Propose(context.Background(), Proposal{Name: "Lin", Phone: "0911", PartySize: 2, Start: tomorrowAt(13, 0)})
	require.NoError(t, err)
}

func TestProposeBeforeOpeningIsInvalidTime(t *testing.T) {
	mgr, _ := newTestManager(t)
	_, err := mgr.Propose(context.Background(), Proposal{Name: "Lin", Phone: "0911", PartySize: 2, Start: tomorrowAt(9, 30)})
	require.ErrorIs(t, err, ErrInvalidTime)
}

// CheckCapacity and Commit are not atomic: two requests for the last seat
// both pass the check and both commit.
func TestCheckCapacityIsNotAtomicWithCommit(t *testing.T) {
	mgr, src := newTestManager(t)
	ctx := context.Background()
	seedBooking(src, "AAAAA1", tomorrowAt(12, 0))
	seedBooking(src, "AAAAA2", tomorrowAt(12, 0))

	slot, err := mgr.Validate(Proposal{PartySize: 2, Start: tomorrowAt(12, 0)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	counts := make([]int, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			counts[i], errs[i] = mgr.CheckCapacity(ctx, slot)
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, []int{2, 2}, counts)

	for i := 0; i < 2; i++ {
		_, err := src.InsertEvent(ctx, testCalendar, calendar.EventPayload{Start: slot.Start(), End: slot.End()})
		require.NoError(t, err)
	}
	events, err := src.ListEvents(ctx, testCalendar, slot.Start(), slot.End())
	require.NoError(t, err)
	assert.Len(t, events, 4, "capacity of 3 exceeded by the race")
}

func TestAllocateCodeRegeneratesOnCollision(t *testing.T) {
	seq := []string{"aaaaaa", "AAAAAA", "BBBBBB"}
	calls := 0
	mgr, _ := newTestManager(t, WithCodeGenerator(func() (string, error) {
		code := seq[calls]
		calls++
		return code, nil
	}))

	code, err := mgr.AllocateCode(map[string]struct{}{"AAAAAA": {}})
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", code)
	assert.Equal(t, 3, calls)
}

func TestAllocateCodeGivesUp(t *testing.T) {
	mgr, _ := newTestManager(t, WithCodeGenerator(func() (string, error) { return "AAAAAA", nil }))
	_, err := mgr.AllocateCode(map[string]struct{}{"AAAAAA": {}})
	require.Error(t, err)
}

func TestProposeAvoidsCodesInHorizon(t *testing.T) {
	seq := []string{"TAKEN1", "FRESH1"}
	calls := 0
	mgr, src := newTestManager(t, WithCodeGenerator(func() (string, error) {
		code := seq[calls]
		calls++
		return code, nil
	}))
	seedBooking(src, "TAKEN1", time.Date(2024, 5, 20, 10, 0, 0, 0, taipei))

	r, err := mgr.Propose(context.Background(), Proposal{Name: "Lin", Phone: "0911", PartySize: 2, Start: tomorrowAt(12, 0)})
	require.NoError(t, err)
	assert.Equal(t, "FRESH1", r.Code)
}

func TestCommittedCodesAreUnique(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()
	seen := map[string]bool{}
	for day := 2; day <= 8; day++ {
		for _, hour := range []int{10, 12, 14} {
			p := Proposal{Name: "Guest", Phone: "0911", PartySize: 2, Start: time.Date(2024, 5, day, hour, 0, 0, 0, taipei)}
			pending, err := mgr.Propose(ctx, p)
			require.NoError(t, err)
			confirmed, err := mgr.Commit(ctx, pending)
			require.NoError(t, err)
			assert.False(t, seen[confirmed.Code], "duplicate code %s", confirmed.Code)
			seen[confirmed.Code] = true
		}
	}
	codes, err := mgr.ExistingCodes(ctx)
	require.NoError(t, err)
	assert.Len(t, codes, len(seen))
}

func TestCommitRechecksCapacity(t *testing.T) {
	mgr, src := newTestManager(t)
	ctx := context.Background()

	pending, err := mgr.Propose(ctx, Proposal{Name: "Lin", Phone: "0911", PartySize: 2, Start: tomorrowAt(12, 0)})
	require.NoError(t, err)

	for _, code := range []string{"AAAAA1", "AAAAA2", "AAAAA3"} {
		seedBooking(src, code, tomorrowAt(12, 0))
	}
	_, err = mgr.Commit(ctx, pending)
	var slotErr *SlotUnavailableError
	require.True(t, errors.As(err, &slotErr))
}

func TestCommitInsertFailure(t *testing.T) {
	mgr, src := newTestManager(t)
	ctx := context.Background()

	pending, err := mgr.Propose(ctx, Proposal{Name: "Lin", Phone: "0911", PartySize: 2, Start: tomorrowAt(12, 0)})
	require.NoError(t, err)

	src.FailInsert = &calendar.CommitError{Op: "insert", Err: errors.New("quota exceeded")}
	_, err = mgr.Commit(ctx, pending)
	var commitErr *calendar.CommitError
	require.True(t, errors.As(err, &commitErr))

	src.FailInsert = errors.New("unexpected")
	_, err = mgr.Commit(ctx, pending)
	require.True(t, errors.As(err, &commitErr))
}

func TestCalendarOutageIsServiceUnavailable(t *testing.T) {
	mgr, src := newTestManager(t)
	src.FailList = fmt.Errorf("calendar: list: %w", calendar.ErrServiceUnavailable)

	_, err := mgr.Propose(context.Background(), Proposal{Name: "Lin", Phone: "0911", PartySize: 2, Start: tomorrowAt(12, 0)})
	require.ErrorIs(t, err, calendar.ErrServiceUnavailable)

	_, err = mgr.Cancel(context.Background(), "AAAAAA")
	require.ErrorIs(t, err, calendar.ErrServiceUnavailable)
}

func TestCancel(t *testing.T) {
	mgr, src := newTestManager(t)
	ctx := context.Background()
	seedBooking(src, "QW12ER", tomorrowAt(12, 0))

	r, err := mgr.Cancel(ctx, "qw12er")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, r.Status)
	assert.Equal(t, "QW12ER", r.Code)
	assert.Equal(t, 0, src.Len(testCalendar))

	_, err = mgr.Cancel(ctx, "QW12ER")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCancelUnknownCode(t *testing.T) {
	mgr, src := newTestManager(t)
	seedBooking(src, "QW12ER", tomorrowAt(12, 0))

	_, err := mgr.Cancel(context.Background(), "NOPE00")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, src.Len(testCalendar))
}

func TestFindByPhoneMatchesSubstrings(t *testing.T) {
	mgr, src := newTestManager(t)
	ctx := context.Background()

	for i, phone := range []string{"0912345678", "10912345678", "0999888777"} {
		summary, description := EmbedCode(Reservation{Code: fmt.Sprintf("CODE0%d", i), Name: "Guest", Phone: phone, PartySize: 2})
		src.Seed(testCalendar, calendar.BusyEvent{
			Summary:     summary,
			Description: description,
			Start:       tomorrowAt(10+2*i, 0),
			End:         tomorrowAt(12+2*i, 0),
		})
	}
	src.Seed(testCalendar, calendar.BusyEvent{Summary: "Call 0912345678 about wine", Start: tomorrowAt(9, 0), End: tomorrowAt(9, 30)})

	found, err := mgr.FindByPhone(ctx, "0912345678")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "CODE00", found[0].Code)
	assert.Equal(t, "CODE01", found[1].Code)

	none, err := mgr.FindByPhone(ctx, " ")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReschedule(t *testing.T) {
	mgr, src := newTestManager(t)
	ctx := context.Background()
	seedBooking(src, "MOVE01", tomorrowAt(10, 0))
	seedBooking(src, "AAAAA1", tomorrowAt(11, 0))
	seedBooking(src, "AAAAA2", tomorrowAt(11, 0))

	// the booking's own event does not count against the new slot
	moved, err := mgr.Reschedule(ctx, "move01", tomorrowAt(11, 0))
	require.NoError(t, err)
	assert.True(t, moved.Start.Equal(tomorrowAt(11, 0)))
	assert.Equal(t, "evt-MOVE01", moved.EventID)

	found, err := mgr.FindByCode(ctx, "MOVE01")
	require.NoError(t, err)
	assert.True(t, found.Start.Equal(tomorrowAt(11, 0)))
	assert.Equal(t, 3, src.Len(testCalendar))

	seedBooking(src, "AAAAA3", tomorrowAt(14, 0))
	seedBooking(src, "AAAAA4", tomorrowAt(14, 0))
	seedBooking(src, "AAAAA5", tomorrowAt(14, 0))
	_, err = mgr.Reschedule(ctx, "MOVE01", tomorrowAt(14, 0))
	var slotErr *SlotUnavailableError
	require.True(t, errors.As(err, &slotErr))

	_, err = mgr.Reschedule(ctx, "MOVE01", tomorrowAt(15, 0))
	require.ErrorIs(t, err, ErrInvalidTime)
}

func TestAvailability(t *testing.T) {
	mgr, src := newTestManager(t)
	mgr.policy.ListingDays = 2
	for _, code := range []string{"AAAAA1", "AAAAA2", "AAAAA3"} {
		seedBooking(src, code, testNow.Add(4*time.Hour))
	}

	slots, err := mgr.Availability(context.Background())
	require.NoError(t, err)
	// today 12:00-14:00 is full, which blocks starts 10:30 through 13:30
	var today []string
	for _, s := range slots {
		if s.Date == mgr.policy.Window.Today(testNow) {
			today = append(today, s.Start.Format("15:04"))
		}
	}
	assert.Equal(t, []string{"10:00", "14:00"}, today)
	assert.Len(t, slots, 11)

	text, err := mgr.AvailabilityText(context.Background())
	require.NoError(t, err)
	assert.Contains(t, text, "Date: 2024-05-02 (Thu)")
}

func TestFreeSlots(t *testing.T) {
	mgr, src := newTestManager(t)
	seedBooking(src, "AAAAA1", tomorrowAt(12, 0))

	from := timewindow.DateOf(tomorrowAt(0, 0))
	got, err := mgr.FreeSlots(context.Background(), from, from.AddDays(1))
	require.NoError(t, err)
	require.Len(t, got[from], 2)
	assert.True(t, got[from][1].Interval.Start().Equal(tomorrowAt(14, 0)))
	require.Len(t, got[from.AddDays(1)], 1)

	_, err = mgr.FreeSlots(context.Background(), from, from.AddDays(-1))
	require.Error(t, err)
}

func TestAlternatives(t *testing.T) {
	mgr, _ := newTestManager(t)
	mgr.policy.ListingDays = 2
	alts, err := mgr.Alternatives(context.Background(), tomorrowAt(12, 0), 3)
	require.NoError(t, err)
	require.Len(t, alts, 3)
	assert.True(t, alts[0].Start.Equal(tomorrowAt(11, 30)))
	assert.True(t, alts[2].Start.Equal(tomorrowAt(12, 30)))
}

type recordingLedger struct {
	mu        sync.Mutex
	recorded  []Reservation
	cancelled []string
	codes     []string
	err       error
}

func (l *recordingLedger) Record(_ context.Context, r Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recorded = append(l.recorded, r)
	return l.err
}

func (l *recordingLedger) MarkCancelled(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelled = append(l.cancelled, code)
	return l.err
}

func (l *recordingLedger) ActiveCodes(context.Context, time.Time, time.Time) ([]string, error) {
	return l.codes, l.err
}

type recordingPublisher struct {
	confirmed []string
	cancelled []string
}

func (p *recordingPublisher) ReservationConfirmed(_ context.Context, r Reservation) error {
	p.confirmed = append(p.confirmed, r.Code)
	return nil
}

func (p *recordingPublisher) ReservationCancelled(_ context.Context, r Reservation) error {
	p.cancelled = append(p.cancelled, r.Code)
	return nil
}

func TestLedgerAndPublisherFollowLifecycle(t *testing.T) {
	ledger := &recordingLedger{codes: []string{"ledger"}}
	pub := &recordingPublisher{}
	seq := []string{"LEDGER", "NEWONE"}
	calls := 0
	mgr, _ := newTestManager(t, WithLedger(ledger), WithPublisher(pub), WithCodeGenerator(func() (string, error) {
		code := seq[calls]
		calls++
		return code, nil
	}))
	ctx := context.Background()

	pending, err := mgr.Propose(ctx, Proposal{Name: "Lin", Phone: "0911", PartySize: 2, Start: tomorrowAt(12, 0)})
	require.NoError(t, err)
	assert.Equal(t, "NEWONE", pending.Code)

	_, err = mgr.Commit(ctx, pending)
	require.NoError(t, err)
	_, err = mgr.Cancel(ctx, "NEWONE")
	require.NoError(t, err)

	require.Len(t, ledger.recorded, 1)
	assert.Equal(t, StatusConfirmed, ledger.recorded[0].Status)
	assert.Equal(t, []string{"NEWONE"}, ledger.cancelled)
	assert.Equal(t, []string{"NEWONE"}, pub.confirmed)
	assert.Equal(t, []string{"NEWONE"}, pub.cancelled)
}

func TestLedgerFailureDoesNotFailCommit(t *testing.T) {
	ledger := &recordingLedger{err: errors.New("db down")}
	mgr, src := newTestManager(t, WithLedger(ledger))
	ctx := context.Background()

	pending, err := mgr.Propose(ctx, Proposal{Name: "Lin", Phone: "0911", PartySize: 2, Start: tomorrowAt(12, 0)})
	require.NoError(t, err)
	_, err = mgr.Commit(ctx, pending)
	require.NoError(t, err)
	assert.Equal(t, 1, src.Len(testCalendar))
}
