package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/tablebot/internal/availability"
	"github.com/wolfman30/tablebot/internal/calendar"
	"github.com/wolfman30/tablebot/internal/observability/metrics"
	"github.com/wolfman30/tablebot/internal/timewindow"
	"github.com/wolfman30/tablebot/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("tablebot.internal.reservation")

// Manager runs the reservation lifecycle against an EventSource.
//
// CheckCapacity and the event insert in Commit are separate calendar calls.
// Two proposals racing for the last seat can both pass the check; the
// calendar offers no conditional write to close that gap.
type Manager struct {
	source    calendar.EventSource
	policy    Policy
	logger    *logging.Logger
	metrics   *metrics.ReservationMetrics
	ledger    Ledger
	publisher Publisher
	now       func() time.Time
	newCode   CodeGenerator
}

type Option func(*Manager)

// WithMetrics records lifecycle outcomes.
func WithMetrics(m *metrics.ReservationMetrics) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// WithLedger mirrors confirmed and cancelled reservations into a ledger.
func WithLedger(l Ledger) Option {
	return func(mgr *Manager) {
		mgr.ledger = l
	}
}

// WithPublisher announces confirmations and cancellations.
func WithPublisher(p Publisher) Option {
	return func(mgr *Manager) {
		mgr.publisher = p
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(mgr *Manager) {
		if now != nil {
			mgr.now = now
		}
	}
}

// WithCodeGenerator overrides how candidate codes are drawn.
func WithCodeGenerator(gen CodeGenerator) Option {
	return func(mgr *Manager) {
		if gen != nil {
			mgr.newCode = gen
		}
	}
}

func NewManager(source calendar.EventSource, policy Policy, logger *logging.Logger, opts ...Option) *Manager {
	if source == nil {
		panic("reservation: event source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	m := &Manager{
		source:  source,
		policy:  policy,
		logger:  logger,
		now:     time.Now,
		newCode: RandomCode,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the rules the manager enforces.
func (m *Manager) Policy() Policy { return m.policy }

// Now returns the current business-local time.
func (m *Manager) Now() time.Time { return m.now().In(m.policy.location()) }

// Validate checks a proposal against operating hours and the booking
// horizon and returns the slot it would occupy.
func (m *Manager) Validate(p Proposal) (timewindow.Interval, error) {
	if p.PartySize <= 0 {
		return timewindow.Interval{}, ErrInvalidPartySize
	}
	slot, err := timewindow.Of(p.Start.In(m.policy.location()), m.policy.SlotDuration)
	if err != nil {
		return timewindow.Interval{}, fmt.Errorf("%w: %v", ErrInvalidTime, err)
	}
	if !m.policy.Window.Covers(slot) {
		return timewindow.Interval{}, ErrInvalidTime
	}
	now := m.Now()
	if slot.Start().Before(now) || slot.Start().After(m.policy.horizonEnd(now)) {
		return timewindow.Interval{}, ErrInvalidHorizon
	}
	return slot, nil
}

// CheckCapacity counts events overlapping slot and fails with
// *SlotUnavailableError when the count has reached capacity.
func (m *Manager) CheckCapacity(ctx context.Context, slot timewindow.Interval) (int, error) {
	return m.checkCapacity(ctx, slot, "")
}

func (m *Manager) checkCapacity(ctx context.Context, slot timewindow.Interval, excludeEventID string) (int, error) {
	ctx, span := tracer.Start(ctx, "reservation.check_capacity")
	defer span.End()

	events, err := m.source.ListEvents(ctx, m.policy.CalendarID, slot.Start(), slot.End())
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("reservation: check capacity: %w", err)
	}
	count := 0
	for _, ev := range events {
		if excludeEventID != "" && ev.ID == excludeEventID {
			continue
		}
		if ev.Start.Before(slot.End()) && slot.Start().Before(ev.End) {
			count++
		}
	}
	span.SetAttributes(attribute.Int("reservation.overlap", count))
	if count >= m.policy.Capacity {
		return count, &SlotUnavailableError{Current: count, Capacity: m.policy.Capacity}
	}
	return count, nil
}

// AllocateCode draws codes until one is absent from existing.
func (m *Manager) AllocateCode(existing map[string]struct{}) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := m.newCode()
		if err != nil {
			return "", fmt.Errorf("reservation: generate code: %w", err)
		}
		code = strings.ToUpper(code)
		if _, taken := existing[code]; !taken {
			return code, nil
		}
		m.logger.Debug("reservation code collision, regenerating", "code", code)
	}
	return "", fmt.Errorf("reservation: no free code after %d attempts", maxCodeAttempts)
}

// ExistingCodes collects the codes of reservations visible in the horizon,
// plus any the ledger still holds as active.
func (m *Manager) ExistingCodes(ctx context.Context) (map[string]struct{}, error) {
	events, err := m.horizonEvents(ctx)
	if err != nil {
		return nil, err
	}
	codes := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if code, ok := ExtractCode(ev.Summary, ev.Description); ok {
			codes[code] = struct{}{}
		}
	}
	if m.ledger != nil {
		now := m.Now()
		active, err := m.ledger.ActiveCodes(ctx, now, m.policy.horizonEnd(now).Add(m.policy.SlotDuration))
		if err != nil {
			m.logger.Warn("ledger code lookup failed", "error", err)
		}
		for _, code := range active {
			codes[strings.ToUpper(code)] = struct{}{}
		}
	}
	return codes, nil
}

// Propose validates p, rejects full slots early and assigns a fresh code.
// The result is pending until Commit.
func (m *Manager) Propose(ctx context.Context, p Proposal) (*Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservation.propose")
	defer span.End()

	slot, err := m.Validate(p)
	if err != nil {
		m.metrics.ObserveProposal(outcomeOf(err))
		return nil, err
	}
	if _, err := m.CheckCapacity(ctx, slot); err != nil {
		span.RecordError(err)
		m.metrics.ObserveProposal(outcomeOf(err))
		return nil, err
	}
	existing, err := m.ExistingCodes(ctx)
	if err != nil {
		span.RecordError(err)
		m.metrics.ObserveProposal(outcomeOf(err))
		return nil, err
	}
	code, err := m.AllocateCode(existing)
	if err != nil {
		span.RecordError(err)
		m.metrics.ObserveProposal("error")
		return nil, err
	}
	span.SetAttributes(attribute.String("reservation.code", code))
	m.metrics.ObserveProposal("accepted")
	return &Reservation{
		Code:      code,
		Name:      strings.TrimSpace(p.Name),
		Phone:     strings.TrimSpace(p.Phone),
		PartySize: p.PartySize,
		Start:     slot.Start(),
		Duration:  m.policy.SlotDuration,
		Status:    StatusPending,
	}, nil
}

// Commit writes a pending reservation to the calendar. Validation and the
// capacity check run again since time has passed since Propose. Committing
// a code that is already on the calendar at the same start returns that
// event instead of inserting a second one; at another start it fails with
// ErrCodeInUse.
func (m *Manager) Commit(ctx context.Context, r *Reservation) (*Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservation.commit")
	defer span.End()
	if r == nil {
		return nil, errors.New("reservation: nothing to commit")
	}
	span.SetAttributes(attribute.String("reservation.code", r.Code))

	slot, err := m.Validate(Proposal{Name: r.Name, Phone: r.Phone, PartySize: r.PartySize, Start: r.Start})
	if err != nil {
		m.metrics.ObserveCommit(outcomeOf(err))
		return nil, err
	}
	existing, err := m.FindByCode(ctx, r.Code)
	switch {
	case err == nil && existing.Start.Equal(slot.Start()):
		m.metrics.ObserveCommit("duplicate")
		m.logger.Info("reservation already committed", "code", existing.Code, "event_id", existing.EventID)
		return existing, nil
	case err == nil:
		m.metrics.ObserveCommit(outcomeOf(ErrCodeInUse))
		return nil, fmt.Errorf("reservation: commit %s: %w", r.Code, ErrCodeInUse)
	case !errors.Is(err, ErrNotFound):
		span.RecordError(err)
		m.metrics.ObserveCommit(outcomeOf(err))
		return nil, err
	}
	if _, err := m.CheckCapacity(ctx, slot); err != nil {
		span.RecordError(err)
		m.metrics.ObserveCommit(outcomeOf(err))
		return nil, err
	}

	committed := *r
	committed.Start = slot.Start()
	committed.Duration = slot.Duration()
	ev, err := m.source.InsertEvent(ctx, m.policy.CalendarID, m.payload(committed))
	if err != nil {
		span.RecordError(err)
		m.metrics.ObserveCommit(outcomeOf(err))
		var commitErr *calendar.CommitError
		if errors.As(err, &commitErr) || errors.Is(err, calendar.ErrServiceUnavailable) {
			return nil, err
		}
		return nil, &calendar.CommitError{Op: "insert", Err: err}
	}
	committed.EventID = ev.ID
	committed.Status = StatusConfirmed
	m.metrics.ObserveCommit("confirmed")
	m.logger.Info("reservation committed", "code", committed.Code, "event_id", ev.ID, "start", committed.Start.Format(time.RFC3339), "party_size", committed.PartySize)

	if m.ledger != nil {
		if err := m.ledger.Record(ctx, committed); err != nil {
			m.logger.Warn("ledger record failed", "code", committed.Code, "error", err)
		}
	}
	if m.publisher != nil {
		if err := m.publisher.ReservationConfirmed(ctx, committed); err != nil {
			m.logger.Warn("publish reservation confirmed failed", "code", committed.Code, "error", err)
		}
	}
	return &committed, nil
}

// FindByCode returns the reservation carrying code, compared
// case-insensitively.
func (m *Manager) FindByCode(ctx context.Context, code string) (*Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservation.find_by_code")
	defer span.End()

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("reservation: empty code: %w", ErrNotFound)
	}
	events, err := m.horizonEvents(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for _, ev := range events {
		r, ok := ParseReservation(ev)
		if ok && r.Code == code {
			return &r, nil
		}
	}
	return nil, fmt.Errorf("reservation: code %s: %w", code, ErrNotFound)
}

// Cancel deletes the reservation carrying code.
func (m *Manager) Cancel(ctx context.Context, code string) (*Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservation.cancel")
	defer span.End()

	r, err := m.FindByCode(ctx, code)
	if err != nil {
		span.RecordError(err)
		m.metrics.ObserveCancellation(outcomeOf(err))
		return nil, err
	}
	if err := m.source.DeleteEvent(ctx, m.policy.CalendarID, r.EventID); err != nil {
		span.RecordError(err)
		m.metrics.ObserveCancellation(outcomeOf(err))
		return nil, fmt.Errorf("reservation: cancel %s: %w", r.Code, err)
	}
	r.Status = StatusCancelled
	m.metrics.ObserveCancellation("cancelled")
	m.logger.Info("reservation cancelled", "code", r.Code, "event_id", r.EventID)

	if m.ledger != nil {
		if err := m.ledger.MarkCancelled(ctx, r.Code); err != nil {
			m.logger.Warn("ledger cancel failed", "code", r.Code, "error", err)
		}
	}
	if m.publisher != nil {
		if err := m.publisher.ReservationCancelled(ctx, *r); err != nil {
			m.logger.Warn("publish reservation cancelled failed", "code", r.Code, "error", err)
		}
	}
	return r, nil
}

// FindByPhone returns reservations whose event text contains phone.
// Matching is by substring, so a number that is a suffix of another
// matches both.
func (m *Manager) FindByPhone(ctx context.Context, phone string) ([]Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservation.find_by_phone")
	defer span.End()

	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, nil
	}
	events, err := m.horizonEvents(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	var out []Reservation
	for _, ev := range events {
		if !strings.Contains(ev.Summary, phone) && !strings.Contains(ev.Description, phone) {
			continue
		}
		if r, ok := ParseReservation(ev); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// Reschedule moves the reservation carrying code to newStart, keeping its
// code, guest details and calendar event.
func (m *Manager) Reschedule(ctx context.Context, code string, newStart time.Time) (*Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservation.reschedule")
	defer span.End()

	current, err := m.FindByCode(ctx, code)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	slot, err := m.Validate(Proposal{Name: current.Name, Phone: current.Phone, PartySize: max(current.PartySize, 1), Start: newStart})
	if err != nil {
		return nil, err
	}
	if _, err := m.checkCapacity(ctx, slot, current.EventID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	moved := *current
	moved.Start = slot.Start()
	moved.Duration = slot.Duration()
	if _, err := m.source.UpdateEvent(ctx, m.policy.CalendarID, current.EventID, m.payload(moved)); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("reservation: reschedule %s: %w", current.Code, err)
	}
	m.logger.Info("reservation rescheduled", "code", moved.Code, "from", current.Start.Format(time.RFC3339), "to", moved.Start.Format(time.RFC3339))

	if m.ledger != nil {
		if err := m.ledger.Record(ctx, moved); err != nil {
			m.logger.Warn("ledger record failed", "code", moved.Code, "error", err)
		}
	}
	return &moved, nil
}

// Availability lists bookable slots for the listing period.
func (m *Manager) Availability(ctx context.Context) ([]availability.BookableSlot, error) {
	ctx, span := tracer.Start(ctx, "reservation.availability")
	defer span.End()

	now := m.Now()
	today := m.policy.Window.Today(now)
	from := today.Midnight(m.policy.location())
	to := today.AddDays(m.policy.ListingDays).Midnight(m.policy.location())
	events, err := m.source.ListEvents(ctx, m.policy.CalendarID, from, to)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("reservation: availability: %w", err)
	}
	return availability.EnumerateBookableSlots(availability.EnumerateParams{
		HorizonDays:  m.policy.ListingDays,
		Granularity:  m.policy.Granularity,
		SlotDuration: m.policy.SlotDuration,
		Window:       m.policy.Window,
		Capacity:     m.policy.Capacity,
		Events:       events,
		Now:          now,
	}), nil
}

// AvailabilityText renders Availability as guest-facing text.
func (m *Manager) AvailabilityText(ctx context.Context) (string, error) {
	slots, err := m.Availability(ctx)
	if err != nil {
		return "", err
	}
	return availability.FormatListing(slots, m.policy.Window, m.policy.SlotDuration), nil
}

// FreeSlots returns the maximal free intervals for each date in [from, to].
func (m *Manager) FreeSlots(ctx context.Context, from, to timewindow.Date) (map[timewindow.Date][]availability.FreeSlot, error) {
	ctx, span := tracer.Start(ctx, "reservation.free_slots")
	defer span.End()
	if to.Before(from) {
		return nil, fmt.Errorf("reservation: range end %s before start %s", to, from)
	}

	loc := m.policy.location()
	events, err := m.source.ListEvents(ctx, m.policy.CalendarID, from.Midnight(loc), to.AddDays(1).Midnight(loc))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("reservation: free slots: %w", err)
	}
	return availability.ComputeFreeSlotsRange(from, to, m.policy.Window, events, m.policy.Capacity), nil
}

// Alternatives suggests up to n bookable slots near target.
func (m *Manager) Alternatives(ctx context.Context, target time.Time, n int) ([]availability.BookableSlot, error) {
	slots, err := m.Availability(ctx)
	if err != nil {
		return nil, err
	}
	return availability.Nearest(slots, target, n), nil
}

func (m *Manager) horizonEvents(ctx context.Context) ([]calendar.BusyEvent, error) {
	now := m.Now()
	events, err := m.source.ListEvents(ctx, m.policy.CalendarID, now, m.policy.horizonEnd(now).Add(m.policy.SlotDuration))
	if err != nil {
		return nil, fmt.Errorf("reservation: list horizon: %w", err)
	}
	return events, nil
}

func (m *Manager) payload(r Reservation) calendar.EventPayload {
	summary, description := EmbedCode(r)
	return calendar.EventPayload{
		Summary:     summary,
		Description: description,
		Location:    m.policy.Location,
		Start:       r.Start,
		End:         r.End(),
		Reminders:   calendar.DefaultReminders(),
	}
}

func outcomeOf(err error) string {
	var slotErr *SlotUnavailableError
	var commitErr *calendar.CommitError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidTime):
		return "invalid_time"
	case errors.Is(err, ErrInvalidHorizon):
		return "invalid_horizon"
	case errors.Is(err, ErrInvalidPartySize):
		return "invalid_party_size"
	case errors.As(err, &slotErr):
		return "slot_unavailable"
	case errors.Is(err, ErrCodeInUse):
		return "code_in_use"
	case errors.Is(err, calendar.ErrNotFound):
		return "not_found"
	case errors.Is(err, calendar.ErrServiceUnavailable):
		return "service_unavailable"
	case errors.As(err, &commitErr):
		return "commit_error"
	default:
		return "error"
	}
}
