package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemorySource is an in-process EventSource for local runs and tests.
type MemorySource struct {
	mu        sync.RWMutex
	calendars map[string]map[string]BusyEvent

	// FailList, FailInsert and FailDelete inject errors into the next calls.
	FailList   error
	FailInsert error
	FailDelete error
}

func NewMemorySource() *MemorySource {
	return &MemorySource{
		calendars: make(map[string]map[string]BusyEvent),
	}
}

// Seed stores events as-is, assigning IDs to those without one.
func (m *MemorySource) Seed(calendarID string, events ...BusyEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cal := m.calendarLocked(calendarID)
	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		cal[ev.ID] = ev
	}
}

func (m *MemorySource) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]BusyEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("calendar: list: %v: %w", err, ErrServiceUnavailable)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailList != nil {
		return nil, m.FailList
	}
	var out []BusyEvent
	for _, ev := range m.calendars[calendarID] {
		if ev.Start.Before(timeMax) && timeMin.Before(ev.End) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func (m *MemorySource) InsertEvent(ctx context.Context, calendarID string, payload EventPayload) (BusyEvent, error) {
	if err := ctx.Err(); err != nil {
		return BusyEvent{}, fmt.Errorf("calendar: insert: %v: %w", err, ErrServiceUnavailable)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailInsert != nil {
		return BusyEvent{}, m.FailInsert
	}
	if !payload.End.After(payload.Start) {
		return BusyEvent{}, &CommitError{Op: "insert", Err: fmt.Errorf("end must be after start")}
	}
	ev := BusyEvent{
		ID:          uuid.NewString(),
		Summary:     payload.Summary,
		Description: payload.Description,
		Start:       payload.Start,
		End:         payload.End,
	}
	m.calendarLocked(calendarID)[ev.ID] = ev
	return ev, nil
}

func (m *MemorySource) UpdateEvent(ctx context.Context, calendarID, eventID string, payload EventPayload) (BusyEvent, error) {
	if err := ctx.Err(); err != nil {
		return BusyEvent{}, fmt.Errorf("calendar: update: %v: %w", err, ErrServiceUnavailable)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cal := m.calendarLocked(calendarID)
	if _, ok := cal[eventID]; !ok {
		return BusyEvent{}, fmt.Errorf("calendar: update: %w", ErrNotFound)
	}
	ev := BusyEvent{
		ID:          eventID,
		Summary:     payload.Summary,
		Description: payload.Description,
		Start:       payload.Start,
		End:         payload.End,
	}
	cal[eventID] = ev
	return ev, nil
}

func (m *MemorySource) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("calendar: delete: %v: %w", err, ErrServiceUnavailable)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete != nil {
		return m.FailDelete
	}
	cal := m.calendarLocked(calendarID)
	if _, ok := cal[eventID]; !ok {
		return fmt.Errorf("calendar: delete: %w", ErrNotFound)
	}
	delete(cal, eventID)
	return nil
}

// Len reports how many events the calendar holds.
func (m *MemorySource) Len(calendarID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calendars[calendarID])
}

func (m *MemorySource) calendarLocked(calendarID string) map[string]BusyEvent {
	cal, ok := m.calendars[calendarID]
	if !ok {
		cal = make(map[string]BusyEvent)
		m.calendars[calendarID] = cal
	}
	return cal
}
