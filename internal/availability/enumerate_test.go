package availability

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/tablebot/internal/calendar"
)

func params(now time.Time, events []calendar.BusyEvent) EnumerateParams {
	return EnumerateParams{
		HorizonDays:  1,
		Granularity:  30 * time.Minute,
		SlotDuration: 2 * time.Hour,
		Window:       DefaultWindow(taipei),
		Capacity:     3,
		Events:       events,
		Now:          now,
	}
}

func starts(slots []BookableSlot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start.Format("15:04"))
	}
	return out
}

func TestEnumerateBookableSlotsFullDay(t *testing.T) {
	slots := EnumerateBookableSlots(params(local(8, 0), nil))
	assert.Equal(t, []string{"10:00", "10:30", "11:00", "11:30", "12:00", "12:30", "13:00", "13:30", "14:00"}, starts(slots))
	for _, s := range slots {
		assert.Equal(t, 2*time.Hour, s.End.Sub(s.Start))
		assert.Equal(t, 3, s.Remaining())
	}
}

func TestEnumerateBookableSlotsSkipsFinishedSlots(t *testing.T) {
	slots := EnumerateBookableSlots(params(local(12, 0), nil))
	assert.Equal(t, []string{"10:30", "11:00", "11:30", "12:00", "12:30", "13:00", "13:30", "14:00"}, starts(slots))
}

func TestEnumerateBookableSlotsRespectsCapacity(t *testing.T) {
	events := []calendar.BusyEvent{busy(12, 0, 14, 0), busy(12, 0, 14, 0), busy(13, 0, 15, 0)}
	slots := EnumerateBookableSlots(params(local(8, 0), events))
	// starts from 11:30 through 13:30 overlap all three bookings
	assert.Equal(t, []string{"10:00", "10:30", "11:00", "14:00"}, starts(slots))
	assert.Equal(t, 2, slots[2].Overlap)
	assert.Equal(t, 1, slots[3].Overlap)
}

func TestEnumerateBookableSlotsAllDayEventOccupiesWindow(t *testing.T) {
	p := params(local(8, 0), []calendar.BusyEvent{
		{AllDay: true, Start: testDay.Midnight(taipei), End: testDay.AddDays(1).Midnight(taipei)},
	})
	p.Capacity = 1
	p.HorizonDays = 2
	slots := EnumerateBookableSlots(p)
	require.Len(t, slots, 9)
	assert.Equal(t, testDay.AddDays(1), slots[0].Date)
}

func TestEnumerateBookableSlotsMultipleDaysOrdered(t *testing.T) {
	p := params(local(8, 0), nil)
	p.HorizonDays = 3
	slots := EnumerateBookableSlots(p)
	require.Len(t, slots, 27)
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].Start.Before(slots[i].Start))
	}

	days := GroupByDay(slots)
	require.Len(t, days, 3)
	assert.Equal(t, testDay.AddDays(2), days[2].Date)
	assert.Len(t, days[1].Slots, 9)
}

func TestEnumerateBookableSlotsInvalidParams(t *testing.T) {
	p := params(local(8, 0), nil)
	p.Granularity = 0
	assert.Nil(t, EnumerateBookableSlots(p))
}

func TestNearest(t *testing.T) {
	slots := EnumerateBookableSlots(params(local(8, 0), nil))
	got := Nearest(slots, local(12, 10), 3)
	assert.Equal(t, []string{"11:30", "12:00", "12:30"}, starts(got))
	assert.Nil(t, Nearest(slots, local(12, 0), 0))
}

func TestFormatListing(t *testing.T) {
	window := DefaultWindow(taipei)
	slots := EnumerateBookableSlots(params(local(13, 0), nil))
	text := FormatListing(slots, window, 2*time.Hour)
	assert.True(t, strings.HasPrefix(text, "Here are the 2-hour slots available between 10:00 and 16:00:"))
	assert.Contains(t, text, "Date: 2024-05-01 (Wed)")
	assert.Contains(t, text, "  14:00 - 16:00\n")

	empty := FormatListing(nil, window, 2*time.Hour)
	assert.Equal(t, "Sorry, there are no 2-hour slots available between 10:00 and 16:00 in this period.", empty)

	assert.Equal(t, "2024-05-01 13:30, 2024-05-01 14:00", FormatSuggestions(slots[len(slots)-2:]))
}
