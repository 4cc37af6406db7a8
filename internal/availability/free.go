package availability

import (
	"time"

	"github.com/wolfman30/tablebot/internal/calendar"
	"github.com/wolfman30/tablebot/internal/timewindow"
)

// MinFreeDuration is the length a free fragment must exceed to be reported.
const MinFreeDuration = 60 * time.Second

// FreeSlot is a maximal free interval together with the number of events
// overlapping it.
type FreeSlot struct {
	Interval timewindow.Interval
	Overlap  int
}

// ComputeFreeSlots returns the free intervals of day inside window. The
// result map holds at most one key; days with nothing free are absent.
func ComputeFreeSlots(day timewindow.Date, window OperatingWindow, events []calendar.BusyEvent, capacity int) map[timewindow.Date][]FreeSlot {
	out := make(map[timewindow.Date][]FreeSlot, 1)
	if slots := freeSlotsOn(day, window, events, capacity); len(slots) > 0 {
		out[day] = slots
	}
	return out
}

// ComputeFreeSlotsRange runs ComputeFreeSlots for every date in [from, to].
func ComputeFreeSlotsRange(from, to timewindow.Date, window OperatingWindow, events []calendar.BusyEvent, capacity int) map[timewindow.Date][]FreeSlot {
	out := make(map[timewindow.Date][]FreeSlot)
	for day := from; !day.After(to); day = day.AddDays(1) {
		if slots := freeSlotsOn(day, window, events, capacity); len(slots) > 0 {
			out[day] = slots
		}
	}
	return out
}

func freeSlotsOn(day timewindow.Date, window OperatingWindow, events []calendar.BusyEvent, capacity int) []FreeSlot {
	bounds := window.On(day)

	busy := make([]timewindow.Interval, 0, len(events))
	for _, ev := range events {
		if iv, ok := window.busyInterval(ev, day); ok {
			busy = append(busy, iv)
		}
	}

	free := []timewindow.Interval{bounds}
	for _, b := range busy {
		clipped, ok := timewindow.Clip(b, bounds)
		if !ok {
			continue
		}
		free = timewindow.SubtractAll(free, clipped)
	}

	var out []FreeSlot
	for _, f := range free {
		if f.Duration() <= MinFreeDuration {
			continue
		}
		overlap := timewindow.OverlapCount(f, busy)
		if overlap < capacity {
			out = append(out, FreeSlot{Interval: f, Overlap: overlap})
		}
	}
	return out
}
