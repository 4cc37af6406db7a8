package availability

import (
	"time"

	"github.com/wolfman30/tablebot/internal/calendar"
	"github.com/wolfman30/tablebot/internal/timewindow"
)

// BookableSlot is a fixed-length slot that still has room.
type BookableSlot struct {
	Date     timewindow.Date
	Start    time.Time
	End      time.Time
	Overlap  int
	Capacity int
}

// Remaining is how many more parties fit in the slot.
func (s BookableSlot) Remaining() int { return s.Capacity - s.Overlap }

// EnumerateParams controls EnumerateBookableSlots.
type EnumerateParams struct {
	HorizonDays  int
	Granularity  time.Duration
	SlotDuration time.Duration
	Window       OperatingWindow
	Capacity     int
	Events       []calendar.BusyEvent
	Now          time.Time
}

// EnumerateBookableSlots walks every day in [today, today+HorizonDays) and
// every start at Granularity steps from opening whose slot ends by closing.
// Slots already over are skipped; the rest are kept while the overlap stays
// below Capacity. Output is ordered by day then start.
func EnumerateBookableSlots(p EnumerateParams) []BookableSlot {
	if p.Granularity <= 0 || p.SlotDuration <= 0 || p.HorizonDays <= 0 {
		return nil
	}
	loc := p.Window.loc()
	busy := p.Window.eventIntervals(p.Events)
	today := p.Window.Today(p.Now)

	var out []BookableSlot
	for i := 0; i < p.HorizonDays; i++ {
		day := today.AddDays(i)
		closing := day.At(p.Window.Close, loc)
		for start := day.At(p.Window.Open, loc); !start.Add(p.SlotDuration).After(closing); start = start.Add(p.Granularity) {
			end := start.Add(p.SlotDuration)
			if !end.After(p.Now) {
				continue
			}
			overlap := timewindow.OverlapCount(timewindow.MustNew(start, end), busy)
			if overlap < p.Capacity {
				out = append(out, BookableSlot{
					Date:     day,
					Start:    start,
					End:      end,
					Overlap:  overlap,
					Capacity: p.Capacity,
				})
			}
		}
	}
	return out
}

// DaySlots is the bookable slots of one date.
type DaySlots struct {
	Date  timewindow.Date
	Slots []BookableSlot
}

// GroupByDay groups an ordered slot list by date, preserving order.
func GroupByDay(slots []BookableSlot) []DaySlots {
	var out []DaySlots
	for _, s := range slots {
		if n := len(out); n > 0 && out[n-1].Date == s.Date {
			out[n-1].Slots = append(out[n-1].Slots, s)
			continue
		}
		out = append(out, DaySlots{Date: s.Date, Slots: []BookableSlot{s}})
	}
	return out
}

// Nearest returns up to n slots closest to target, ordered by distance and
// then by start.
func Nearest(slots []BookableSlot, target time.Time, n int) []BookableSlot {
	if n <= 0 || len(slots) == 0 {
		return nil
	}
	picked := make([]BookableSlot, 0, n)
	used := make([]bool, len(slots))
	for len(picked) < n {
		best := -1
		var bestDist time.Duration
		for i, s := range slots {
			if used[i] {
				continue
			}
			d := s.Start.Sub(target)
			if d < 0 {
				d = -d
			}
			if best == -1 || d < bestDist {
				best, bestDist = i, d
			}
		}
		if best == -1 {
			break
		}
		used[best] = true
		picked = append(picked, slots[best])
	}
	for i := 1; i < len(picked); i++ {
		for j := i; j > 0 && picked[j].Start.Before(picked[j-1].Start); j-- {
			picked[j], picked[j-1] = picked[j-1], picked[j]
		}
	}
	return picked
}
