// Package availability computes free time and bookable slots from the busy
// events of a calendar.
package availability

import (
	"fmt"
	"time"

	"github.com/wolfman30/tablebot/internal/calendar"
	"github.com/wolfman30/tablebot/internal/timewindow"
)

// OperatingWindow is the daily span during which reservations may be held.
// Open and Close are offsets from local midnight.
type OperatingWindow struct {
	Open     time.Duration
	Close    time.Duration
	Location *time.Location
}

// DefaultWindow is 10:00 to 16:00 in loc.
func DefaultWindow(loc *time.Location) OperatingWindow {
	return OperatingWindow{Open: 10 * time.Hour, Close: 16 * time.Hour, Location: loc}
}

// NewWindow parses "HH:MM" opening and closing clocks.
func NewWindow(open, closing string, loc *time.Location) (OperatingWindow, error) {
	o, err := timewindow.Clock(open)
	if err != nil {
		return OperatingWindow{}, err
	}
	c, err := timewindow.Clock(closing)
	if err != nil {
		return OperatingWindow{}, err
	}
	w := OperatingWindow{Open: o, Close: c, Location: loc}
	if err := w.Validate(); err != nil {
		return OperatingWindow{}, err
	}
	return w, nil
}

func (w OperatingWindow) Validate() error {
	if w.Close <= w.Open {
		return fmt.Errorf("availability: closing %s is not after opening %s", timewindow.FormatClock(w.Close), timewindow.FormatClock(w.Open))
	}
	if w.Close > 24*time.Hour {
		return fmt.Errorf("availability: closing %s is past midnight", timewindow.FormatClock(w.Close))
	}
	return nil
}

func (w OperatingWindow) loc() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

// On returns the window as an interval on the given date.
func (w OperatingWindow) On(day timewindow.Date) timewindow.Interval {
	loc := w.loc()
	return timewindow.MustNew(day.At(w.Open, loc), day.At(w.Close, loc))
}

// Covers reports whether iv lies within the window of a single day.
func (w OperatingWindow) Covers(iv timewindow.Interval) bool {
	start := iv.Start().In(w.loc())
	return w.On(timewindow.DateOf(start)).Contains(iv)
}

// Today returns the business-local date of now.
func (w OperatingWindow) Today(now time.Time) timewindow.Date {
	return timewindow.DateOf(now.In(w.loc()))
}

// busyInterval converts an event into the span it occupies on day. All-day
// events occupy the whole operating window. ok is false when the event does
// not touch day.
func (w OperatingWindow) busyInterval(ev calendar.BusyEvent, day timewindow.Date) (timewindow.Interval, bool) {
	loc := w.loc()
	dayStart := day.Midnight(loc)
	dayEnd := day.AddDays(1).Midnight(loc)
	if !ev.Start.Before(dayEnd) || !dayStart.Before(ev.End) {
		return timewindow.Interval{}, false
	}
	if ev.AllDay {
		return w.On(day), true
	}
	iv, err := timewindow.New(ev.Start, ev.End)
	if err != nil {
		return timewindow.Interval{}, false
	}
	return iv, true
}

// eventIntervals converts events into raw intervals, skipping malformed ones.
// All-day events are projected onto the window of each day they cover.
func (w OperatingWindow) eventIntervals(events []calendar.BusyEvent) []timewindow.Interval {
	out := make([]timewindow.Interval, 0, len(events))
	loc := w.loc()
	for _, ev := range events {
		if ev.AllDay {
			for day := timewindow.DateOf(ev.Start.In(loc)); day.Midnight(loc).Before(ev.End); day = day.AddDays(1) {
				out = append(out, w.On(day))
			}
			continue
		}
		iv, err := timewindow.New(ev.Start, ev.End)
		if err != nil {
			continue
		}
		out = append(out, iv)
	}
	return out
}
