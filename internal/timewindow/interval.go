// Package timewindow holds the half-open interval arithmetic used by the
// availability engine and the reservation manager.
package timewindow

import (
	"fmt"
	"time"
)

// Interval is a half-open time range [Start, End). The zero value is empty.
type Interval struct {
	start time.Time
	end   time.Time
}

// New returns the interval [start, end). It fails when end is not after start.
func New(start, end time.Time) (Interval, error) {
	if !end.After(start) {
		return Interval{}, fmt.Errorf("timewindow: end %s is not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Interval{start: start, end: end}, nil
}

// MustNew is New for callers that already guarantee start < end.
func MustNew(start, end time.Time) Interval {
	iv, err := New(start, end)
	if err != nil {
		panic(err)
	}
	return iv
}

// Of returns the interval starting at start and lasting d.
func Of(start time.Time, d time.Duration) (Interval, error) {
	return New(start, start.Add(d))
}

func (i Interval) Start() time.Time { return i.start }

func (i Interval) End() time.Time { return i.end }

func (i Interval) Duration() time.Duration { return i.end.Sub(i.start) }

// IsZero reports whether the interval is the empty zero value.
func (i Interval) IsZero() bool { return i.start.IsZero() && i.end.IsZero() }

// In returns the same instants expressed in loc.
func (i Interval) In(loc *time.Location) Interval {
	return Interval{start: i.start.In(loc), end: i.end.In(loc)}
}

// Contains reports whether other lies entirely within i.
func (i Interval) Contains(other Interval) bool {
	return !other.start.Before(i.start) && !other.end.After(i.end)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.start.Format(time.RFC3339), i.end.Format(time.RFC3339))
}

// Overlaps reports whether a and b share any instant. Touching endpoints do
// not overlap.
func Overlaps(a, b Interval) bool {
	return a.start.Before(b.end) && b.start.Before(a.end)
}

// Clip returns the part of a inside bounds. ok is false when nothing remains.
func Clip(a, bounds Interval) (Interval, bool) {
	start := a.start
	if bounds.start.After(start) {
		start = bounds.start
	}
	end := a.end
	if bounds.end.Before(end) {
		end = bounds.end
	}
	if !end.After(start) {
		return Interval{}, false
	}
	return Interval{start: start, end: end}, true
}

// Subtract removes busy from free. The result has zero, one or two intervals
// in chronological order and never contains zero-length pieces.
func Subtract(free, busy Interval) []Interval {
	if !Overlaps(free, busy) {
		return []Interval{free}
	}
	out := make([]Interval, 0, 2)
	if busy.start.After(free.start) {
		out = append(out, Interval{start: free.start, end: busy.start})
	}
	if busy.end.Before(free.end) {
		out = append(out, Interval{start: busy.end, end: free.end})
	}
	return out
}

// SubtractAll removes busy from every interval in free.
func SubtractAll(free []Interval, busy Interval) []Interval {
	out := make([]Interval, 0, len(free)+1)
	for _, f := range free {
		out = append(out, Subtract(f, busy)...)
	}
	return out
}

// OverlapCount counts how many of others overlap iv.
func OverlapCount(iv Interval, others []Interval) int {
	n := 0
	for _, o := range others {
		if Overlaps(iv, o) {
			n++
		}
	}
	return n
}
