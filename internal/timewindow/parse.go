package timewindow

import (
	"fmt"
	"strings"
	"time"
)

const (
	naiveLayout    = "2006-01-02T15:04:05"
	naiveLayoutMin = "2006-01-02T15:04"
	offsetLayout   = "2006-01-02T15:04:05-07:00"
	dateLayout     = "2006-01-02"
)

// TimeParseError reports a timestamp that could not be read. Callers that
// iterate calendar events log it and skip the event.
type TimeParseError struct {
	Raw string
	Err error
}

func (e *TimeParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("timewindow: cannot parse timestamp %q: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("timewindow: cannot parse timestamp %q", e.Raw)
}

func (e *TimeParseError) Unwrap() error { return e.Err }

// LoadLocation returns the IANA zone for name. Falls back to UTC if the name
// is empty or unknown.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseTimestamp reads a calendar timestamp and returns it in loc. Handles:
//   - RFC3339 with offset or Z: "2024-05-01T10:00:00+08:00"
//   - Naive datetime: "2024-05-01T10:00:00", treated as loc-local
func ParseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, &TimeParseError{Raw: raw}
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.In(loc), nil
	}
	if t, err := time.Parse(offsetLayout, raw); err == nil {
		return t.In(loc), nil
	}
	if t, err := time.ParseInLocation(naiveLayout, raw, loc); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(naiveLayoutMin, raw, loc)
	if err != nil {
		return time.Time{}, &TimeParseError{Raw: raw, Err: err}
	}
	return t, nil
}

// ParseDate reads an all-day "YYYY-MM-DD" value.
func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, &TimeParseError{Raw: raw, Err: err}
	}
	return DateOf(t), nil
}

// ParseUserDate accepts "YYYY-MM-DD" or "MM-DD". The short form takes the
// year from now.
func ParseUserDate(raw string, now time.Time) (Date, error) {
	raw = strings.TrimSpace(raw)
	if d, err := ParseDate(raw); err == nil {
		return d, nil
	}
	t, err := time.Parse("01-02", raw)
	if err != nil {
		return Date{}, &TimeParseError{Raw: raw, Err: err}
	}
	return Date{Year: now.Year(), Month: t.Month(), Day: t.Day()}, nil
}
