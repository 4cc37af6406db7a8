package availability

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/tablebot/internal/timewindow"
)

// FormatListing renders the availability text shown to guests.
func FormatListing(slots []BookableSlot, window OperatingWindow, slotDuration time.Duration) string {
	days := GroupByDay(slots)
	if len(days) == 0 {
		return fmt.Sprintf("Sorry, there are no %s slots available between %s and %s in this period.",
			formatDuration(slotDuration), timewindow.FormatClock(window.Open), timewindow.FormatClock(window.Close))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here are the %s slots available between %s and %s:\n",
		formatDuration(slotDuration), timewindow.FormatClock(window.Open), timewindow.FormatClock(window.Close))
	for _, d := range days {
		fmt.Fprintf(&b, "\nDate: %s\n", d.Slots[0].Start.Format("2006-01-02 (Mon)"))
		for _, s := range d.Slots {
			fmt.Fprintf(&b, "  %s - %s\n", s.Start.Format("15:04"), s.End.Format("15:04"))
		}
	}
	return b.String()
}

// FormatSuggestions renders a short list of alternative slots.
func FormatSuggestions(slots []BookableSlot) string {
	if len(slots) == 0 {
		return ""
	}
	parts := make([]string, 0, len(slots))
	for _, s := range slots {
		parts = append(parts, s.Start.Format("2006-01-02 15:04"))
	}
	return strings.Join(parts, ", ")
}

func formatDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1-hour"
		}
		return fmt.Sprintf("%d-hour", h)
	}
	return fmt.Sprintf("%d-minute", int(d/time.Minute))
}
