package reservation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wolfman30/tablebot/internal/calendar"
)

// CodeToken marks the reservation code inside event text.
const CodeToken = "ReservationCode:"

const (
	nameLabel  = "Name:"
	phoneLabel = "Phone:"
	partyLabel = "PartySize:"
)

// EmbedCode renders the summary and description of a reservation event.
func EmbedCode(r Reservation) (summary, description string) {
	summary = fmt.Sprintf("%s %s - Reservation: %s (%d guests)", CodeToken, r.Code, r.Name, r.PartySize)
	description = strings.Join([]string{
		CodeToken + " " + r.Code,
		nameLabel + " " + r.Name,
		phoneLabel + " " + r.Phone,
		partyLabel + " " + strconv.Itoa(r.PartySize),
	}, "\n")
	return summary, description
}

// ExtractCode finds the reservation code in summary, then in description.
// The result is upper-cased; ok is false when neither carries one.
func ExtractCode(summary, description string) (string, bool) {
	if code, ok := codeAfterToken(summary); ok {
		return code, true
	}
	for _, line := range strings.Split(description, "\n") {
		if code, ok := codeAfterToken(line); ok {
			return code, true
		}
	}
	return "", false
}

func codeAfterToken(text string) (string, bool) {
	idx := strings.Index(text, CodeToken)
	if idx < 0 {
		return "", false
	}
	fields := strings.Fields(text[idx+len(CodeToken):])
	if len(fields) == 0 {
		return "", false
	}
	return strings.ToUpper(fields[0]), true
}

// ParseReservation rebuilds a confirmed reservation from a calendar event.
func ParseReservation(ev calendar.BusyEvent) (Reservation, bool) {
	code, ok := ExtractCode(ev.Summary, ev.Description)
	if !ok {
		return Reservation{}, false
	}
	r := Reservation{
		Code:     code,
		Start:    ev.Start,
		Duration: ev.End.Sub(ev.Start),
		Status:   StatusConfirmed,
		EventID:  ev.ID,
	}
	for _, line := range strings.Split(ev.Description, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, nameLabel):
			r.Name = strings.TrimSpace(strings.TrimPrefix(line, nameLabel))
		case strings.HasPrefix(line, phoneLabel):
			r.Phone = strings.TrimSpace(strings.TrimPrefix(line, phoneLabel))
		case strings.HasPrefix(line, partyLabel):
			if n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, partyLabel))); err == nil {
				r.PartySize = n
			}
		}
	}
	return r, true
}

// FormatConfirmation is the text sent once a reservation is committed.
func FormatConfirmation(r Reservation) string {
	return fmt.Sprintf(
		"Your reservation is confirmed.\n\n"+
			"Code: %s\n"+
			"Name: %s\n"+
			"Guests: %d\n"+
			"Time: %s - %s\n\n"+
			"Keep the code to change or cancel the booking.",
		r.Code, r.Name, r.PartySize, r.Start.Format("2006-01-02 15:04"), r.End().Format("15:04"))
}
