package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/tablebot/internal/calendar"
	"github.com/wolfman30/tablebot/internal/reservation"
	"github.com/wolfman30/tablebot/internal/timewindow"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForError maps reservation and calendar failures to HTTP statuses.
func statusForError(err error) int {
	var full *reservation.SlotUnavailableError
	var parseErr *timewindow.TimeParseError
	var commitErr *calendar.CommitError
	switch {
	case reservation.IsValidation(err), errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.Is(err, reservation.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &full), errors.Is(err, reservation.ErrCodeInUse):
		return http.StatusConflict
	case errors.Is(err, calendar.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &commitErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
