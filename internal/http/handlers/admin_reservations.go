package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/tablebot/internal/availability"
	"github.com/wolfman30/tablebot/internal/reservation"
	"github.com/wolfman30/tablebot/internal/timewindow"
	"github.com/wolfman30/tablebot/pkg/logging"
)

const defaultFreeSlotDays = 7

// ReservationAdmin is what staff endpoints need from the reservation manager.
type ReservationAdmin interface {
	Now() time.Time
	FreeSlots(ctx context.Context, from, to timewindow.Date) (map[timewindow.Date][]availability.FreeSlot, error)
	FindByPhone(ctx context.Context, phone string) ([]reservation.Reservation, error)
	FindByCode(ctx context.Context, code string) (*reservation.Reservation, error)
	Cancel(ctx context.Context, code string) (*reservation.Reservation, error)
	Reschedule(ctx context.Context, code string, newStart time.Time) (*reservation.Reservation, error)
}

// AdminReservationsHandler serves staff endpoints under /admin.
type AdminReservationsHandler struct {
	reservations ReservationAdmin
	logger       *logging.Logger
}

func NewAdminReservationsHandler(reservations ReservationAdmin, logger *logging.Logger) *AdminReservationsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminReservationsHandler{reservations: reservations, logger: logger}
}

// FreeInterval is one free stretch of a day.
type FreeInterval struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Overlap int       `json:"overlap"`
}

// FreeDay groups the free intervals of one date.
type FreeDay struct {
	Date      string         `json:"date"`
	Intervals []FreeInterval `json:"intervals"`
}

// RescheduleRequest moves a reservation.
type RescheduleRequest struct {
	Start string `json:"start"`
}

// FreeSlots returns free intervals per day.
// GET /admin/free-slots?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *AdminReservationsHandler) FreeSlots(w http.ResponseWriter, r *http.Request) {
	today := timewindow.DateOf(h.reservations.Now())
	from, to := today, today.AddDays(defaultFreeSlotDays-1)
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		d, err := timewindow.ParseDate(raw)
		if err != nil {
			jsonError(w, "invalid from date", http.StatusBadRequest)
			return
		}
		from = d
		to = d.AddDays(defaultFreeSlotDays - 1)
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		d, err := timewindow.ParseDate(raw)
		if err != nil {
			jsonError(w, "invalid to date", http.StatusBadRequest)
			return
		}
		to = d
	}
	if to.Before(from) {
		jsonError(w, "to is before from", http.StatusBadRequest)
		return
	}

	free, err := h.reservations.FreeSlots(r.Context(), from, to)
	if err != nil {
		h.logger.Error("free slot lookup failed", "error", err, "from", from.String(), "to", to.String())
		jsonError(w, "free slot lookup failed", statusForError(err))
		return
	}

	days := make([]FreeDay, 0, len(free))
	for date, slots := range free {
		day := FreeDay{Date: date.String(), Intervals: make([]FreeInterval, 0, len(slots))}
		for _, s := range slots {
			day.Intervals = append(day.Intervals, FreeInterval{Start: s.Interval.Start(), End: s.Interval.End(), Overlap: s.Overlap})
		}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

// FindByPhone lists reservations whose event text contains the number.
// GET /admin/reservations?phone=
func (h *AdminReservationsHandler) FindByPhone(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if phone == "" {
		jsonError(w, "phone is required", http.StatusBadRequest)
		return
	}
	found, err := h.reservations.FindByPhone(r.Context(), phone)
	if err != nil {
		h.logger.Error("reservation lookup failed", "error", err)
		jsonError(w, "lookup failed", statusForError(err))
		return
	}
	if found == nil {
		found = []reservation.Reservation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": found})
}

// Get returns one reservation.
// GET /admin/reservations/{code}
func (h *AdminReservationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	found, err := h.reservations.FindByCode(r.Context(), code)
	if err != nil {
		jsonError(w, "reservation not found", statusForError(err))
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// Cancel deletes a reservation.
// DELETE /admin/reservations/{code}
func (h *AdminReservationsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	cancelled, err := h.reservations.Cancel(r.Context(), code)
	if err != nil {
		h.logger.Warn("admin cancel failed", "code", code, "error", err)
		jsonError(w, "cancel failed", statusForError(err))
		return
	}
	h.logger.Info("reservation cancelled by staff", "code", cancelled.Code)
	writeJSON(w, http.StatusOK, cancelled)
}

// Reschedule moves a reservation to a new start.
// PATCH /admin/reservations/{code}
func (h *AdminReservationsHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	start, err := timewindow.ParseTimestamp(req.Start, h.reservations.Now().Location())
	if err != nil {
		jsonError(w, "invalid start", http.StatusBadRequest)
		return
	}
	moved, err := h.reservations.Reschedule(r.Context(), code, start)
	if err != nil {
		h.logger.Warn("admin reschedule failed", "code", code, "error", err)
		jsonError(w, err.Error(), statusForError(err))
		return
	}
	h.logger.Info("reservation rescheduled by staff", "code", moved.Code, "start", moved.Start.Format(time.RFC3339))
	writeJSON(w, http.StatusOK, moved)
}
