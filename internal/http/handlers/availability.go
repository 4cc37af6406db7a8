package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wolfman30/tablebot/internal/availability"
	"github.com/wolfman30/tablebot/internal/reservation"
	"github.com/wolfman30/tablebot/pkg/logging"
)

// AvailabilitySource lists bookable slots for the listing period.
type AvailabilitySource interface {
	Policy() reservation.Policy
	Availability(ctx context.Context) ([]availability.BookableSlot, error)
}

// AvailabilityHandler serves the public slot listing.
type AvailabilityHandler struct {
	source AvailabilitySource
	logger *logging.Logger
}

func NewAvailabilityHandler(source AvailabilitySource, logger *logging.Logger) *AvailabilityHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AvailabilityHandler{source: source, logger: logger}
}

// SlotResponse is one bookable slot.
type SlotResponse struct {
	Date      string    `json:"date"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Remaining int       `json:"remaining"`
}

// AvailabilityResponse carries the slots and the guest-facing text.
type AvailabilityResponse struct {
	Slots []SlotResponse `json:"slots"`
	Text  string         `json:"text"`
}

// List returns bookable slots.
// GET /availability
func (h *AvailabilityHandler) List(w http.ResponseWriter, r *http.Request) {
	slots, err := h.source.Availability(r.Context())
	if err != nil {
		h.logger.Error("availability lookup failed", "error", err)
		jsonError(w, "availability unavailable", statusForError(err))
		return
	}
	policy := h.source.Policy()
	resp := AvailabilityResponse{
		Slots: make([]SlotResponse, 0, len(slots)),
		Text:  availability.FormatListing(slots, policy.Window, policy.SlotDuration),
	}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, SlotResponse{
			Date:      s.Date.String(),
			Start:     s.Start,
			End:       s.End,
			Remaining: s.Remaining(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
