// Package conversation turns structured chat requests into reservation
// operations and keeps the per-conversation dialog state between turns.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/tablebot/internal/availability"
	"github.com/wolfman30/tablebot/internal/calendar"
	"github.com/wolfman30/tablebot/internal/reservation"
	"github.com/wolfman30/tablebot/internal/timewindow"
	"github.com/wolfman30/tablebot/pkg/logging"
	"go.opentelemetry.io/otel/attribute"
)

const alternativeCount = 3

// Reservations is the part of reservation.Manager the dialog drives.
type Reservations interface {
	Policy() reservation.Policy
	Now() time.Time
	Propose(ctx context.Context, p reservation.Proposal) (*reservation.Reservation, error)
	Commit(ctx context.Context, r *reservation.Reservation) (*reservation.Reservation, error)
	Cancel(ctx context.Context, code string) (*reservation.Reservation, error)
	FindByPhone(ctx context.Context, phone string) ([]reservation.Reservation, error)
	AvailabilityText(ctx context.Context) (string, error)
	Alternatives(ctx context.Context, target time.Time, n int) ([]availability.BookableSlot, error)
}

// Service runs the booking dialog.
type Service struct {
	reservations Reservations
	state        StateStore
	logger       *logging.Logger
}

func NewService(reservations Reservations, state StateStore, logger *logging.Logger) *Service {
	if reservations == nil {
		panic("conversation: reservations required")
	}
	if state == nil {
		panic("conversation: state store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{reservations: reservations, state: state, logger: logger}
}

// Handle answers one request. A cancellation dialog in progress takes the
// request as its next answer unless the guest is responding to a proposal.
func (s *Service) Handle(ctx context.Context, conversationID string, req InboundRequest) Reply {
	ctx, span := tracer.Start(ctx, "conversation.handle")
	defer span.End()

	intent := ParseIntent(req.Intent)
	span.SetAttributes(attribute.String("conversation.intent", string(intent)))
	log := s.logger.With("conversation_id", conversationID, "intent", string(intent))

	if intent != IntentConfirmBooking && intent != IntentDeclineBooking {
		deletion, err := s.state.LoadDeletion(ctx, conversationID)
		if err != nil {
			span.RecordError(err)
			log.Error("failed to load pending deletion", "error", err)
			return errorReply()
		}
		if deletion != nil {
			return s.continueDeletion(ctx, log, conversationID, deletion, req)
		}
	}

	switch intent {
	case IntentCheckAvailability:
		return s.availability(ctx, log)
	case IntentCreateBooking:
		return s.propose(ctx, log, conversationID, req)
	case IntentConfirmBooking:
		return s.confirm(ctx, log, conversationID, req)
	case IntentDeclineBooking:
		return s.decline(ctx, log, conversationID)
	case IntentCancelBooking:
		return s.startDeletion(ctx, log, conversationID, req)
	default:
		return Reply{
			Kind: ReplyOther,
			Text: "I can show free tables, take a new booking or cancel an existing one. What would you like to do?",
		}
	}
}

func (s *Service) availability(ctx context.Context, log *logging.Logger) Reply {
	text, err := s.reservations.AvailabilityText(ctx)
	if err != nil {
		log.Error("availability lookup failed", "error", err)
		return s.failureReply(err)
	}
	return Reply{Kind: ReplyAvailability, Text: text}
}

func (s *Service) propose(ctx context.Context, log *logging.Logger, conversationID string, req InboundRequest) Reply {
	name := present(req.Name)
	phone := present(req.Phone)
	rawParty := present(req.PartySize)
	rawDate := present(req.Date)
	rawTime := present(req.Time)

	var missing []string
	var labels []string
	for _, f := range []struct{ key, label, value string }{
		{"name", "your name", name},
		{"phone", "a phone number", phone},
		{"partySize", "the number of guests", rawParty},
		{"date", "the date", rawDate},
		{"time", "the time", rawTime},
	} {
		if f.value == "" {
			missing = append(missing, f.key)
			labels = append(labels, f.label)
		}
	}
	if len(missing) > 0 {
		return Reply{
			Kind:    ReplyMissingInfo,
			Text:    "To book a table I still need " + strings.Join(labels, ", ") + ".",
			Missing: missing,
		}
	}

	partySize, err := strconv.Atoi(rawParty)
	if err != nil || partySize <= 0 {
		return Reply{Kind: ReplyInvalid, Text: fmt.Sprintf("%q is not a number of guests I can book for.", rawParty)}
	}
	start, err := s.startTime(rawDate, rawTime)
	if err != nil {
		return Reply{Kind: ReplyInvalid, Text: "Please give the date as YYYY-MM-DD or MM-DD and the time as HH:MM."}
	}

	proposed, err := s.reservations.Propose(ctx, reservation.Proposal{
		Name:      name,
		Phone:     phone,
		PartySize: partySize,
		Start:     start,
	})
	if err != nil {
		log.Info("booking proposal rejected", "start", start.Format(time.RFC3339), "error", err)
		return s.rejection(ctx, err, start)
	}

	if err := s.state.SaveBooking(ctx, conversationID, &PendingBooking{Reservation: *proposed, ProposedAt: s.reservations.Now()}); err != nil {
		log.Error("failed to save pending booking", "error", err)
		return errorReply()
	}
	log.Info("booking proposed", "code", proposed.Code, "start", proposed.Start.Format(time.RFC3339))
	return Reply{Kind: ReplyProposal, Text: formatProposal(*proposed), Reservation: proposed}
}

func (s *Service) startTime(rawDate, rawTime string) (time.Time, error) {
	now := s.reservations.Now()
	day, err := timewindow.ParseUserDate(rawDate, now)
	if err != nil {
		return time.Time{}, err
	}
	clock, err := timewindow.Clock(rawTime)
	if err != nil {
		return time.Time{}, err
	}
	return day.At(clock, now.Location()), nil
}

func (s *Service) confirm(ctx context.Context, log *logging.Logger, conversationID string, req InboundRequest) Reply {
	pending, err := s.state.LoadBooking(ctx, conversationID)
	if err != nil {
		log.Error("failed to load pending booking", "error", err)
		return errorReply()
	}
	code := strings.ToUpper(present(req.ReservationCode))
	if pending == nil || code == "" || pending.Reservation.Code != code {
		return expiredReply()
	}

	// Claim the proposal before committing; a duplicate confirmation that
	// arrives meanwhile finds nothing to take.
	claimed, err := s.state.TakeBooking(ctx, conversationID)
	if err != nil {
		log.Error("failed to claim pending booking", "error", err)
		return errorReply()
	}
	if claimed == nil || claimed.Reservation.Code != code {
		if claimed != nil {
			s.restoreBooking(ctx, log, conversationID, claimed)
		}
		log.Info("confirmation already being handled", "code", code)
		return expiredReply()
	}

	committed, err := s.reservations.Commit(ctx, &claimed.Reservation)
	if err != nil {
		log.Warn("booking commit failed", "code", code, "error", err)
		if errors.Is(err, calendar.ErrServiceUnavailable) || isCommitError(err) {
			s.restoreBooking(ctx, log, conversationID, claimed)
			return s.failureReply(err)
		}
		return s.rejection(ctx, err, claimed.Reservation.Start)
	}
	return Reply{Kind: ReplyConfirmed, Text: reservation.FormatConfirmation(*committed), Reservation: committed}
}

func (s *Service) decline(ctx context.Context, log *logging.Logger, conversationID string) Reply {
	pending, err := s.state.LoadBooking(ctx, conversationID)
	if err != nil {
		log.Error("failed to load pending booking", "error", err)
		return errorReply()
	}
	if pending == nil {
		return Reply{Kind: ReplyExpired, Text: "There is no reservation waiting for confirmation."}
	}
	s.clearBooking(ctx, log, conversationID)
	return Reply{Kind: ReplyDeclined, Text: "The reservation request has been dropped. Thank you."}
}

func (s *Service) startDeletion(ctx context.Context, log *logging.Logger, conversationID string, req InboundRequest) Reply {
	deletion := &PendingDeletion{Stage: StageWaitingForPhone}
	if phone := present(req.Phone); phone != "" {
		return s.listForPhone(ctx, log, conversationID, deletion, phone)
	}
	if err := s.state.SaveDeletion(ctx, conversationID, deletion); err != nil {
		log.Error("failed to save pending deletion", "error", err)
		return errorReply()
	}
	return Reply{Kind: ReplyPrompt, Text: "Please send the phone number you booked with so I can look up your reservations."}
}

func (s *Service) continueDeletion(ctx context.Context, log *logging.Logger, conversationID string, deletion *PendingDeletion, req InboundRequest) Reply {
	answer := present(req.Text)
	if strings.EqualFold(answer, "cancel") {
		s.clearDeletion(ctx, log, conversationID)
		return Reply{Kind: ReplyAborted, Text: "OK, nothing was cancelled."}
	}

	switch deletion.Stage {
	case StageWaitingForCode:
		code := present(req.ReservationCode)
		if code == "" {
			code = answer
		}
		return s.deleteByCode(ctx, log, conversationID, deletion, strings.ToUpper(code))
	default:
		phone := present(req.Phone)
		if phone == "" {
			phone = answer
		}
		if phone == "" {
			return Reply{
				Kind:    ReplyMissingInfo,
				Text:    "Please send the phone number you booked with.",
				Missing: []string{"phone"},
			}
		}
		return s.listForPhone(ctx, log, conversationID, deletion, phone)
	}
}

func (s *Service) listForPhone(ctx context.Context, log *logging.Logger, conversationID string, deletion *PendingDeletion, phone string) Reply {
	found, err := s.reservations.FindByPhone(ctx, phone)
	if err != nil {
		log.Error("lookup by phone failed", "error", err)
		s.clearDeletion(ctx, log, conversationID)
		return s.failureReply(err)
	}
	if len(found) == 0 {
		s.clearDeletion(ctx, log, conversationID)
		return Reply{Kind: ReplyNotFound, Text: fmt.Sprintf("I could not find any reservations for %s.", phone)}
	}

	deletion.Stage = StageWaitingForCode
	deletion.Phone = phone
	deletion.Codes = deletion.Codes[:0]
	var b strings.Builder
	fmt.Fprintf(&b, "These are the reservations for %s:\n", phone)
	for _, r := range found {
		deletion.Codes = append(deletion.Codes, r.Code)
		fmt.Fprintf(&b, "\nCode: %s\nName: %s\nDate: %s\nTime: %s\nGuests: %d\n",
			r.Code, r.Name, r.Start.Format("2006-01-02"), r.Start.Format("15:04"), r.PartySize)
	}
	b.WriteString("\nSend the code of the reservation to cancel, or \"cancel\" to stop.")

	if err := s.state.SaveDeletion(ctx, conversationID, deletion); err != nil {
		log.Error("failed to save pending deletion", "error", err)
		return errorReply()
	}
	return Reply{Kind: ReplyBookingList, Text: b.String()}
}

func (s *Service) deleteByCode(ctx context.Context, log *logging.Logger, conversationID string, deletion *PendingDeletion, code string) Reply {
	if code == "" {
		return Reply{
			Kind:    ReplyMissingInfo,
			Text:    "Please send the reservation code, or \"cancel\" to stop.",
			Missing: []string{"reservationCode"},
		}
	}
	defer s.clearDeletion(ctx, log, conversationID)

	notFound := Reply{Kind: ReplyNotFound, Text: fmt.Sprintf("There is no reservation with code %s.", code)}
	if !deletion.offered(code) {
		return notFound
	}
	cancelled, err := s.reservations.Cancel(ctx, code)
	if err != nil {
		if errors.Is(err, reservation.ErrNotFound) {
			return notFound
		}
		log.Error("cancel failed", "code", code, "error", err)
		return s.failureReply(err)
	}
	return Reply{
		Kind:        ReplyCancelled,
		Text:        fmt.Sprintf("Reservation %s (%s) has been cancelled.", cancelled.Code, cancelled.Start.Format("2006-01-02 15:04")),
		Reservation: cancelled,
	}
}

// rejection explains why a proposal or commit was refused.
func (s *Service) rejection(ctx context.Context, err error, start time.Time) Reply {
	policy := s.reservations.Policy()
	var full *reservation.SlotUnavailableError
	switch {
	case errors.Is(err, reservation.ErrInvalidTime):
		return Reply{Kind: ReplyInvalid, Text: fmt.Sprintf(
			"We seat guests between %s and %s, and each seating lasts %s. Please pick a start time that ends by closing.",
			timewindow.FormatClock(policy.Window.Open), timewindow.FormatClock(policy.Window.Close), hours(policy.SlotDuration))}
	case errors.Is(err, reservation.ErrInvalidHorizon):
		return Reply{Kind: ReplyInvalid, Text: fmt.Sprintf(
			"Reservations can be made from now up to %d month(s) ahead.", policy.HorizonMonths)}
	case errors.Is(err, reservation.ErrInvalidPartySize):
		return Reply{Kind: ReplyInvalid, Text: "The number of guests must be at least 1."}
	case errors.Is(err, reservation.ErrCodeInUse):
		return expiredReply()
	case errors.As(err, &full):
		reply := Reply{Kind: ReplySlotUnavailable, Text: "Sorry, that time is fully booked."}
		alts, altErr := s.reservations.Alternatives(ctx, start, alternativeCount)
		if altErr != nil {
			s.logger.Warn("alternative lookup failed", "error", altErr)
			return reply
		}
		for _, a := range alts {
			reply.Suggestions = append(reply.Suggestions, a.Start.Format("2006-01-02 15:04"))
		}
		if len(alts) > 0 {
			reply.Text += " Nearby free times: " + availability.FormatSuggestions(alts) + "."
		}
		return reply
	default:
		return s.failureReply(err)
	}
}

func (s *Service) failureReply(err error) Reply {
	if errors.Is(err, calendar.ErrServiceUnavailable) {
		return Reply{Kind: ReplyUnavailable, Text: "The booking calendar is not reachable right now. Please try again in a few minutes."}
	}
	if isCommitError(err) {
		return Reply{Kind: ReplyUnavailable, Text: "The reservation could not be saved. Please try again in a few minutes."}
	}
	return errorReply()
}

func (s *Service) clearBooking(ctx context.Context, log *logging.Logger, conversationID string) {
	if err := s.state.SaveBooking(ctx, conversationID, nil); err != nil {
		log.Warn("failed to clear pending booking", "error", err)
	}
}

func (s *Service) restoreBooking(ctx context.Context, log *logging.Logger, conversationID string, booking *PendingBooking) {
	if err := s.state.SaveBooking(ctx, conversationID, booking); err != nil {
		log.Warn("failed to restore pending booking", "error", err)
	}
}

func (s *Service) clearDeletion(ctx context.Context, log *logging.Logger, conversationID string) {
	if err := s.state.SaveDeletion(ctx, conversationID, nil); err != nil {
		log.Warn("failed to clear pending deletion", "error", err)
	}
}

func isCommitError(err error) bool {
	var commitErr *calendar.CommitError
	return errors.As(err, &commitErr)
}

func expiredReply() Reply {
	return Reply{Kind: ReplyExpired, Text: "That reservation request has expired or is invalid. Please start a new booking."}
}

func errorReply() Reply {
	return Reply{Kind: ReplyError, Text: "Something went wrong on our side. Please try again."}
}

func formatProposal(r reservation.Reservation) string {
	return fmt.Sprintf(
		"Please confirm this reservation:\n"+
			"Name: %s\n"+
			"Phone: %s\n"+
			"Guests: %d\n"+
			"Date: %s\n"+
			"Time: %s\n"+
			"Reservation code: %s\n"+
			"Each seating lasts %s.",
		r.Name, r.Phone, r.PartySize, r.Start.Format("2006-01-02"), r.Start.Format("15:04"), r.Code, hours(r.Duration))
}

func hours(d time.Duration) string {
	if d == time.Hour {
		return "1 hour"
	}
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	}
	return fmt.Sprintf("%d minutes", int(d/time.Minute))
}
