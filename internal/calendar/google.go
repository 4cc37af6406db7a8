package calendar

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/wolfman30/tablebot/internal/observability/metrics"
	"github.com/wolfman30/tablebot/internal/timewindow"
	"github.com/wolfman30/tablebot/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var tracer = otel.Tracer("tablebot.internal.calendar")

const (
	defaultTimeout    = 10 * time.Second
	defaultRetryBase  = 200 * time.Millisecond
	maxRetryDelay     = 5 * time.Second
	listPageSize      = 250
	eventTimeZoneName = "Asia/Taipei"
)

// GoogleConfig configures the Google Calendar adapter.
type GoogleConfig struct {
	CredentialsFile string
	Location        *time.Location
	Timeout         time.Duration
	// MaxRetries applies to ListEvents only. Writes are never retried.
	MaxRetries int
	RetryBase  time.Duration
}

// GoogleSource is an EventSource backed by the Google Calendar v3 API.
type GoogleSource struct {
	svc        *gcal.Service
	loc        *time.Location
	timeout    time.Duration
	maxRetries int
	retryBase  time.Duration
	sleep      func(context.Context, time.Duration) error
	metrics    *metrics.CalendarMetrics
	logger     *logging.Logger
}

// NewGoogleSource builds the adapter. Extra client options (endpoint,
// HTTP client) are appended after the credentials option.
func NewGoogleSource(ctx context.Context, cfg GoogleConfig, m *metrics.CalendarMetrics, logger *logging.Logger, opts ...option.ClientOption) (*GoogleSource, error) {
	if logger == nil {
		logger = logging.Default()
	}
	clientOpts := make([]option.ClientOption, 0, len(opts)+1)
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := gcal.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create google service: %w", err)
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := cfg.RetryBase
	if base <= 0 {
		base = defaultRetryBase
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &GoogleSource{
		svc:        svc,
		loc:        loc,
		timeout:    timeout,
		maxRetries: retries,
		retryBase:  base,
		sleep:      sleepCtx,
		metrics:    m,
		logger:     logger,
	}, nil
}

func (g *GoogleSource) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]BusyEvent, error) {
	ctx, span := tracer.Start(ctx, "calendar.list_events")
	defer span.End()
	span.SetAttributes(
		attribute.String("calendar.id", calendarID),
		attribute.String("calendar.time_min", timeMin.Format(time.RFC3339)),
		attribute.String("calendar.time_max", timeMax.Format(time.RFC3339)),
	)

	var (
		events []BusyEvent
		err    error
	)
	for attempt := 0; ; attempt++ {
		events, err = g.listOnce(ctx, calendarID, timeMin, timeMax)
		if err == nil || attempt >= g.maxRetries || !errors.Is(err, ErrServiceUnavailable) {
			break
		}
		delay := nextDelay(g.retryBase, attempt)
		g.logger.Warn("calendar list failed, retrying", "attempt", attempt+1, "delay", delay, "error", err)
		if sleepErr := g.sleep(ctx, delay); sleepErr != nil {
			break
		}
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("calendar.events", len(events)))
	return events, nil
}

func (g *GoogleSource) listOnce(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]BusyEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	started := time.Now()
	var out []BusyEvent
	pageToken := ""
	for {
		call := g.svc.Events.List(calendarID).
			TimeMin(timeMin.Format(time.RFC3339)).
			TimeMax(timeMax.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			MaxResults(listPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			mapped := mapError("list", err)
			g.metrics.ObserveRequest("list", "error", time.Since(started))
			return nil, mapped
		}
		for _, item := range resp.Items {
			ev, convErr := g.fromGoogle(item)
			if convErr != nil {
				g.logger.Warn("skipping calendar event with unreadable time", "event_id", item.Id, "error", convErr)
				continue
			}
			out = append(out, ev)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	g.metrics.ObserveRequest("list", "ok", time.Since(started))
	return out, nil
}

func (g *GoogleSource) InsertEvent(ctx context.Context, calendarID string, payload EventPayload) (BusyEvent, error) {
	ctx, span := tracer.Start(ctx, "calendar.insert_event")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	started := time.Now()
	created, err := g.svc.Events.Insert(calendarID, g.toGoogle(payload)).Context(ctx).Do()
	if err != nil {
		g.metrics.ObserveRequest("insert", "error", time.Since(started))
		span.RecordError(err)
		return BusyEvent{}, mapError("insert", err)
	}
	g.metrics.ObserveRequest("insert", "ok", time.Since(started))
	span.SetAttributes(attribute.String("calendar.event_id", created.Id))
	return g.fromGoogle(created)
}

func (g *GoogleSource) UpdateEvent(ctx context.Context, calendarID, eventID string, payload EventPayload) (BusyEvent, error) {
	ctx, span := tracer.Start(ctx, "calendar.update_event")
	defer span.End()
	span.SetAttributes(attribute.String("calendar.event_id", eventID))
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	started := time.Now()
	updated, err := g.svc.Events.Update(calendarID, eventID, g.toGoogle(payload)).Context(ctx).Do()
	if err != nil {
		g.metrics.ObserveRequest("update", "error", time.Since(started))
		span.RecordError(err)
		return BusyEvent{}, mapError("update", err)
	}
	g.metrics.ObserveRequest("update", "ok", time.Since(started))
	return g.fromGoogle(updated)
}

func (g *GoogleSource) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	ctx, span := tracer.Start(ctx, "calendar.delete_event")
	defer span.End()
	span.SetAttributes(attribute.String("calendar.event_id", eventID))
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	started := time.Now()
	if err := g.svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		g.metrics.ObserveRequest("delete", "error", time.Since(started))
		span.RecordError(err)
		return mapError("delete", err)
	}
	g.metrics.ObserveRequest("delete", "ok", time.Since(started))
	return nil
}

func (g *GoogleSource) fromGoogle(item *gcal.Event) (BusyEvent, error) {
	ev := BusyEvent{ID: item.Id, Summary: item.Summary, Description: item.Description}
	if item.Start == nil || item.End == nil {
		return BusyEvent{}, &timewindow.TimeParseError{Raw: "missing start or end"}
	}
	if item.Start.DateTime == "" && item.Start.Date != "" {
		startDay, err := timewindow.ParseDate(item.Start.Date)
		if err != nil {
			return BusyEvent{}, err
		}
		endDay, err := timewindow.ParseDate(item.End.Date)
		if err != nil {
			return BusyEvent{}, err
		}
		ev.AllDay = true
		ev.Start = startDay.Midnight(g.loc)
		ev.End = endDay.Midnight(g.loc)
		return ev, nil
	}
	start, err := timewindow.ParseTimestamp(item.Start.DateTime, g.loc)
	if err != nil {
		return BusyEvent{}, err
	}
	end, err := timewindow.ParseTimestamp(item.End.DateTime, g.loc)
	if err != nil {
		return BusyEvent{}, err
	}
	ev.Start = start
	ev.End = end
	return ev, nil
}

func (g *GoogleSource) toGoogle(p EventPayload) *gcal.Event {
	tz := g.loc.String()
	if tz == "" || tz == "Local" {
		tz = eventTimeZoneName
	}
	ev := &gcal.Event{
		Summary:     p.Summary,
		Description: p.Description,
		Location:    p.Location,
		Start:       &gcal.EventDateTime{DateTime: p.Start.In(g.loc).Format(time.RFC3339), TimeZone: tz},
		End:         &gcal.EventDateTime{DateTime: p.End.In(g.loc).Format(time.RFC3339), TimeZone: tz},
	}
	if len(p.Reminders) > 0 {
		overrides := make([]*gcal.EventReminder, 0, len(p.Reminders))
		for _, r := range p.Reminders {
			overrides = append(overrides, &gcal.EventReminder{Method: r.Method, Minutes: int64(r.Minutes)})
		}
		ev.Reminders = &gcal.EventReminders{
			UseDefault:      false,
			Overrides:       overrides,
			ForceSendFields: []string{"UseDefault"},
		}
	}
	return ev
}

// mapError translates Google API and transport failures into package errors.
// Reads fail as ErrServiceUnavailable; writes (insert, update and delete)
// that the calendar rejected or that failed for a non-transport reason are a
// *CommitError.
func mapError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone:
			return fmt.Errorf("calendar: %s: %w", op, ErrNotFound)
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
			return fmt.Errorf("calendar: %s: status %d: %w", op, apiErr.Code, ErrServiceUnavailable)
		case op == "list":
			return fmt.Errorf("calendar: list: status %d: %w", apiErr.Code, ErrServiceUnavailable)
		default:
			return &CommitError{Op: op, Err: apiErr}
		}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.As(err, &netErr) {
		return fmt.Errorf("calendar: %s: %v: %w", op, err, ErrServiceUnavailable)
	}
	if op == "list" {
		return fmt.Errorf("calendar: %s: %v: %w", op, err, ErrServiceUnavailable)
	}
	return &CommitError{Op: op, Err: err}
}

func nextDelay(base time.Duration, attempt int) time.Duration {
	delay := base * time.Duration(1<<attempt)
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
