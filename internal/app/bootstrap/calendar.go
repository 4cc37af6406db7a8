package bootstrap

import (
	"context"
	"fmt"

	"github.com/wolfman30/tablebot/internal/calendar"
	appconfig "github.com/wolfman30/tablebot/internal/config"
	"github.com/wolfman30/tablebot/internal/observability/metrics"
	"github.com/wolfman30/tablebot/pkg/logging"
	"google.golang.org/api/option"
)

const (
	CalendarBackendGoogle = "google"
	CalendarBackendMemory = "memory"
)

// BuildEventSource selects the calendar backend named by CALENDAR_BACKEND.
func BuildEventSource(ctx context.Context, cfg *appconfig.Config, m *metrics.CalendarMetrics, logger *logging.Logger, opts ...option.ClientOption) (calendar.EventSource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.CalendarBackend {
	case CalendarBackendMemory:
		logger.Warn("using in-memory calendar; reservations are lost on restart")
		return calendar.NewMemorySource(), nil
	case CalendarBackendGoogle, "":
		source, err := calendar.NewGoogleSource(ctx, calendar.GoogleConfig{
			CredentialsFile: cfg.GoogleCredentialsFile,
			Location:        cfg.Location(),
			Timeout:         cfg.CalendarTimeout,
			MaxRetries:      cfg.CalendarMaxRetries,
		}, m, logger, opts...)
		if err != nil {
			return nil, err
		}
		logger.Info("google calendar configured", "calendar_id", cfg.CalendarID)
		return source, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown calendar backend %q", cfg.CalendarBackend)
	}
}
