package router

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/tablebot/internal/conversation"
	"github.com/wolfman30/tablebot/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/tablebot/internal/http/middleware"
	"github.com/wolfman30/tablebot/pkg/logging"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	AvailabilityHandler *handlers.AvailabilityHandler
	AdminReservations   *handlers.AdminReservationsHandler
	AdminAuthSecret     string
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
	RateLimiter         *httpmiddleware.RateLimiter
	HealthChecks        map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	limited := func(h http.Handler) http.Handler { return h }
	if cfg.RateLimiter != nil {
		limited = cfg.RateLimiter.RateLimit
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.AvailabilityHandler != nil {
			public.With(limited).Get("/availability", cfg.AvailabilityHandler.List)
		}
		if cfg.ConversationHandler != nil {
			public.With(limited).Post("/conversations/{conversationID}/requests", cfg.ConversationHandler.Request)
		}
	})

	if cfg.AdminReservations != nil && cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/free-slots", cfg.AdminReservations.FreeSlots)
			admin.Route("/reservations", func(res chi.Router) {
				res.Get("/", cfg.AdminReservations.FindByPhone)
				res.Get("/{code}", cfg.AdminReservations.Get)
				res.Delete("/{code}", cfg.AdminReservations.Cancel)
				res.Patch("/{code}", cfg.AdminReservations.Reschedule)
			})
		})
	}

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
				continue
			}
			body[name] = "ok"
		}
		writeJSON(w, status, body)
	}
}
