package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/tablebot/cmd/mainconfig"
	"github.com/wolfman30/tablebot/internal/api/router"
	"github.com/wolfman30/tablebot/internal/app/bootstrap"
	"github.com/wolfman30/tablebot/internal/bookings"
	appconfig "github.com/wolfman30/tablebot/internal/config"
	"github.com/wolfman30/tablebot/internal/conversation"
	"github.com/wolfman30/tablebot/internal/events"
	"github.com/wolfman30/tablebot/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/tablebot/internal/http/middleware"
	"github.com/wolfman30/tablebot/internal/observability/metrics"
	"github.com/wolfman30/tablebot/internal/reservation"
	"github.com/wolfman30/tablebot/pkg/logging"
)

func main() {
	// Local development reads .env; deployments use the real environment.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting tablebot API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"calendar_backend", cfg.CalendarBackend,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()
	app.StartBackground(ctx)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// application holds everything main needs to serve and shut down.
type application struct {
	handler   http.Handler
	deliverer *events.Deliverer
	limiter   *httpmiddleware.RateLimiter
	closers   []func()
	logger    *logging.Logger
}

func newApplication(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*application, error) {
	app := &application{logger: logger}

	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	metricsHandler, reservationMetrics, calendarMetrics := setupMetrics()

	source, err := bootstrap.BuildEventSource(ctx, cfg, calendarMetrics, logger)
	if err != nil {
		return nil, err
	}

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		app.closers = append(app.closers, pool.Close)
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
	}

	sqsClient, sesClient, err := setupAWS(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	managerOpts := []reservation.Option{reservation.WithMetrics(reservationMetrics)}
	var deliveries *events.DeliveryLog
	var outbox *events.OutboxStore
	if pool != nil {
		outbox = events.NewOutboxStore(pool)
		deliveries = events.NewDeliveryLog(pool)
		managerOpts = append(managerOpts,
			reservation.WithLedger(bookings.NewLedger(pool, logger)),
			reservation.WithPublisher(events.NewReservationPublisher(outbox)),
		)
	} else {
		logger.Warn("DATABASE_URL not set; booking ledger and outbox disabled")
	}
	manager := reservation.NewManager(source, policy, logger, managerOpts...)

	if outbox != nil {
		mailer := bootstrap.BuildMailer(cfg, sesClient, logger)
		if handler := bootstrap.BuildOutboxHandler(cfg, deliveries, mailer, sqsClient, logger); handler != nil {
			app.deliverer = events.NewDeliverer(outbox, handler, logger).WithInterval(cfg.OutboxPollInterval)
		}
	}

	stateStore := bootstrap.BuildStateStore(redisClient, cfg, logger)
	conversationHandler := conversation.NewHandler(conversation.NewService(manager, stateStore, logger), logger)

	if cfg.RateLimitRPS > 0 {
		app.limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin routes disabled")
	}

	app.handler = router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conversationHandler,
		AvailabilityHandler: handlers.NewAvailabilityHandler(manager, logger),
		AdminReservations:   handlers.NewAdminReservationsHandler(manager, logger),
		AdminAuthSecret:     cfg.AdminJWTSecret,
		MetricsHandler:      metricsHandler,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimiter:         app.limiter,
		HealthChecks:        healthChecks(pool, redisClient),
	})
	return app, nil
}

// StartBackground launches the outbox deliverer and the rate limiter sweep.
// Both stop when ctx is cancelled.
func (a *application) StartBackground(ctx context.Context) {
	if a.deliverer != nil {
		go a.deliverer.Start(ctx)
	}
	if a.limiter != nil {
		go a.limiter.Run(ctx)
	}
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func setupMetrics() (http.Handler, *metrics.ReservationMetrics, *metrics.CalendarMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return handler, metrics.NewReservationMetrics(reg), metrics.NewCalendarMetrics(reg)
}

func setupAWS(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*sqs.Client, *sesv2.Client, error) {
	if !mainconfig.NeedsAWS(cfg) {
		return nil, nil, nil
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("load aws config: %w", err)
	}
	var sqsClient *sqs.Client
	if cfg.ReservationEventsQueueURL != "" {
		sqsClient = sqs.NewFromConfig(awsCfg)
	}
	var sesClient *sesv2.Client
	if cfg.EmailProvider == "ses" {
		sesClient = sesv2.NewFromConfig(awsCfg)
	}
	logger.Info("aws clients configured", "region", cfg.AWSRegion, "sqs", sqsClient != nil, "ses", sesClient != nil)
	return sqsClient, sesClient, nil
}

func healthChecks(pool *pgxpool.Pool, redisClient *redis.Client) map[string]router.HealthCheck {
	checks := make(map[string]router.HealthCheck)
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
