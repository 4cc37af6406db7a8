package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/tablebot/internal/availability"
	"github.com/wolfman30/tablebot/internal/reservation"
	"github.com/wolfman30/tablebot/internal/timewindow"
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Booking rules
	BusinessTimezone     string
	OpeningTime          string
	ClosingTime          string
	SlotDuration         time.Duration
	SlotGranularity      time.Duration
	SlotCapacity         int
	BookingHorizonMonths int
	ListingDays          int
	PendingStateTTL      time.Duration
	RestaurantLocation   string

	// Calendar
	CalendarID            string
	CalendarBackend       string
	GoogleCredentialsFile string
	CalendarTimeout       time.Duration
	CalendarMaxRetries    int

	// HTTP surface
	AdminJWTSecret     string
	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string

	// Notifications
	EmailProvider          string
	SendGridAPIKey         string
	EmailFrom              string
	EmailFromName          string
	StaffNotificationEmail string
	SESConfigurationSet    string

	// AWS
	AWSRegion                 string
	AWSAccessKeyID            string
	AWSSecretAccessKey        string
	AWSEndpointOverride       string
	ReservationEventsQueueURL string
	OutboxPollInterval        time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		BusinessTimezone:     getEnv("BUSINESS_TIMEZONE", "Asia/Taipei"),
		OpeningTime:          getEnv("OPENING_TIME", "10:00"),
		ClosingTime:          getEnv("CLOSING_TIME", "16:00"),
		SlotDuration:         getEnvAsDuration("SLOT_DURATION", 2*time.Hour),
		SlotGranularity:      getEnvAsDuration("SLOT_GRANULARITY", 30*time.Minute),
		SlotCapacity:         getEnvAsInt("SLOT_CAPACITY", 3),
		BookingHorizonMonths: getEnvAsInt("BOOKING_HORIZON_MONTHS", 1),
		ListingDays:          getEnvAsInt("LISTING_DAYS", 30),
		PendingStateTTL:      getEnvAsDuration("PENDING_STATE_TTL", 30*time.Minute),
		RestaurantLocation:   getEnv("RESTAURANT_LOCATION", ""),

		CalendarID:            getEnv("CALENDAR_ID", "primary"),
		CalendarBackend:       strings.ToLower(strings.TrimSpace(getEnv("CALENDAR_BACKEND", "google"))),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		CalendarTimeout:       getEnvAsDuration("CALENDAR_TIMEOUT", 10*time.Second),
		CalendarMaxRetries:    getEnvAsInt("CALENDAR_MAX_RETRIES", 2),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		EmailProvider:          strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:         getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:              getEnv("EMAIL_FROM", ""),
		EmailFromName:          getEnv("EMAIL_FROM_NAME", "Tablebot Reservations"),
		StaffNotificationEmail: getEnv("STAFF_NOTIFICATION_EMAIL", ""),
		SESConfigurationSet:    getEnv("SES_CONFIGURATION_SET", ""),

		AWSRegion:                 getEnv("AWS_REGION", "ap-northeast-1"),
		AWSAccessKeyID:            getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:        getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:       getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ReservationEventsQueueURL: getEnv("RESERVATION_EVENTS_QUEUE_URL", ""),
		OutboxPollInterval:        getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
	}
}

// Location returns the business timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	return timewindow.LoadLocation(c.BusinessTimezone)
}

// Policy builds the booking rules from the configuration.
func (c *Config) Policy() (reservation.Policy, error) {
	window, err := availability.NewWindow(c.OpeningTime, c.ClosingTime, c.Location())
	if err != nil {
		return reservation.Policy{}, fmt.Errorf("config: operating window: %w", err)
	}
	if c.SlotCapacity <= 0 {
		return reservation.Policy{}, fmt.Errorf("config: SLOT_CAPACITY must be positive, got %d", c.SlotCapacity)
	}
	if c.SlotDuration <= 0 || c.SlotDuration > window.Close-window.Open {
		return reservation.Policy{}, fmt.Errorf("config: SLOT_DURATION %s does not fit the operating window", c.SlotDuration)
	}
	if c.SlotGranularity <= 0 {
		return reservation.Policy{}, fmt.Errorf("config: SLOT_GRANULARITY must be positive, got %s", c.SlotGranularity)
	}
	if c.BookingHorizonMonths <= 0 {
		return reservation.Policy{}, fmt.Errorf("config: BOOKING_HORIZON_MONTHS must be positive, got %d", c.BookingHorizonMonths)
	}
	listing := c.ListingDays
	if listing <= 0 {
		listing = 30
	}
	return reservation.Policy{
		CalendarID:    c.CalendarID,
		Window:        window,
		SlotDuration:  c.SlotDuration,
		Granularity:   c.SlotGranularity,
		Capacity:      c.SlotCapacity,
		HorizonMonths: c.BookingHorizonMonths,
		ListingDays:   listing,
		Location:      c.RestaurantLocation,
	}, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
