package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Remote flights service configuration
	Flights FlightsConfig

	// Booking lifecycle configuration
	Booking BookingConfig

	// Booking event publishing configuration
	Events EventsConfig

	// CORS configuration
	CORS CORSConfig

	// Security configuration
	Security SecurityConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// FlightsConfig holds configuration for the remote flights service
type FlightsConfig struct {
	ServiceURL string        // Base URL of the flights service
	Timeout    time.Duration // HTTP client timeout for remote calls
}

// BookingConfig holds booking lifecycle configuration
type BookingConfig struct {
	PaymentWindow     time.Duration // How long after creation a booking can be paid
	StaleWindow       time.Duration // Age after which unconfirmed bookings are swept
	SweepInterval     time.Duration // How often the expiry sweeper runs
	IdempotencyKeyTTL time.Duration // How long used payment idempotency keys are kept
}

// EventsConfig holds Kafka event publishing configuration.
// Publishing is disabled when Brokers is empty.
type EventsConfig struct {
	Brokers []string
	Topic   string
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRequestLog bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		Flights: FlightsConfig{
			ServiceURL: getEnv("FLIGHTS_SERVICE_URL", ""),
			Timeout:    time.Duration(getEnvAsInt("FLIGHTS_SERVICE_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Booking: BookingConfig{
			PaymentWindow:     time.Duration(getEnvAsInt("BOOKING_PAYMENT_WINDOW_MINUTES", 5)) * time.Minute,
			StaleWindow:       time.Duration(getEnvAsInt("BOOKING_STALE_WINDOW_MINUTES", 3)) * time.Minute,
			SweepInterval:     time.Duration(getEnvAsInt("BOOKING_SWEEP_INTERVAL_MINUTES", 30)) * time.Minute,
			IdempotencyKeyTTL: time.Duration(getEnvAsInt("IDEMPOTENCY_KEY_TTL_HOURS", 24)) * time.Hour,
		},
		Events: EventsConfig{
			Brokers: getEnvAsSlice("KAFKA_BROKERS", []string{}),
			Topic:   getEnv("KAFKA_BOOKING_EVENTS_TOPIC", "booking-events"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "x-idempotency-key"}),
		},
		Security: SecurityConfig{
			EnableRequestLog: getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Flights.ServiceURL == "" {
		return fmt.Errorf("FLIGHTS_SERVICE_URL is required")
	}

	if c.Booking.PaymentWindow <= 0 {
		return fmt.Errorf("BOOKING_PAYMENT_WINDOW_MINUTES must be positive")
	}

	if c.Booking.StaleWindow <= 0 {
		return fmt.Errorf("BOOKING_STALE_WINDOW_MINUTES must be positive")
	}

	if c.Booking.SweepInterval <= 0 {
		return fmt.Errorf("BOOKING_SWEEP_INTERVAL_MINUTES must be positive")
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
