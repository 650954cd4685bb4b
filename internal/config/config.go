package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/shopspring/decimal"
)

// Database drivers understood by database.Connect.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// Database
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"memory"`
	DatabaseURL    string `env:"DATABASE_URL"`

	// JWT
	JWTSecret string `env:"JWT_SECRET"`

	// Receipt uploads
	StoragePath string `env:"STORAGE_PATH" envDefault:"./storage"`

	// Background Workers
	WorkerCount int `env:"WORKER_COUNT" envDefault:"5"`

	// CORS
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// Brokerage
	Currency              string          `env:"CURRENCY" envDefault:"USD"`
	DefaultCommissionRate decimal.Decimal `env:"DEFAULT_COMMISSION_RATE" envDefault:"2"`
	AgencyID              string          `env:"AGENCY_ID" envDefault:"agency"`
	OverdueSweepInterval  time.Duration   `env:"OVERDUE_SWEEP_INTERVAL" envDefault:"24h"`
	OverdueSweepOnStart   bool            `env:"OVERDUE_SWEEP_ON_START" envDefault:"false"`

	// Email (Resend)
	EnableEmailNotifications bool   `env:"ENABLE_EMAIL_NOTIFICATIONS" envDefault:"false"`
	ResendAPIKey             string `env:"RESEND_API_KEY"`
	FromEmail                string `env:"FROM_EMAIL" envDefault:"noreply@fintera.app"`
	BackofficeEmail          string `env:"BACKOFFICE_EMAIL"`
	AppURL                   string `env:"APP_URL" envDefault:"http://localhost:3000"`

	// Sentry
	SentryDSN string `env:"SENTRY_DSN"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	switch cfg.DatabaseDriver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for driver %q", cfg.DatabaseDriver)
		}
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	if cfg.JWTSecret == "" && cfg.Environment == "production" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}

	// Set default JWT secret for development
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-in-production"
	}

	if cfg.DefaultCommissionRate.IsNegative() || cfg.DefaultCommissionRate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("DEFAULT_COMMISSION_RATE must be between 0 and 100")
	}

	return cfg, nil
}
