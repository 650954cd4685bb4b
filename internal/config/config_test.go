package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("ENVIRONMENT", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, "2", cfg.DefaultCommissionRate.String())
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.OverdueSweepInterval)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoad_PostgresRequiresURL(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "mongo")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_CommissionRateRange(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("DEFAULT_COMMISSION_RATE", "150")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Origins(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}
