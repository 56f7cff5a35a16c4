package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DATABASE_URL_TEST", "postgres://localhost/herdshare_test")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "postgres://localhost/herdshare_test", cfg.DatabaseURL)
	assert.Equal(t, 15*time.Minute, cfg.ReservationTTL)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.True(t, cfg.SweeperEnabled)
	assert.Equal(t, "usd", cfg.PaymentCurrency)
	assert.Empty(t, cfg.HealthProbes)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL_PROD", "postgres://prod/herdshare")
	t.Setenv("RESERVATION_TTL", "5m")
	t.Setenv("SWEEPER_ENABLED", "false")
	t.Setenv("ORDER_RATE_PER_SECOND", "0.5")
	t.Setenv("PAYMENT_CURRENCY", "KES")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://prod/herdshare", cfg.DatabaseURL)
	assert.Equal(t, 5*time.Minute, cfg.ReservationTTL)
	assert.False(t, cfg.SweeperEnabled)
	assert.Equal(t, 0.5, cfg.OrderRatePerSecond)
	assert.Equal(t, "kes", cfg.PaymentCurrency)
	assert.Contains(t, cfg.HealthProbes, "stripe")
}
