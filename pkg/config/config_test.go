package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 730, cfg.Availability.MaxScanDays)
	assert.Equal(t, 7, cfg.Availability.DefaultNumDays)
	assert.Equal(t, 30, cfg.Availability.DefaultSlotInterval)
	assert.Equal(t, 3*time.Second, cfg.Booking.LockTimeout)
	assert.Equal(t, 1, cfg.Booking.RetryAttempts)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.Equal(t, 10*time.Second, cfg.Database.StatementTimeout)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("AVAILABILITY_MAX_SCAN_DAYS", "90")
	t.Setenv("BOOKING_LOCK_TIMEOUT", "750ms")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("ENABLE_IDEMPOTENCY", "true")
	t.Setenv("DB_STATEMENT_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Availability.MaxScanDays)
	assert.Equal(t, 750*time.Millisecond, cfg.Booking.LockTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Idempotency.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Database.StatementTimeout)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}
