package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SAM_API_KEY", "")
	t.Setenv("PORT", "")
	t.Setenv("GEOCODER_INTERVAL_MS", "")
	t.Setenv("LIMIT_BUSINESS_HOURS", "")
	t.Setenv("BUSINESS_TIMEZONE", "")
	t.Setenv("REFRESH_SCHEDULE_MINUTES", "")

	cfg := Load()

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, 1100*time.Millisecond, cfg.Geocoder.Interval)
	assert.Equal(t, 100, cfg.Refresh.BusinessHoursLimit)
	assert.Equal(t, 25, cfg.Refresh.OffHoursLimit)
	assert.Equal(t, 90, cfg.Refresh.WindowDays)
	assert.Equal(t, "America/Chicago", cfg.Refresh.Location.String())
	assert.Zero(t, cfg.Refresh.Schedule)
	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SAM_API_KEY", " key-123 ")
	t.Setenv("LIMIT_OFF_HOURS", "10")
	t.Setenv("SAM_MAX_RETRIES", "not-a-number")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("BUSINESS_TIMEZONE", "Nowhere/Invalid")

	cfg := Load()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "key-123", cfg.SAM.APIKey)
	assert.Equal(t, 10, cfg.Refresh.OffHoursLimit)
	assert.Equal(t, 2, cfg.SAM.MaxRetries)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, time.UTC, cfg.Refresh.Location)
}

func TestValidateWindow(t *testing.T) {
	cfg := &Config{SAM: SAMConfig{APIKey: "k"}, Refresh: RefreshConfig{WindowDays: 0}}
	assert.Error(t, cfg.Validate())
}
