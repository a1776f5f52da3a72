package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, 10*time.Minute, cfg.HoldWindow)
	assert.Equal(t, "0.16", cfg.TaxRate.String())
	assert.Equal(t, "MXN", cfg.Currency)
	assert.Equal(t, "pocketbase", cfg.DBDriver)
	assert.Equal(t, 15*time.Second, cfg.Gateway.Timeout)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("HOLD_WINDOW", "15m")
	t.Setenv("TAX_RATE", "0.08")
	t.Setenv("GATEWAY_PROVIDER", "clip")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "5")
	t.Setenv("ENABLE_METRICS", "false")
	t.Setenv("ENVIRONMENT", "production")

	cfg := LoadConfig()

	assert.Equal(t, 15*time.Minute, cfg.HoldWindow)
	assert.Equal(t, "0.08", cfg.TaxRate.String())
	assert.Equal(t, "clip", cfg.Gateway.Provider)
	assert.Equal(t, 5, cfg.RateLimitPerMinute)
	assert.False(t, cfg.EnableMetrics)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("HOLD_WINDOW", "soon")
	t.Setenv("TAX_RATE", "sixteen")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "many")

	cfg := LoadConfig()

	assert.Equal(t, 10*time.Minute, cfg.HoldWindow)
	assert.Equal(t, "0.16", cfg.TaxRate.String())
	assert.Equal(t, 30, cfg.RateLimitPerMinute)
}
