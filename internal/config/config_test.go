package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	require.NotNil(t, cfg)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, "http://localhost:9000", cfg.Backend.BaseURL)
	assert.Equal(t, 10, cfg.Backend.TimeoutSeconds)
	assert.Zero(t, cfg.Order.MinAmount)
	assert.Equal(t, 120, cfg.RateLimit.RequestsPerMinute)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "redis")
	t.Setenv("ORDER_MIN_AMOUNT", "5000")
	t.Setenv("SERVER_PORT", "9090")

	cfg := Load()

	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, float64(5000), cfg.Order.MinAmount)
	assert.Equal(t, "9090", cfg.Server.Port)
}
