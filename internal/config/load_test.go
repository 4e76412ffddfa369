package config_test

import (
	"testing"
	"time"

	"github.com/replyd/replyd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// The only keys without defaults are the ones that must be
	// environment-provided for validation to pass.
	t.Setenv("REPLYD_DATABASE_URL", "postgres://localhost:5432/replyd")
	t.Setenv("REPLYD_RESPONDER_PROGRAM", "/usr/local/bin/responder")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 180*time.Second, cfg.Responder.Timeout)
	assert.Equal(t, 2000, cfg.Responder.MaxChunks)
	assert.Equal(t, 128, cfg.Responder.QueueSize)
	assert.Equal(t, 30*time.Second, cfg.Submit.RateLimitWindow)
	assert.Equal(t, 15*time.Second, cfg.Stream.HeartbeatInterval)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REPLYD_DATABASE_URL", "postgres://localhost:5432/replyd")
	t.Setenv("REPLYD_RESPONDER_PROGRAM", "/usr/local/bin/responder")
	t.Setenv("REPLYD_SERVER_PORT", "9999")
	t.Setenv("REPLYD_SERVER_LOG_LEVEL", "debug")
	t.Setenv("REPLYD_RESPONDER_TIMEOUT", "5m")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 5*time.Minute, cfg.Responder.Timeout)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Setenv("REPLYD_DATABASE_URL", "postgres://localhost:5432/replyd")
	t.Setenv("REPLYD_RESPONDER_PROGRAM", "/usr/local/bin/responder")
	t.Setenv("REPLYD_SERVER_LOG_LEVEL", "loud")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestEffectiveTimeoutClampsToMinimum(t *testing.T) {
	cfg := config.ResponderConfig{Timeout: 5 * time.Second}
	assert.Equal(t, config.MinRunTimeout, cfg.EffectiveTimeout())

	cfg.Timeout = 2 * time.Minute
	assert.Equal(t, 2*time.Minute, cfg.EffectiveTimeout())
}
