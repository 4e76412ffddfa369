package logger_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/replyd/replyd/internal/config"
	"github.com/replyd/replyd/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
	}{
		{"debug level", "debug"},
		{"info level", "info"},
		{"warn level", "warn"},
		{"error level", "error"},
		{"mixed case", "INFO"},
		{"invalid level falls back to info", "verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := logger.Setup(config.ServerConfig{Port: 8080, LogLevel: tt.logLevel})
			require.NoError(t, err)
			assert.NotNil(t, log)
			assert.Same(t, log, slog.Default())
		})
	}
}

func TestFromContext(t *testing.T) {
	ctx := context.Background()

	// Without an attached logger, the default is returned.
	assert.Same(t, slog.Default(), logger.FromContext(ctx))

	attached := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx = logger.WithLogger(ctx, attached)
	assert.Same(t, attached, logger.FromContext(ctx))
}

func TestFromContextOrDefault(t *testing.T) {
	def := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Empty context falls back to the provided default.
	assert.Same(t, def, logger.FromContextOrDefault(context.Background(), def))

	// A nil default falls back to the global logger.
	assert.Same(t, slog.Default(), logger.FromContextOrDefault(context.Background(), nil))

	// An attached logger wins over the default.
	attached := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := logger.WithLogger(context.Background(), attached)
	assert.Same(t, attached, logger.FromContextOrDefault(ctx, def))
}
