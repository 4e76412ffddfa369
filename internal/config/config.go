package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Responder ResponderConfig `mapstructure:"responder" validate:"required"`
	Submit    SubmitConfig    `mapstructure:"submit" validate:"required"`
	Stream    StreamConfig    `mapstructure:"stream" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// ResponderConfig configures the external responder subprocess and the
// worker that runs it.
type ResponderConfig struct {
	// Program is the executable invoked for each run.
	Program string `mapstructure:"program" validate:"required"`

	// Args are passed to the program before the payload file path.
	Args []string `mapstructure:"args"`

	// WorkDir is the working directory for the subprocess.
	// Empty means inherit the server's working directory.
	WorkDir string `mapstructure:"work_dir"`

	// Timeout is the wall-clock limit for one run. Runs exceeding it
	// are killed. Clamped to a minimum of 30s.
	Timeout time.Duration `mapstructure:"timeout" validate:"required"`

	// MaxChunks caps how many output lines are captured per run.
	MaxChunks int `mapstructure:"max_chunks" validate:"required,gt=0"`

	// QueueSize is the capacity of the bounded worker queue.
	QueueSize int `mapstructure:"queue_size" validate:"required,gt=0"`
}

// SubmitConfig tunes the public submission endpoint.
type SubmitConfig struct {
	// RateLimitWindow is the minimum interval between accepted
	// submissions from one fingerprint.
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window" validate:"required"`
}

// StreamConfig tunes the SSE push endpoint.
type StreamConfig struct {
	// HeartbeatInterval is how often keep-alive comments are sent on
	// idle streams.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"required"`
}

// MinRunTimeout is the floor applied to Responder.Timeout.
const MinRunTimeout = 30 * time.Second

// EffectiveTimeout returns the configured run timeout clamped to the
// allowed minimum.
func (c ResponderConfig) EffectiveTimeout() time.Duration {
	if c.Timeout < MinRunTimeout {
		return MinRunTimeout
	}
	return c.Timeout
}
