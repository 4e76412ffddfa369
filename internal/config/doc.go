// Package config defines the application configuration structure and
// loading. Configuration comes from environment variables with the
// REPLYD_ prefix, optionally layered over a config.yaml file, and is
// validated before use.
package config
