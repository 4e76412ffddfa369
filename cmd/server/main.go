// Package main implements the entry point for the replyd server,
// which queues reader comments for review and runs an external
// responder program to draft replies.
package main

import (
	"fmt"
	"log"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/replyd/replyd/internal/config"
	"github.com/replyd/replyd/internal/platform/logger"
)

func main() {
	// A missing .env file is fine; the environment may be set directly.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment variables from .env file")
	}

	app, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.cleanup()

	if err := app.run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// initializeApp loads configuration, sets up logging, and wires the
// application components.
func initializeApp() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"responder_program", cfg.Responder.Program,
		"run_timeout", cfg.Responder.EffectiveTimeout().String())

	return newApplication(cfg, appLogger)
}
