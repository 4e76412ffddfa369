package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/replyd/replyd/internal/api"
	"github.com/replyd/replyd/internal/config"
	"github.com/replyd/replyd/internal/platform/postgres"
	"github.com/replyd/replyd/internal/ratelimit"
	"github.com/replyd/replyd/internal/runner"
	"github.com/replyd/replyd/internal/service"
	"github.com/replyd/replyd/internal/task"
)

// application holds the wired components of the server.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	queue  *task.Queue
	worker *task.Worker
	router http.Handler
}

// newApplication connects the database, runs migrations, and wires the
// stores, worker, service, and HTTP router.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	db, err := setupDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	tasks := postgres.NewTaskStore(db, logger)
	runs := postgres.NewRunStore(db, logger)
	chunks := postgres.NewChunkStore(db, logger)
	audit := postgres.NewAuditStore(db, logger)
	posts := postgres.NewPostStore(db, logger)

	queue := task.NewQueue(cfg.Responder.QueueSize, logger)
	procRunner := runner.NewProcessRunner(cfg.Responder, runs, chunks, logger)
	worker := task.NewWorker(queue, procRunner, tasks, runs, audit, logger)

	limiter := ratelimit.NewLimiter(cfg.Submit.RateLimitWindow)
	svc := service.NewTaskService(tasks, runs, audit, posts, queue, limiter, logger)

	taskHandler := api.NewTaskHandler(svc, logger)
	streamHandler := api.NewStreamHandler(runs, chunks, cfg.Stream.HeartbeatInterval, logger)

	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
		queue:  queue,
		worker: worker,
	}
	app.router = newRouter(taskHandler, streamHandler, db)
	return app, nil
}

// run starts the worker and the HTTP server, then blocks until a
// shutdown signal arrives and the server has drained.
func (app *application) run() error {
	if err := app.worker.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("Starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-shutdownCh:
		app.logger.Info("Shutting down server", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("Server shutdown failed", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Stop accepting new work, then wait for the in-flight run.
	app.queue.Close()
	app.worker.Stop()

	app.logger.Info("Server shutdown completed")
	return nil
}

// cleanup releases resources held by the application.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Failed to close database connection", "error", err)
		}
	}
}
