package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/replyd/replyd/internal/domain"
	"github.com/replyd/replyd/internal/platform/logger"
	"github.com/replyd/replyd/internal/store"
)

// RunStore implements the store.RunStore interface using a PostgreSQL
// database as the storage backend.
type RunStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewRunStore creates a new PostgreSQL implementation of the
// store.RunStore interface.
// If logger is nil, a default logger will be used.
func NewRunStore(db store.DBTX, logger *slog.Logger) *RunStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &RunStore{
		db:     db,
		logger: logger.With(slog.String("component", "run_store")),
	}
}

// Ensure RunStore implements store.RunStore interface
var _ store.RunStore = (*RunStore)(nil)

const runColumns = `id, task_id, program, status, exit_code, final_reply,
	failure_reason, started_at, updated_at, completed_at`

// Create implements store.RunStore.Create
func (s *RunStore) Create(ctx context.Context, run *domain.RunRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := run.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		run.ID,
		run.TaskID,
		run.Program,
		run.Status,
		run.ExitCode,
		run.FinalReply,
		run.FailureReason,
		run.StartedAt,
		run.UpdatedAt,
		run.CompletedAt,
	)

	if err != nil {
		log.Error("failed to create run",
			slog.String("error", err.Error()),
			slog.String("run_id", run.ID.String()),
			slog.String("task_id", run.TaskID.String()))
		return MapError(err)
	}

	log.Info("run created",
		slog.String("run_id", run.ID.String()),
		slog.String("task_id", run.TaskID.String()))
	return nil
}

// Update implements store.RunStore.Update
// Returns store.ErrRunNotFound if the run does not exist.
func (s *RunStore) Update(ctx context.Context, run *domain.RunRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := run.Validate(); err != nil {
		return err
	}

	run.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE runs
		SET status = $1, exit_code = $2, final_reply = $3,
		    failure_reason = $4, updated_at = $5, completed_at = $6
		WHERE id = $7
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		run.Status,
		run.ExitCode,
		run.FinalReply,
		run.FailureReason,
		run.UpdatedAt,
		run.CompletedAt,
		run.ID,
	)

	if err != nil {
		log.Error("failed to update run",
			slog.String("error", err.Error()),
			slog.String("run_id", run.ID.String()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rowsAffected == 0 {
		return store.ErrRunNotFound
	}

	return nil
}

// GetByID implements store.RunStore.GetByID
func (s *RunStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`
	return s.getRun(ctx, query, id)
}

// Latest implements store.RunStore.Latest
func (s *RunStore) Latest(ctx context.Context) (*domain.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC LIMIT 1`
	return s.getRun(ctx, query)
}

func (s *RunStore) getRun(ctx context.Context, query string, args ...any) (*domain.RunRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	run, err := scanRun(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRunNotFound
		}
		log.Error("failed to get run", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return run, nil
}

// ListByTask implements store.RunStore.ListByTask
func (s *RunStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.RunRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + runColumns + ` FROM runs WHERE task_id = $1 ORDER BY started_at DESC`

	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		log.Error("failed to list runs",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	runs := []*domain.RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			log.Error("failed to scan run row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return runs, nil
}

// scanRun scans one run row in runColumns order.
func scanRun(row rowScanner) (*domain.RunRecord, error) {
	var run domain.RunRecord
	var status string

	err := row.Scan(
		&run.ID,
		&run.TaskID,
		&run.Program,
		&status,
		&run.ExitCode,
		&run.FinalReply,
		&run.FailureReason,
		&run.StartedAt,
		&run.UpdatedAt,
		&run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Status = domain.RunStatus(status)
	return &run, nil
}
