package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/replyd/replyd/internal/domain"
	"github.com/replyd/replyd/internal/platform/logger"
	"github.com/replyd/replyd/internal/store"
)

// TaskStore implements the store.TaskStore interface using a
// PostgreSQL database as the storage backend.
type TaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewTaskStore creates a new PostgreSQL implementation of the
// store.TaskStore interface. It accepts a database connection or
// transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewTaskStore(db store.DBTX, logger *slog.Logger) *TaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &TaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure TaskStore implements store.TaskStore interface
var _ store.TaskStore = (*TaskStore)(nil)

const taskColumns = `id, post_slug, kind, body, quoted_title, quoted_excerpt,
	fingerprint, status, attempt_count, failure_reason,
	created_at, updated_at, approved_at, completed_at`

// Create implements store.TaskStore.Create
// It saves a new task to the database, handling domain validation.
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.PostSlug,
		task.Kind,
		task.Body,
		task.QuotedTitle,
		task.QuotedExcerpt,
		task.Fingerprint,
		task.Status,
		task.AttemptCount,
		task.FailureReason,
		task.CreatedAt,
		task.UpdatedAt,
		task.ApprovedAt,
		task.CompletedAt,
	)

	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	log.Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("post_slug", task.PostSlug),
		slog.String("kind", string(task.Kind)))
	return nil
}

// GetByID implements store.TaskStore.GetByID
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}

	return task, nil
}

// List implements store.TaskStore.List
// It retrieves tasks matching the filter, newest first.
func (s *TaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	where, args := buildTaskFilter(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(
		`SELECT `+taskColumns+` FROM tasks %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	tasks := []*domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return tasks, nil
}

// Count implements store.TaskStore.Count
func (s *TaskStore) Count(ctx context.Context, filter store.TaskFilter) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	where, args := buildTaskFilter(filter)

	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM tasks %s`, where)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		log.Error("failed to count tasks", slog.String("error", err.Error()))
		return 0, MapError(err)
	}

	return count, nil
}

// CompareAndSetStatus implements store.TaskStore.CompareAndSetStatus
// The status precondition is enforced inside a single UPDATE, which
// linearizes concurrent transitions on the same task id.
func (s *TaskStore) CompareAndSetStatus(
	ctx context.Context,
	id uuid.UUID,
	expected []domain.TaskStatus,
	next domain.TaskStatus,
	reason string,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !domain.IsValidTaskStatus(next) {
		return nil, domain.ErrInvalidTaskStatus
	}

	expectedStrs := make([]string, len(expected))
	for i, st := range expected {
		expectedStrs[i] = string(st)
	}

	now := time.Now().UTC()

	query := `
		UPDATE tasks
		SET status = $1,
		    failure_reason = $2,
		    attempt_count = attempt_count + CASE WHEN $1 = 'running' THEN 1 ELSE 0 END,
		    approved_at = CASE WHEN $1 = 'approved' THEN $3 ELSE approved_at END,
		    completed_at = CASE
		        WHEN $1 IN ('done', 'failed', 'rejected') THEN $3
		        WHEN $1 = 'running' THEN NULL
		        ELSE completed_at
		    END,
		    updated_at = $3
		WHERE id = $4 AND status = ANY($5)
		RETURNING ` + taskColumns

	task, err := scanTask(s.db.QueryRowContext(ctx, query, next, reason, now, id, expectedStrs))
	if err == nil {
		log.Info("task status transitioned",
			slog.String("task_id", id.String()),
			slog.String("status", string(next)))
		return task, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to transition task status",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()),
			slog.String("status", string(next)))
		return nil, MapError(err)
	}

	// No row matched: either the task is missing or its status was
	// outside the precondition set. Disambiguate for the caller.
	current, getErr := s.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}

	log.Warn("task status precondition failed",
		slog.String("task_id", id.String()),
		slog.String("current_status", string(current.Status)),
		slog.String("requested_status", string(next)))
	return nil, fmt.Errorf("%w: task is %s, cannot move to %s",
		store.ErrConflict, current.Status, next)
}

// Delete implements store.TaskStore.Delete
// Running tasks are never deleted; the status guard lives in the
// DELETE itself so the check cannot race with the worker.
func (s *TaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(
		ctx,
		`DELETE FROM tasks WHERE id = $1 AND status <> 'running'`,
		id,
	)
	if err != nil {
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}

	if rowsAffected == 0 {
		if _, getErr := s.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: task is running and cannot be deleted", store.ErrConflict)
	}

	log.Info("task deleted", slog.String("task_id", id.String()))
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanTask.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask scans one task row in taskColumns order.
func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var status, kind string

	err := row.Scan(
		&task.ID,
		&task.PostSlug,
		&kind,
		&task.Body,
		&task.QuotedTitle,
		&task.QuotedExcerpt,
		&task.Fingerprint,
		&status,
		&task.AttemptCount,
		&task.FailureReason,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.ApprovedAt,
		&task.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	task.Kind = domain.TaskKind(kind)
	return &task, nil
}

// buildTaskFilter renders the WHERE clause for a task filter.
func buildTaskFilter(filter store.TaskFilter) (string, []any) {
	where := ""
	args := []any{}

	addClause := func(clause string) {
		if where == "" {
			where = "WHERE " + clause
		} else {
			where += " AND " + clause
		}
	}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		addClause(fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.PostSlug != "" {
		args = append(args, filter.PostSlug)
		addClause(fmt.Sprintf("post_slug = $%d", len(args)))
	}

	return where, args
}
