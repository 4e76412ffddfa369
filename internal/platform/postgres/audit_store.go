package postgres

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/replyd/replyd/internal/domain"
	"github.com/replyd/replyd/internal/platform/logger"
	"github.com/replyd/replyd/internal/store"
)

// AuditStore implements the store.AuditStore interface using a
// PostgreSQL database as the storage backend.
type AuditStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewAuditStore creates a new PostgreSQL implementation of the
// store.AuditStore interface.
// If logger is nil, a default logger will be used.
func NewAuditStore(db store.DBTX, logger *slog.Logger) *AuditStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &AuditStore{
		db:     db,
		logger: logger.With(slog.String("component", "audit_store")),
	}
}

// Ensure AuditStore implements store.AuditStore interface
var _ store.AuditStore = (*AuditStore)(nil)

// Append implements store.AuditStore.Append
func (s *AuditStore) Append(ctx context.Context, entry *domain.AuditEntry) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO audit_log (id, task_id, action, actor, from_status, to_status, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.TaskID,
		entry.Action,
		entry.Actor,
		entry.FromStatus,
		entry.ToStatus,
		entry.Detail,
		entry.CreatedAt,
	)

	if err != nil {
		log.Error("failed to append audit entry",
			slog.String("error", err.Error()),
			slog.String("task_id", entry.TaskID.String()),
			slog.String("action", entry.Action))
		return MapError(err)
	}

	return nil
}

// ListByTask implements store.AuditStore.ListByTask
func (s *AuditStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.AuditEntry, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, task_id, action, actor, from_status, to_status, detail, created_at
		FROM audit_log
		WHERE task_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		log.Error("failed to list audit entries",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	entries := []*domain.AuditEntry{}
	for rows.Next() {
		var entry domain.AuditEntry
		var from, to string

		err := rows.Scan(
			&entry.ID,
			&entry.TaskID,
			&entry.Action,
			&entry.Actor,
			&from,
			&to,
			&entry.Detail,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, MapError(err)
		}

		entry.FromStatus = domain.TaskStatus(from)
		entry.ToStatus = domain.TaskStatus(to)
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return entries, nil
}
