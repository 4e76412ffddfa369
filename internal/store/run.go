package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/replyd/replyd/internal/domain"
)

// RunStore defines the interface for run record persistence.
// Version: 1.0
type RunStore interface {
	// Create saves a new run record to the store.
	Create(ctx context.Context, run *domain.RunRecord) error

	// Update saves changes to an existing run record.
	// Returns ErrRunNotFound if the run does not exist.
	Update(ctx context.Context, run *domain.RunRecord) error

	// GetByID retrieves a run by its unique ID.
	// Returns ErrRunNotFound if the run does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RunRecord, error)

	// Latest retrieves the most recently started run.
	// Returns ErrRunNotFound if no runs exist.
	Latest(ctx context.Context) (*domain.RunRecord, error)

	// ListByTask retrieves all runs for a task, newest first.
	// Returns an empty slice if the task has no runs.
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.RunRecord, error)
}

// ChunkStore defines the append-only interface for captured output
// lines. Chunks are never updated or deleted.
// Version: 1.0
type ChunkStore interface {
	// Append persists one captured output line.
	Append(ctx context.Context, chunk *domain.RunChunk) error

	// ListAfter retrieves up to limit chunks of a run with sequence
	// numbers strictly greater than afterSeq, in sequence order.
	// A limit <= 0 means no limit.
	ListAfter(ctx context.Context, runID uuid.UUID, afterSeq int64, limit int) ([]*domain.RunChunk, error)

	// CountByRun returns the number of chunks captured for a run.
	CountByRun(ctx context.Context, runID uuid.UUID) (int, error)
}

// AuditStore defines the append-only interface for transition audit
// entries.
// Version: 1.0
type AuditStore interface {
	// Append persists one audit entry.
	Append(ctx context.Context, entry *domain.AuditEntry) error

	// ListByTask retrieves audit entries for a task, oldest first.
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.AuditEntry, error)
}

// PostStore provides read access to the published posts that tasks
// reference. The pipeline never writes posts.
// Version: 1.0
type PostStore interface {
	// Exists reports whether a post with the given slug exists.
	Exists(ctx context.Context, slug string) (bool, error)
}
