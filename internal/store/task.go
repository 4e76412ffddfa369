package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/replyd/replyd/internal/domain"
)

// TaskFilter narrows task listing and counting queries.
// Zero-valued fields are ignored.
type TaskFilter struct {
	Status   domain.TaskStatus
	PostSlug string
	Limit    int
	Offset   int
}

// TaskStore defines the interface for task persistence.
// Version: 1.0
type TaskStore interface {
	// Create saves a new task to the store.
	// It handles domain validation internally.
	// Returns validation errors from the domain Task if data is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// List retrieves tasks matching the filter, newest first.
	// Returns an empty slice if no tasks match.
	List(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)

	// Count returns the number of tasks matching the filter,
	// ignoring Limit and Offset.
	Count(ctx context.Context, filter TaskFilter) (int, error)

	// CompareAndSetStatus atomically moves the task to next if and only
	// if its stored status is one of expected. The single UPDATE with a
	// status precondition is the linearization point for all transitions
	// on one task id. Bookkeeping applied alongside the status change:
	// attempt_count increments when next is running, approved_at is set
	// when next is approved, completed_at is set on done/failed and
	// cleared when a failed task re-enters running, and failure_reason
	// is replaced by reason (cleared when reason is empty).
	//
	// Returns the updated task, ErrConflict if the stored status was
	// outside expected, or ErrTaskNotFound if the task does not exist.
	CompareAndSetStatus(
		ctx context.Context,
		id uuid.UUID,
		expected []domain.TaskStatus,
		next domain.TaskStatus,
		reason string,
	) (*domain.Task, error)

	// Delete removes a task unless it is currently running.
	// Returns ErrTaskNotFound if the task does not exist and
	// ErrConflict if the task is running.
	Delete(ctx context.Context, id uuid.UUID) error
}
