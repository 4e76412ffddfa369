package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/replyd/replyd/internal/domain"
	"github.com/replyd/replyd/internal/store"
)

// MockTaskStore implements store.TaskStore for testing. The default
// implementation honors the compare-and-set contract, including the
// attempt counter and timestamp side effects.
type MockTaskStore struct {
	// Function fields for customizable behavior
	CreateFn        func(ctx context.Context, task *domain.Task) error
	GetByIDFn       func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	CompareAndSetFn func(ctx context.Context, id uuid.UUID, expected []domain.TaskStatus, next domain.TaskStatus, reason string) (*domain.Task, error)
	DeleteFn        func(ctx context.Context, id uuid.UUID) error

	// Data for default implementation
	mu    sync.Mutex
	Tasks map[uuid.UUID]*domain.Task

	// Error injection
	CreateError error
	GetError    error
	ListError   error
	CASError    error
}

// NewMockTaskStore creates a mock store with initialized defaults.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{
		Tasks: make(map[uuid.UUID]*domain.Task),
	}
}

// Seed inserts a task directly, bypassing validation. It returns the
// stored copy for convenience.
func (m *MockTaskStore) Seed(task *domain.Task) *domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *task
	m.Tasks[task.ID] = &copied
	return &copied
}

// Create implements the TaskStore interface.
func (m *MockTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, task)
	}
	if m.CreateError != nil {
		return m.CreateError
	}
	if err := task.Validate(); err != nil {
		return err
	}
	m.Seed(task)
	return nil
}

// GetByID implements the TaskStore interface.
func (m *MockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	if m.GetError != nil {
		return nil, m.GetError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.Tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

// List implements the TaskStore interface.
func (m *MockTaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*domain.Task{}
	for _, task := range m.Tasks {
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.PostSlug != "" && task.PostSlug != filter.PostSlug {
			continue
		}
		copied := *task
		result = append(result, &copied)
	}
	return result, nil
}

// Count implements the TaskStore interface.
func (m *MockTaskStore) Count(ctx context.Context, filter store.TaskFilter) (int, error) {
	tasks, err := m.List(ctx, filter)
	return len(tasks), err
}

// CompareAndSetStatus implements the TaskStore interface.
func (m *MockTaskStore) CompareAndSetStatus(
	ctx context.Context,
	id uuid.UUID,
	expected []domain.TaskStatus,
	next domain.TaskStatus,
	reason string,
) (*domain.Task, error) {
	if m.CompareAndSetFn != nil {
		return m.CompareAndSetFn(ctx, id, expected, next, reason)
	}
	if m.CASError != nil {
		return nil, m.CASError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.Tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}

	matched := false
	for _, st := range expected {
		if task.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return nil, fmt.Errorf("%w: task is %s, cannot move to %s",
			store.ErrConflict, task.Status, next)
	}

	now := time.Now().UTC()
	task.Status = next
	task.FailureReason = reason
	task.UpdatedAt = now
	switch next {
	case domain.TaskStatusRunning:
		task.AttemptCount++
		task.CompletedAt = nil
	case domain.TaskStatusApproved:
		task.ApprovedAt = &now
	case domain.TaskStatusDone, domain.TaskStatusFailed, domain.TaskStatusRejected:
		task.CompletedAt = &now
	}

	copied := *task
	return &copied, nil
}

// Delete implements the TaskStore interface.
func (m *MockTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.Tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	if task.Status == domain.TaskStatusRunning {
		return fmt.Errorf("%w: task is running and cannot be deleted", store.ErrConflict)
	}
	delete(m.Tasks, id)
	return nil
}
