package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/replyd/replyd/internal/domain"
)

// MockAuditStore implements store.AuditStore for testing.
type MockAuditStore struct {
	AppendFn func(ctx context.Context, entry *domain.AuditEntry) error

	mu      sync.Mutex
	Entries []*domain.AuditEntry

	AppendError error
}

// NewMockAuditStore creates a mock store with initialized defaults.
func NewMockAuditStore() *MockAuditStore {
	return &MockAuditStore{}
}

// Append implements the AuditStore interface.
func (m *MockAuditStore) Append(ctx context.Context, entry *domain.AuditEntry) error {
	if m.AppendFn != nil {
		return m.AppendFn(ctx, entry)
	}
	if m.AppendError != nil {
		return m.AppendError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *entry
	m.Entries = append(m.Entries, &copied)
	return nil
}

// ListByTask implements the AuditStore interface.
func (m *MockAuditStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*domain.AuditEntry{}
	for _, entry := range m.Entries {
		if entry.TaskID == taskID {
			copied := *entry
			result = append(result, &copied)
		}
	}
	return result, nil
}

// Actions returns the recorded action names for a task, in append
// order. Helper for assertions.
func (m *MockAuditStore) Actions(taskID uuid.UUID) []string {
	entries, _ := m.ListByTask(context.Background(), taskID)
	actions := make([]string, len(entries))
	for i, e := range entries {
		actions[i] = e.Action
	}
	return actions
}
