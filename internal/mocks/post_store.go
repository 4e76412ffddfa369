package mocks

import (
	"context"
	"sync"
)

// MockPostStore implements store.PostStore for testing.
type MockPostStore struct {
	ExistsFn func(ctx context.Context, slug string) (bool, error)

	mu    sync.Mutex
	Slugs map[string]bool

	ExistsError error
}

// NewMockPostStore creates a mock store knowing the given slugs.
func NewMockPostStore(slugs ...string) *MockPostStore {
	known := make(map[string]bool, len(slugs))
	for _, slug := range slugs {
		known[slug] = true
	}
	return &MockPostStore{Slugs: known}
}

// Exists implements the PostStore interface.
func (m *MockPostStore) Exists(ctx context.Context, slug string) (bool, error) {
	if m.ExistsFn != nil {
		return m.ExistsFn(ctx, slug)
	}
	if m.ExistsError != nil {
		return false, m.ExistsError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Slugs[slug], nil
}
