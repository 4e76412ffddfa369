package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/replyd/replyd/internal/domain"
	"github.com/replyd/replyd/internal/store"
)

// MockRunStore implements store.RunStore for testing.
type MockRunStore struct {
	CreateFn func(ctx context.Context, run *domain.RunRecord) error
	UpdateFn func(ctx context.Context, run *domain.RunRecord) error
	LatestFn func(ctx context.Context) (*domain.RunRecord, error)

	mu   sync.Mutex
	Runs map[uuid.UUID]*domain.RunRecord

	CreateError error
	UpdateError error
}

// NewMockRunStore creates a mock store with initialized defaults.
func NewMockRunStore() *MockRunStore {
	return &MockRunStore{
		Runs: make(map[uuid.UUID]*domain.RunRecord),
	}
}

// Create implements the RunStore interface.
func (m *MockRunStore) Create(ctx context.Context, run *domain.RunRecord) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, run)
	}
	if m.CreateError != nil {
		return m.CreateError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *run
	m.Runs[run.ID] = &copied
	return nil
}

// Update implements the RunStore interface.
func (m *MockRunStore) Update(ctx context.Context, run *domain.RunRecord) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, run)
	}
	if m.UpdateError != nil {
		return m.UpdateError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Runs[run.ID]; !ok {
		return store.ErrRunNotFound
	}
	copied := *run
	m.Runs[run.ID] = &copied
	return nil
}

// GetByID implements the RunStore interface.
func (m *MockRunStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.Runs[id]
	if !ok {
		return nil, store.ErrRunNotFound
	}
	copied := *run
	return &copied, nil
}

// Latest implements the RunStore interface.
func (m *MockRunStore) Latest(ctx context.Context) (*domain.RunRecord, error) {
	if m.LatestFn != nil {
		return m.LatestFn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.RunRecord
	for _, run := range m.Runs {
		if latest == nil || run.StartedAt.After(latest.StartedAt) {
			latest = run
		}
	}
	if latest == nil {
		return nil, store.ErrRunNotFound
	}
	copied := *latest
	return &copied, nil
}

// ListByTask implements the RunStore interface.
func (m *MockRunStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*domain.RunRecord{}
	for _, run := range m.Runs {
		if run.TaskID == taskID {
			copied := *run
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result, nil
}

// MockChunkStore implements store.ChunkStore for testing.
type MockChunkStore struct {
	AppendFn func(ctx context.Context, chunk *domain.RunChunk) error

	mu     sync.Mutex
	Chunks []*domain.RunChunk

	AppendError error
	ListError   error
}

// NewMockChunkStore creates a mock store with initialized defaults.
func NewMockChunkStore() *MockChunkStore {
	return &MockChunkStore{}
}

// Append implements the ChunkStore interface.
func (m *MockChunkStore) Append(ctx context.Context, chunk *domain.RunChunk) error {
	if m.AppendFn != nil {
		return m.AppendFn(ctx, chunk)
	}
	if m.AppendError != nil {
		return m.AppendError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *chunk
	m.Chunks = append(m.Chunks, &copied)
	return nil
}

// ListAfter implements the ChunkStore interface.
func (m *MockChunkStore) ListAfter(ctx context.Context, runID uuid.UUID, afterSeq int64, limit int) ([]*domain.RunChunk, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*domain.RunChunk{}
	for _, chunk := range m.Chunks {
		if chunk.RunID == runID && chunk.Seq > afterSeq {
			copied := *chunk
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// CountByRun implements the ChunkStore interface.
func (m *MockChunkStore) CountByRun(ctx context.Context, runID uuid.UUID) (int, error) {
	chunks, err := m.ListAfter(ctx, runID, -1, 0)
	return len(chunks), err
}
