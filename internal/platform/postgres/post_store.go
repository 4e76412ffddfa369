package postgres

import (
	"context"
	"log/slog"

	"github.com/replyd/replyd/internal/platform/logger"
	"github.com/replyd/replyd/internal/store"
)

// PostStore implements the store.PostStore interface using a
// PostgreSQL database as the storage backend. The pipeline only ever
// checks post existence; posts themselves are owned by the publishing
// side of the system.
type PostStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostStore creates a new PostgreSQL implementation of the
// store.PostStore interface.
// If logger is nil, a default logger will be used.
func NewPostStore(db store.DBTX, logger *slog.Logger) *PostStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostStore{
		db:     db,
		logger: logger.With(slog.String("component", "post_store")),
	}
}

// Ensure PostStore implements store.PostStore interface
var _ store.PostStore = (*PostStore)(nil)

// Exists implements store.PostStore.Exists
func (s *PostStore) Exists(ctx context.Context, slug string) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var exists bool
	err := s.db.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM posts WHERE slug = $1)`,
		slug,
	).Scan(&exists)
	if err != nil {
		log.Error("failed to check post existence",
			slog.String("error", err.Error()),
			slog.String("slug", slug))
		return false, MapError(err)
	}

	return exists, nil
}
