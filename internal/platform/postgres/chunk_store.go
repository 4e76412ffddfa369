package postgres

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/replyd/replyd/internal/domain"
	"github.com/replyd/replyd/internal/platform/logger"
	"github.com/replyd/replyd/internal/store"
)

// ChunkStore implements the store.ChunkStore interface using a
// PostgreSQL database as the storage backend. Chunks are append-only;
// the table carries no UPDATE path.
type ChunkStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewChunkStore creates a new PostgreSQL implementation of the
// store.ChunkStore interface.
// If logger is nil, a default logger will be used.
func NewChunkStore(db store.DBTX, logger *slog.Logger) *ChunkStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &ChunkStore{
		db:     db,
		logger: logger.With(slog.String("component", "chunk_store")),
	}
}

// Ensure ChunkStore implements store.ChunkStore interface
var _ store.ChunkStore = (*ChunkStore)(nil)

// Append implements store.ChunkStore.Append
func (s *ChunkStore) Append(ctx context.Context, chunk *domain.RunChunk) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := chunk.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO run_chunks (id, run_id, task_id, stream, seq, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		chunk.ID,
		chunk.RunID,
		chunk.TaskID,
		chunk.Stream,
		chunk.Seq,
		chunk.Content,
		chunk.CreatedAt,
	)

	if err != nil {
		log.Error("failed to append chunk",
			slog.String("error", err.Error()),
			slog.String("run_id", chunk.RunID.String()),
			slog.Int64("seq", chunk.Seq))
		return MapError(err)
	}

	return nil
}

// ListAfter implements store.ChunkStore.ListAfter
func (s *ChunkStore) ListAfter(
	ctx context.Context,
	runID uuid.UUID,
	afterSeq int64,
	limit int,
) ([]*domain.RunChunk, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, run_id, task_id, stream, seq, content, created_at
		FROM run_chunks
		WHERE run_id = $1 AND seq > $2
		ORDER BY seq ASC
	`
	args := []any{runID, afterSeq}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list chunks",
			slog.String("error", err.Error()),
			slog.String("run_id", runID.String()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	chunks := []*domain.RunChunk{}
	for rows.Next() {
		var chunk domain.RunChunk
		var stream string

		err := rows.Scan(
			&chunk.ID,
			&chunk.RunID,
			&chunk.TaskID,
			&stream,
			&chunk.Seq,
			&chunk.Content,
			&chunk.CreatedAt,
		)
		if err != nil {
			log.Error("failed to scan chunk row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}

		chunk.Stream = domain.ChunkStream(stream)
		chunks = append(chunks, &chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return chunks, nil
}

// CountByRun implements store.ChunkStore.CountByRun
func (s *ChunkStore) CountByRun(ctx context.Context, runID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM run_chunks WHERE run_id = $1`,
		runID,
	).Scan(&count)
	if err != nil {
		return 0, MapError(err)
	}
	return count, nil
}
