package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChunkStream tags which output stream a captured line came from.
type ChunkStream string

// Possible chunk stream tags
const (
	ChunkStreamStdout ChunkStream = "stdout"
	ChunkStreamStderr ChunkStream = "stderr"
)

// RunChunk is one captured line of subprocess output. Chunks of a run
// share a single monotonic sequence across both streams, so ordering
// by Seq reconstructs the true interleaved output order. Chunks are
// append-only and never mutated.
type RunChunk struct {
	ID        uuid.UUID   `json:"id"`
	RunID     uuid.UUID   `json:"run_id"`
	TaskID    uuid.UUID   `json:"task_id"`
	Stream    ChunkStream `json:"stream"`
	Seq       int64       `json:"sequence"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewRunChunk creates a RunChunk for the given run with the given
// sequence number.
func NewRunChunk(runID, taskID uuid.UUID, stream ChunkStream, seq int64, content string) *RunChunk {
	return &RunChunk{
		ID:        uuid.New(),
		RunID:     runID,
		TaskID:    taskID,
		Stream:    stream,
		Seq:       seq,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks if the RunChunk has valid data.
func (c *RunChunk) Validate() error {
	if c.Stream != ChunkStreamStdout && c.Stream != ChunkStreamStderr {
		return ErrInvalidChunkStream
	}
	return nil
}
