package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/replyd/replyd/internal/domain"
	"github.com/replyd/replyd/internal/platform/logger"
	"github.com/replyd/replyd/internal/store"
)

// Poll interval bounds for the stream endpoint, in milliseconds.
const (
	minPollIntervalMs     = 200
	maxPollIntervalMs     = 5000
	defaultPollIntervalMs = 500

	// streamBatchSize caps how many chunks one poll iteration fetches.
	streamBatchSize = 500
)

// chunkEvent is the payload of one "chunk" SSE event.
type chunkEvent struct {
	Stream   string `json:"stream"`
	Sequence int64  `json:"sequence"`
	Content  string `json:"content"`
}

// doneEvent is the payload of the terminal "done" SSE event.
type doneEvent struct {
	Status string `json:"status"`
}

// StreamHandler pushes live run output over Server-Sent Events. It
// polls the chunk store against a client-supplied cursor, so a client
// that reconnects with from_sequence set to its last seen sequence
// resumes without duplicates or gaps. No per-client server state is
// kept.
type StreamHandler struct {
	runs      store.RunStore
	chunks    store.ChunkStore
	heartbeat time.Duration
	logger    *slog.Logger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(
	runs store.RunStore,
	chunks store.ChunkStore,
	heartbeat time.Duration,
	logger *slog.Logger,
) *StreamHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for StreamHandler")
	}

	return &StreamHandler{
		runs:      runs,
		chunks:    chunks,
		heartbeat: heartbeat,
		logger:    logger.With(slog.String("component", "stream_handler")),
	}
}

// StreamRun handles GET /api/stream requests. Query parameters:
// run_id (default: latest run), from_sequence (default -1),
// poll_interval_ms (clamped 200-5000, default 500).
func (h *StreamHandler) StreamRun(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	run, err := h.resolveRun(r)
	if err != nil {
		status := http.StatusInternalServerError
		if store.IsNotFoundError(err) {
			status = http.StatusNotFound
		} else if errors.Is(err, errBadStreamParam) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	cursor := int64(-1)
	if raw := r.URL.Query().Get("from_sequence"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid from_sequence", http.StatusBadRequest)
			return
		}
		cursor = parsed
	}

	pollInterval := h.pollInterval(r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log.Debug("stream opened",
		"run_id", run.ID,
		"from_sequence", cursor,
		"poll_interval", pollInterval.String())

	poll := time.NewTicker(pollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	// First poll happens immediately, not one interval in.
	done, err := h.push(r.Context(), w, flusher, run.ID, &cursor)
	if err != nil || done {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			log.Debug("stream client disconnected", "run_id", run.ID)
			return

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-poll.C:
			done, err := h.push(r.Context(), w, flusher, run.ID, &cursor)
			if err != nil || done {
				return
			}
		}
	}
}

// push emits all chunks past the cursor, then checks the run status
// and emits the terminal done event when the run has finished. It
// reports whether the stream is complete.
func (h *StreamHandler) push(
	ctx context.Context,
	w http.ResponseWriter,
	flusher http.Flusher,
	runID uuid.UUID,
	cursor *int64,
) (bool, error) {
	for {
		batch, err := h.chunks.ListAfter(ctx, runID, *cursor, streamBatchSize)
		if err != nil {
			h.logger.Error("failed to fetch chunks", "run_id", runID, "error", err)
			h.writeEvent(w, "error", struct{}{})
			flusher.Flush()
			return true, err
		}

		for _, chunk := range batch {
			h.writeEvent(w, "chunk", chunkEvent{
				Stream:   string(chunk.Stream),
				Sequence: chunk.Seq,
				Content:  chunk.Content,
			})
			*cursor = chunk.Seq
		}
		if len(batch) > 0 {
			flusher.Flush()
		}
		if len(batch) < streamBatchSize {
			break
		}
	}

	run, err := h.runs.GetByID(ctx, runID)
	if err != nil {
		h.logger.Error("failed to check run status", "run_id", runID, "error", err)
		h.writeEvent(w, "error", struct{}{})
		flusher.Flush()
		return true, err
	}

	if run.Status != domain.RunStatusRunning {
		h.writeEvent(w, "done", doneEvent{Status: string(run.Status)})
		flusher.Flush()
		return true, nil
	}
	return false, nil
}

// writeEvent frames one SSE event with a JSON payload.
func (h *StreamHandler) writeEvent(w http.ResponseWriter, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal stream event", "event", event, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

var errBadStreamParam = errors.New("invalid stream parameter")

// resolveRun picks the run to stream: an explicit run_id parameter or
// the most recently started run.
func (h *StreamHandler) resolveRun(r *http.Request) (*domain.RunRecord, error) {
	if raw := r.URL.Query().Get("run_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: run_id", errBadStreamParam)
		}
		return h.runs.GetByID(r.Context(), id)
	}
	return h.runs.Latest(r.Context())
}

// pollInterval reads and clamps the poll_interval_ms parameter.
func (h *StreamHandler) pollInterval(r *http.Request) time.Duration {
	ms := defaultPollIntervalMs
	if raw := r.URL.Query().Get("poll_interval_ms"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			ms = parsed
		}
	}
	if ms < minPollIntervalMs {
		ms = minPollIntervalMs
	}
	if ms > maxPollIntervalMs {
		ms = maxPollIntervalMs
	}
	return time.Duration(ms) * time.Millisecond
}
