// Package runner executes the external responder program for a task,
// capturing its interleaved output into the chunk log.
package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/replyd/replyd/internal/config"
	"github.com/replyd/replyd/internal/domain"
	"github.com/replyd/replyd/internal/store"
	"github.com/replyd/replyd/internal/task"
)

// maxLineBytes bounds a single captured line. Longer lines are split
// by the scanner rather than aborting the capture.
const maxLineBytes = 1 << 20

// noisePrefixes are runtime chatter lines dropped from the chunk log.
// They still count toward nothing; filtering happens before the
// sequence counter is consumed, so sequences stay contiguous.
var noisePrefixes = []string{
	"Debugger attached",
	"Waiting for the debugger",
	"npm warn",
	"npm notice",
}

// payload is the JSON document handed to the responder program as its
// final argument (a file path).
type payload struct {
	TaskID        string `json:"task_id"`
	PostSlug      string `json:"post_slug"`
	Kind          string `json:"kind"`
	Body          string `json:"body"`
	QuotedTitle   string `json:"quoted_title,omitempty"`
	QuotedExcerpt string `json:"quoted_excerpt,omitempty"`
	Attempt       int    `json:"attempt"`
}

// ProcessRunner spawns the configured responder program once per task
// attempt. Both output streams are pumped concurrently into the chunk
// store, sharing one atomic sequence counter so that ordering by
// sequence reconstructs the true interleaving.
type ProcessRunner struct {
	cfg    config.ResponderConfig
	runs   store.RunStore
	chunks store.ChunkStore
	logger *slog.Logger
}

// Verify ProcessRunner satisfies the worker's Runner interface.
var _ task.Runner = (*ProcessRunner)(nil)

// NewProcessRunner creates a ProcessRunner using the given stores.
func NewProcessRunner(
	cfg config.ResponderConfig,
	runs store.RunStore,
	chunks store.ChunkStore,
	logger *slog.Logger,
) *ProcessRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessRunner{
		cfg:    cfg,
		runs:   runs,
		chunks: chunks,
		logger: logger.With(slog.String("component", "runner")),
	}
}

// RunOnce executes the responder program for the task and records one
// run. Execution-level failures (spawn error, timeout, non-zero exit)
// complete the run as failed rather than returning an error; an error
// return means the run record itself could not be persisted.
func (r *ProcessRunner) RunOnce(ctx context.Context, t *domain.Task) (*task.RunResult, error) {
	run := domain.NewRunRecord(t.ID, r.cfg.Program)
	if err := r.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run record: %w", err)
	}

	log := r.logger.With(
		slog.String("task_id", t.ID.String()),
		slog.String("run_id", run.ID.String()),
	)

	output, exitCode, runErr := r.execute(ctx, t, run, log)

	run.ExitCode = exitCode
	if runErr != nil {
		run.Complete(domain.RunStatusFailed)
		run.FailureReason = runErr.Error()
		log.Error("run failed", "reason", run.FailureReason)
	} else {
		run.Complete(domain.RunStatusSuccess)
		log.Info("run finished", "chunks", r.countChunks(ctx, run.ID))
	}

	if err := r.runs.Update(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to complete run record: %w", err)
	}

	return &task.RunResult{Record: run, Output: output}, nil
}

// execute spawns the subprocess and pumps its streams until exit or
// timeout. It returns the accumulated primary-stream text and the
// process exit code when one is available.
func (r *ProcessRunner) execute(
	ctx context.Context,
	t *domain.Task,
	run *domain.RunRecord,
	log *slog.Logger,
) (string, *int, error) {
	payloadPath, cleanup, err := r.writePayload(t)
	if err != nil {
		return "", nil, fmt.Errorf("failed to write payload: %w", err)
	}
	defer cleanup()

	timeout := r.cfg.EffectiveTimeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, r.cfg.Args...), payloadPath)
	cmd := exec.CommandContext(runCtx, r.cfg.Program, args...)
	cmd.Dir = r.cfg.WorkDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", nil, fmt.Errorf("failed to start %s: %w", r.cfg.Program, err)
	}

	log.Info("responder started",
		"program", r.cfg.Program,
		"pid", cmd.Process.Pid,
		"timeout", timeout.String())

	// One sequence and one cap counter shared by both pumps.
	var seq, captured atomic.Int64
	var primary strings.Builder

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.pump(run, domain.ChunkStreamStdout, stdout, &seq, &captured, &primary, log)
	}()
	go func() {
		defer wg.Done()
		r.pump(run, domain.ChunkStreamStderr, stderr, &seq, &captured, nil, log)
	}()
	wg.Wait()

	waitErr := cmd.Wait()

	if runCtx.Err() == context.DeadlineExceeded {
		return primary.String(), nil, fmt.Errorf("timed out after %s", timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code := exitErr.ExitCode()
		return primary.String(), &code, fmt.Errorf("exited with code %d", code)
	}
	if waitErr != nil {
		return primary.String(), nil, fmt.Errorf("wait failed: %w", waitErr)
	}

	zero := 0
	return primary.String(), &zero, nil
}

// pump reads one stream line by line, dropping noise lines and
// appending the rest as chunks with the next shared sequence value.
// The primary stream additionally accumulates raw text for the output
// parser, unfiltered and uncapped.
func (r *ProcessRunner) pump(
	run *domain.RunRecord,
	stream domain.ChunkStream,
	src io.Reader,
	seq *atomic.Int64,
	captured *atomic.Int64,
	primary *strings.Builder,
	log *slog.Logger,
) {
	// Chunk appends happen regardless of the caller's deadline; a
	// timed-out run keeps its truthful partial log.
	ctx := context.Background()

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	capWarned := false
	for scanner.Scan() {
		line := scanner.Text()

		if primary != nil {
			primary.WriteString(line)
			primary.WriteByte('\n')
		}

		if isNoiseLine(line) {
			continue
		}

		// One atomic add both claims a slot and detects overflow, so
		// the two pumps can never store more than MaxChunks between
		// them.
		if captured.Add(1) > int64(r.cfg.MaxChunks) {
			if !capWarned {
				capWarned = true
				log.Warn("chunk cap reached, dropping further output",
					"stream", string(stream),
					"max_chunks", r.cfg.MaxChunks)
			}
			continue
		}

		chunk := domain.NewRunChunk(run.ID, run.TaskID, stream, seq.Add(1)-1, line)
		if err := r.chunks.Append(ctx, chunk); err != nil {
			log.Error("failed to append chunk",
				"stream", string(stream),
				"sequence", chunk.Seq,
				"error", err)
		}
	}

	if err := scanner.Err(); err != nil {
		// Pipe errors at kill time are expected on timeout.
		log.Debug("stream closed", "stream", string(stream), "error", err)
	}
}

// writePayload marshals the task into a temp payload file and returns
// its path plus a cleanup func.
func (r *ProcessRunner) writePayload(t *domain.Task) (string, func(), error) {
	doc := payload{
		TaskID:        t.ID.String(),
		PostSlug:      t.PostSlug,
		Kind:          string(t.Kind),
		Body:          t.Body,
		QuotedTitle:   t.QuotedTitle,
		QuotedExcerpt: t.QuotedExcerpt,
		Attempt:       t.AttemptCount,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", nil, err
	}

	dir, err := os.MkdirTemp("", "replyd-run-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	path := filepath.Join(dir, "payload.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

func (r *ProcessRunner) countChunks(ctx context.Context, runID uuid.UUID) int {
	n, err := r.chunks.CountByRun(ctx, runID)
	if err != nil {
		return -1
	}
	return n
}

// isNoiseLine reports whether a captured line is known runtime chatter
// that should not be stored.
func isNoiseLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	for _, prefix := range noisePrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}
