package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/replyd/replyd/internal/domain"
	"github.com/replyd/replyd/internal/parser"
	"github.com/replyd/replyd/internal/store"
)

// workerActor is the actor recorded on audit entries written by the
// worker.
const workerActor = "worker"

// RunResult is what a Runner hands back for one execution attempt.
type RunResult struct {
	// Record is the persisted run record, already completed by the
	// runner for execution-level outcomes (timeout, spawn failure,
	// non-zero exit).
	Record *domain.RunRecord

	// Output is the captured primary-stream text, fed to the output
	// parser when the execution itself succeeded.
	Output string
}

// Runner executes the external responder program once for a task and
// captures its output. Implementations must respect the configured
// wall-clock timeout and record one RunRecord per call.
type Runner interface {
	RunOnce(ctx context.Context, task *domain.Task) (*RunResult, error)
}

// Worker drains the queue and processes tasks one at a time. Exactly
// one consumer loop runs per process instance, so at most one
// responder subprocess is ever in flight.
type Worker struct {
	queue   *Queue
	runner  Runner
	tasks   store.TaskStore
	runs    store.RunStore
	audit   store.AuditStore
	logger  *slog.Logger
	extract func(string) (string, error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a Worker consuming the given queue.
func NewWorker(
	queue *Queue,
	runner Runner,
	tasks store.TaskStore,
	runs store.RunStore,
	audit store.AuditStore,
	logger *slog.Logger,
) *Worker {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		queue:   queue,
		runner:  runner,
		tasks:   tasks,
		runs:    runs,
		audit:   audit,
		logger:  logger.With(slog.String("component", "worker")),
		extract: parser.ExtractReply,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the consumer loop. It first fails over any task left
// in running state by a previous process: a fresh process has no
// worker that could own them, so their runs can never complete.
func (w *Worker) Start() error {
	if err := w.recover(); err != nil {
		return fmt.Errorf("failed to recover interrupted tasks: %w", err)
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop cancels the consumer loop and waits for the in-flight task, if
// any, to finish.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
}

// recover resets tasks stuck in running state after a crash or
// restart. They move to failed with a descriptive reason and stay
// operator-retryable; their captured chunks remain queryable.
func (w *Worker) recover() error {
	ctx := context.Background()

	stuck, err := w.tasks.List(ctx, store.TaskFilter{
		Status: domain.TaskStatusRunning,
		Limit:  1000,
	})
	if err != nil {
		return err
	}

	for _, t := range stuck {
		reason := "interrupted by restart"
		if _, err := w.tasks.CompareAndSetStatus(
			ctx, t.ID,
			[]domain.TaskStatus{domain.TaskStatusRunning},
			domain.TaskStatusFailed, reason,
		); err != nil {
			w.logger.Error("failed to reset interrupted task",
				"task_id", t.ID, "error", err)
			continue
		}
		w.appendAudit(ctx, t.ID, "recovered", domain.TaskStatusRunning, domain.TaskStatusFailed, reason)
		w.logger.Info("reset interrupted task to failed", "task_id", t.ID)
	}

	return nil
}

// loop is the single consumer draining the queue serially.
func (w *Worker) loop() {
	defer w.wg.Done()

	w.logger.Debug("worker started")

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Debug("worker stopping")
			return

		case id, ok := <-w.queue.Chan():
			if !ok {
				w.logger.Debug("queue closed, worker stopping")
				return
			}
			w.processTask(id)
		}
	}
}

// processTask handles one task end to end: run the subprocess, parse
// the output, and transition the task to done or failed.
func (w *Worker) processTask(id uuid.UUID) {
	ctx := context.Background()
	log := w.logger.With(slog.String("task_id", id.String()))

	t, err := w.tasks.GetByID(ctx, id)
	if err != nil {
		log.Error("failed to load queued task", "error", err)
		return
	}

	// Approve-and-run moves the task to running before enqueueing; a
	// task dequeued in any other state was mutated out from under the
	// queue and is skipped.
	if t.Status != domain.TaskStatusRunning {
		log.Warn("skipping task not in running state",
			"status", string(t.Status))
		return
	}

	log.Info("processing task", "attempt", t.AttemptCount)

	result, err := w.runner.RunOnce(ctx, t)
	if err != nil {
		w.failTask(ctx, t, fmt.Sprintf("run failed: %v", err))
		return
	}

	run := result.Record
	if run.Status == domain.RunStatusFailed {
		w.failTask(ctx, t, run.FailureReason)
		return
	}

	reply, err := w.extract(result.Output)
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.FailureReason = err.Error()
		if updateErr := w.runs.Update(ctx, run); updateErr != nil {
			log.Error("failed to record parse failure on run", "error", updateErr)
		}
		w.failTask(ctx, t, fmt.Sprintf("output parse failed: %v", err))
		return
	}

	run.FinalReply = reply
	if err := w.runs.Update(ctx, run); err != nil {
		log.Error("failed to store final reply", "error", err)
		w.failTask(ctx, t, fmt.Sprintf("failed to store reply: %v", err))
		return
	}

	if _, err := w.tasks.CompareAndSetStatus(
		ctx, t.ID,
		[]domain.TaskStatus{domain.TaskStatusRunning},
		domain.TaskStatusDone, "",
	); err != nil {
		log.Error("failed to mark task done", "error", err)
		w.appendAudit(ctx, t.ID, "denied",
			domain.TaskStatusRunning, domain.TaskStatusDone, err.Error())
		return
	}
	w.appendAudit(ctx, t.ID, "completed", domain.TaskStatusRunning, domain.TaskStatusDone, "")

	log.Info("task completed", "run_id", run.ID)
}

// failTask moves a running task to failed with the given reason and
// records the transition. Failures are never auto-retried; retry is an
// explicit operator action.
func (w *Worker) failTask(ctx context.Context, t *domain.Task, reason string) {
	log := w.logger.With(slog.String("task_id", t.ID.String()))
	log.Error("task failed", "reason", reason)

	if _, err := w.tasks.CompareAndSetStatus(
		ctx, t.ID,
		[]domain.TaskStatus{domain.TaskStatusRunning},
		domain.TaskStatusFailed, reason,
	); err != nil {
		log.Error("failed to mark task failed", "error", err)
		w.appendAudit(ctx, t.ID, "denied",
			domain.TaskStatusRunning, domain.TaskStatusFailed, err.Error())
		return
	}
	w.appendAudit(ctx, t.ID, "failed", domain.TaskStatusRunning, domain.TaskStatusFailed, reason)
}

// appendAudit writes one audit entry, logging rather than failing the
// transition when the write itself errors.
func (w *Worker) appendAudit(
	ctx context.Context,
	taskID uuid.UUID,
	action string,
	from, to domain.TaskStatus,
	detail string,
) {
	entry := domain.NewAuditEntry(taskID, action, workerActor, from, to, detail)
	if err := w.audit.Append(ctx, entry); err != nil {
		w.logger.Error("failed to append audit entry",
			"task_id", taskID, "action", action, "error", err)
	}
}
