// Package service implements the application logic between the HTTP
// handlers and the stores: submission, the approval state machine, and
// dispatch to the worker queue.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/replyd/replyd/internal/domain"
	"github.com/replyd/replyd/internal/ratelimit"
	"github.com/replyd/replyd/internal/store"
	"github.com/replyd/replyd/internal/task"
)

// operatorActor is recorded on audit entries for operator-initiated
// transitions. Submissions record the reader fingerprint instead.
const operatorActor = "operator"

// SubmitInput carries one reader submission.
type SubmitInput struct {
	PostSlug      string
	Kind          domain.TaskKind
	Body          string
	QuotedTitle   string
	QuotedExcerpt string
	Fingerprint   string
}

// TaskService coordinates task lifecycle operations. All state
// transitions go through the store's compare-and-set so that
// concurrent operators and the worker can never double-apply one.
type TaskService struct {
	tasks   store.TaskStore
	runs    store.RunStore
	audit   store.AuditStore
	posts   store.PostStore
	queue   *task.Queue
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// NewTaskService creates a TaskService with the given dependencies.
func NewTaskService(
	tasks store.TaskStore,
	runs store.RunStore,
	audit store.AuditStore,
	posts store.PostStore,
	queue *task.Queue,
	limiter *ratelimit.Limiter,
	logger *slog.Logger,
) *TaskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{
		tasks:   tasks,
		runs:    runs,
		audit:   audit,
		posts:   posts,
		queue:   queue,
		limiter: limiter,
		logger:  logger.With(slog.String("component", "task_service")),
	}
}

// Submit validates a reader submission and creates a pending task.
// Checks run in order: the post must exist, the fields must validate,
// and the fingerprint must be outside its rate-limit window.
func (s *TaskService) Submit(ctx context.Context, in SubmitInput) (*domain.Task, error) {
	exists, err := s.posts.Exists(ctx, in.PostSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to check post: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: no post with slug %q", store.ErrPostNotFound, in.PostSlug)
	}

	t, err := domain.NewTask(in.PostSlug, in.Kind, in.Body, in.QuotedTitle, in.QuotedExcerpt, in.Fingerprint)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Check(in.Fingerprint, time.Now()); err != nil {
		return nil, err
	}

	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	// The rate-limit window opens only once the task exists, so a
	// failed write does not cost the reader their slot.
	s.limiter.Record(in.Fingerprint, time.Now())
	s.appendAudit(ctx, t.ID, "created", in.Fingerprint, "", domain.TaskStatusPending, "")

	s.logger.Info("task submitted",
		"task_id", t.ID,
		"post_slug", t.PostSlug,
		"kind", string(t.Kind))
	return t, nil
}

// Get retrieves one task by id.
func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

// List retrieves tasks matching the filter along with the total count
// for the same filter, ignoring pagination.
func (s *TaskService) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, int, error) {
	tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.tasks.Count(ctx, store.TaskFilter{
		Status:   filter.Status,
		PostSlug: filter.PostSlug,
	})
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// Approve moves a pending task to approved without dispatching it.
// Approving an already-approved task is a no-op.
func (s *TaskService) Approve(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.transition(ctx, id, "approved", domain.TaskStatusApproved, "")
}

// ApproveAndRun moves a task to running and enqueues it for the
// worker. If the queue rejects the task, the transition is rolled back
// to failed so the task never appears running with no worker activity.
func (s *TaskService) ApproveAndRun(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.startRun(ctx, id, "started")
}

// Retry re-dispatches a failed task. It shares dispatch semantics with
// ApproveAndRun; the compare-and-set increments the attempt count.
func (s *TaskService) Retry(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TaskStatusFailed {
		err := fmt.Errorf("%w: task is %s, only failed tasks can be retried",
			store.ErrConflict, t.Status)
		s.appendAudit(ctx, id, "denied", operatorActor,
			t.Status, domain.TaskStatusRunning, err.Error())
		return nil, err
	}
	return s.startRun(ctx, id, "retried")
}

// Reject moves a task to rejected, a terminal state. Rejecting an
// already-rejected task is a no-op.
func (s *TaskService) Reject(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.transition(ctx, id, "rejected", domain.TaskStatusRejected, "")
}

// Delete removes a task outright. Running tasks cannot be deleted.
func (s *TaskService) Delete(ctx context.Context, id uuid.UUID) error {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		return err
	}
	s.appendAudit(ctx, id, "deleted", operatorActor, t.Status, "", "")
	s.logger.Info("task deleted", "task_id", id)
	return nil
}

// ListRuns retrieves all run records for a task, newest first. The
// task must exist.
func (s *TaskService) ListRuns(ctx context.Context, taskID uuid.UUID) ([]*domain.RunRecord, error) {
	if _, err := s.tasks.GetByID(ctx, taskID); err != nil {
		return nil, err
	}
	return s.runs.ListByTask(ctx, taskID)
}

// ListAudit retrieves the transition history of a task, oldest first.
func (s *TaskService) ListAudit(ctx context.Context, taskID uuid.UUID) ([]*domain.AuditEntry, error) {
	if _, err := s.tasks.GetByID(ctx, taskID); err != nil {
		return nil, err
	}
	return s.audit.ListByTask(ctx, taskID)
}

// transition applies one operator transition via compare-and-set. A
// task already in the target state passes through unchanged. Attempts
// the compare-and-set rejects are audited as "denied" so the history
// records every attempt, not just the ones that took effect.
func (s *TaskService) transition(
	ctx context.Context,
	id uuid.UUID,
	action string,
	target domain.TaskStatus,
	reason string,
) (*domain.Task, error) {
	current, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == target {
		return current, nil
	}

	updated, err := s.tasks.CompareAndSetStatus(
		ctx, id, domain.TransitionSources(target), target, reason)
	if err != nil {
		s.appendAudit(ctx, id, "denied", operatorActor, current.Status, target, err.Error())
		return nil, err
	}
	s.appendAudit(ctx, id, action, operatorActor, current.Status, target, reason)

	s.logger.Info("task transitioned",
		"task_id", id,
		"from", string(current.Status),
		"to", string(target))
	return updated, nil
}

// startRun moves a task to running and hands it to the worker queue.
// Enqueue failures roll the task back to failed atomically.
func (s *TaskService) startRun(ctx context.Context, id uuid.UUID, action string) (*domain.Task, error) {
	current, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.tasks.CompareAndSetStatus(
		ctx, id, domain.TransitionSources(domain.TaskStatusRunning),
		domain.TaskStatusRunning, "")
	if err != nil {
		s.appendAudit(ctx, id, "denied", operatorActor,
			current.Status, domain.TaskStatusRunning, err.Error())
		return nil, err
	}
	s.appendAudit(ctx, id, action, operatorActor, current.Status, domain.TaskStatusRunning, "")

	if err := s.queue.Enqueue(id); err != nil {
		reason := fmt.Sprintf("could not dispatch: %v", err)
		if _, rbErr := s.tasks.CompareAndSetStatus(
			ctx, id,
			[]domain.TaskStatus{domain.TaskStatusRunning},
			domain.TaskStatusFailed, reason,
		); rbErr != nil {
			s.logger.Error("failed to roll back undispatched task",
				"task_id", id, "error", rbErr)
			return nil, fmt.Errorf("enqueue failed and rollback failed: %v (rollback: %w)", err, rbErr)
		}
		s.appendAudit(ctx, id, "failed", operatorActor,
			domain.TaskStatusRunning, domain.TaskStatusFailed, reason)
		s.logger.Warn("task dispatch rejected", "task_id", id, "error", err)
		return nil, fmt.Errorf("%w: %v", store.ErrConflict, err)
	}

	s.logger.Info("task dispatched",
		"task_id", id,
		"attempt", updated.AttemptCount)
	return updated, nil
}

// appendAudit records one transition, logging rather than failing the
// operation when the write errors.
func (s *TaskService) appendAudit(
	ctx context.Context,
	taskID uuid.UUID,
	action, actor string,
	from, to domain.TaskStatus,
	detail string,
) {
	entry := domain.NewAuditEntry(taskID, action, actor, from, to, detail)
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Error("failed to append audit entry",
			"task_id", taskID, "action", action, "error", err)
	}
}
