package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the position of a task in the approval workflow.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending  TaskStatus = "pending"
	TaskStatusApproved TaskStatus = "approved"
	TaskStatusRunning  TaskStatus = "running"
	TaskStatusDone     TaskStatus = "done"
	TaskStatusFailed   TaskStatus = "failed"
	TaskStatusRejected TaskStatus = "rejected"
)

// TaskKind classifies a submitted entry.
type TaskKind string

// Possible task kinds
const (
	TaskKindComment    TaskKind = "comment"
	TaskKindQuestion   TaskKind = "question"
	TaskKindCorrection TaskKind = "correction"
)

// MaxBodyLength is the maximum accepted length of a task body in bytes.
const MaxBodyLength = 4000

// transitions defines the edges of the task state machine. A status
// missing from the map is terminal.
var transitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:  {TaskStatusApproved, TaskStatusRunning, TaskStatusRejected},
	TaskStatusApproved: {TaskStatusRunning},
	TaskStatusRunning:  {TaskStatusDone, TaskStatusFailed},
	TaskStatusFailed:   {TaskStatusRunning, TaskStatusRejected},
}

// Task represents one reader-submitted entry awaiting an automated
// reply. It tracks the original content, the approval state, and the
// outcome of worker processing.
type Task struct {
	ID            uuid.UUID  `json:"id"`
	PostSlug      string     `json:"post_slug"`
	Kind          TaskKind   `json:"kind"`
	Body          string     `json:"body"`
	QuotedTitle   string     `json:"quoted_title,omitempty"`
	QuotedExcerpt string     `json:"quoted_excerpt,omitempty"`
	Fingerprint   string     `json:"-"`
	Status        TaskStatus `json:"status"`
	AttemptCount  int        `json:"attempt_count"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// NewTask creates a new Task in pending state with a fresh UUID and
// current timestamps. Returns an error if validation fails.
func NewTask(postSlug string, kind TaskKind, body, quotedTitle, quotedExcerpt, fingerprint string) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:            uuid.New(),
		PostSlug:      postSlug,
		Kind:          kind,
		Body:          body,
		QuotedTitle:   quotedTitle,
		QuotedExcerpt: quotedExcerpt,
		Fingerprint:   fingerprint,
		Status:        TaskStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.PostSlug == "" {
		return ErrEmptyPostSlug
	}

	if !IsValidTaskKind(t.Kind) {
		return ErrInvalidTaskKind
	}

	if t.Body == "" {
		return ErrEmptyBody
	}

	if len(t.Body) > MaxBodyLength {
		return ErrBodyTooLong
	}

	if t.Fingerprint == "" {
		return ErrEmptyFingerprint
	}

	if !IsValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	return nil
}

// IsTerminal reports whether the task is in a terminal status.
// Terminal tasks are never re-entered by automated processing.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusDone || t.Status == TaskStatusRejected
}

// CanTransitionTo reports whether target is reachable from the task's
// current status along a state-machine edge.
func (t *Task) CanTransitionTo(target TaskStatus) bool {
	for _, next := range transitions[t.Status] {
		if next == target {
			return true
		}
	}
	return false
}

// TransitionSources returns the set of statuses from which target is
// reachable. It is used as the compare-and-set precondition when
// applying a transition.
func TransitionSources(target TaskStatus) []TaskStatus {
	var sources []TaskStatus
	for from, nexts := range transitions {
		for _, next := range nexts {
			if next == target {
				sources = append(sources, from)
			}
		}
	}
	return sources
}

// IsValidTaskStatus checks if the given status is a valid TaskStatus.
func IsValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusApproved, TaskStatusRunning,
		TaskStatusDone, TaskStatusFailed, TaskStatusRejected:
		return true
	default:
		return false
	}
}

// IsValidTaskKind checks if the given kind is a valid TaskKind.
func IsValidTaskKind(kind TaskKind) bool {
	switch kind {
	case TaskKindComment, TaskKindQuestion, TaskKindCorrection:
		return true
	default:
		return false
	}
}
