package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the state of one subprocess execution attempt.
type RunStatus string

// Possible run status values
const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// RunRecord represents one execution attempt of the external responder
// program for a task. It is owned by the worker that created it and
// becomes a read-only artifact once CompletedAt is set.
type RunRecord struct {
	ID            uuid.UUID  `json:"id"`
	TaskID        uuid.UUID  `json:"task_id"`
	Program       string     `json:"program"`
	Status        RunStatus  `json:"status"`
	ExitCode      *int       `json:"exit_code,omitempty"`
	FinalReply    string     `json:"final_reply_markdown,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// NewRunRecord creates a RunRecord in running state for the given task.
func NewRunRecord(taskID uuid.UUID, program string) *RunRecord {
	now := time.Now().UTC()
	return &RunRecord{
		ID:        uuid.New(),
		TaskID:    taskID,
		Program:   program,
		Status:    RunStatusRunning,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Complete marks the run finished with the given status. The record
// must not be mutated afterwards.
func (r *RunRecord) Complete(status RunStatus) {
	now := time.Now().UTC()
	r.Status = status
	r.UpdatedAt = now
	r.CompletedAt = &now
}

// Validate checks if the RunRecord has valid data.
func (r *RunRecord) Validate() error {
	if !isValidRunStatus(r.Status) {
		return ErrInvalidRunStatus
	}
	return nil
}

// isValidRunStatus checks if the given status is a valid RunStatus.
func isValidRunStatus(status RunStatus) bool {
	switch status {
	case RunStatusRunning, RunStatusSuccess, RunStatusFailed:
		return true
	default:
		return false
	}
}
