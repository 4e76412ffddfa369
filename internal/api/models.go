package api

import (
	"time"

	"github.com/replyd/replyd/internal/domain"
)

// SubmitTaskRequest is the request body for submitting a task.
type SubmitTaskRequest struct {
	PostSlug      string `json:"post_slug" validate:"required"`
	Kind          string `json:"kind" validate:"required,oneof=comment question correction"`
	Body          string `json:"body" validate:"required,max=4000"`
	QuotedTitle   string `json:"quoted_title"`
	QuotedExcerpt string `json:"quoted_excerpt"`
}

// TaskResponse represents the response data for a task.
type TaskResponse struct {
	ID            string     `json:"id"`
	PostSlug      string     `json:"post_slug"`
	Kind          string     `json:"kind"`
	Body          string     `json:"body"`
	QuotedTitle   string     `json:"quoted_title,omitempty"`
	QuotedExcerpt string     `json:"quoted_excerpt,omitempty"`
	Status        string     `json:"status"`
	AttemptCount  int        `json:"attempt_count"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// TaskListResponse wraps a page of tasks with the unpaginated total.
type TaskListResponse struct {
	Tasks  []TaskResponse `json:"tasks"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// RunResponse represents the response data for a run record.
type RunResponse struct {
	ID            string     `json:"id"`
	TaskID        string     `json:"task_id"`
	Status        string     `json:"status"`
	Program       string     `json:"program"`
	ExitCode      *int       `json:"exit_code,omitempty"`
	FinalReply    string     `json:"final_reply_markdown,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// AuditEntryResponse represents one recorded task transition.
type AuditEntryResponse struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:            t.ID.String(),
		PostSlug:      t.PostSlug,
		Kind:          string(t.Kind),
		Body:          t.Body,
		QuotedTitle:   t.QuotedTitle,
		QuotedExcerpt: t.QuotedExcerpt,
		Status:        string(t.Status),
		AttemptCount:  t.AttemptCount,
		FailureReason: t.FailureReason,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		ApprovedAt:    t.ApprovedAt,
		CompletedAt:   t.CompletedAt,
	}
}

func runToResponse(r *domain.RunRecord) RunResponse {
	return RunResponse{
		ID:            r.ID.String(),
		TaskID:        r.TaskID.String(),
		Status:        string(r.Status),
		Program:       r.Program,
		ExitCode:      r.ExitCode,
		FinalReply:    r.FinalReply,
		FailureReason: r.FailureReason,
		StartedAt:     r.StartedAt,
		UpdatedAt:     r.UpdatedAt,
		CompletedAt:   r.CompletedAt,
	}
}

func auditToResponse(e *domain.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:         e.ID.String(),
		TaskID:     e.TaskID.String(),
		Action:     e.Action,
		Actor:      e.Actor,
		FromStatus: string(e.FromStatus),
		ToStatus:   string(e.ToStatus),
		Detail:     e.Detail,
		CreatedAt:  e.CreatedAt,
	}
}
