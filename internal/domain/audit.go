package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry is an immutable record of one state-transition attempt on
// a task. Exactly one entry is written per attempt, whether the
// transition succeeded or was rejected, and entries are never mutated
// or deleted.
type AuditEntry struct {
	ID         uuid.UUID  `json:"id"`
	TaskID     uuid.UUID  `json:"task_id"`
	Action     string     `json:"action"`
	Actor      string     `json:"actor"`
	FromStatus TaskStatus `json:"from_status"`
	ToStatus   TaskStatus `json:"to_status"`
	Detail     string     `json:"detail,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewAuditEntry creates an AuditEntry for the given task and action.
func NewAuditEntry(taskID uuid.UUID, action, actor string, from, to TaskStatus, detail string) *AuditEntry {
	return &AuditEntry{
		ID:         uuid.New(),
		TaskID:     taskID,
		Action:     action,
		Actor:      actor,
		FromStatus: from,
		ToStatus:   to,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
}
