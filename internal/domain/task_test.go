package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	task, err := NewTask("intro-to-sourdough", TaskKindComment, "Great post!", "", "", "fp-1")
	require.NoError(t, err)

	assert.NotEqual(t, task.ID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, TaskStatusPending, task.Status)
	assert.Equal(t, 0, task.AttemptCount)
	assert.False(t, task.CreatedAt.IsZero())
	assert.Nil(t, task.ApprovedAt)
	assert.Nil(t, task.CompletedAt)
}

func TestTaskValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr error
	}{
		{
			name:    "valid task",
			mutate:  func(*Task) {},
			wantErr: nil,
		},
		{
			name:    "empty post slug",
			mutate:  func(task *Task) { task.PostSlug = "" },
			wantErr: ErrEmptyPostSlug,
		},
		{
			name:    "unknown kind",
			mutate:  func(task *Task) { task.Kind = "rant" },
			wantErr: ErrInvalidTaskKind,
		},
		{
			name:    "empty body",
			mutate:  func(task *Task) { task.Body = "" },
			wantErr: ErrEmptyBody,
		},
		{
			name:    "body too long",
			mutate:  func(task *Task) { task.Body = strings.Repeat("a", MaxBodyLength+1) },
			wantErr: ErrBodyTooLong,
		},
		{
			name:    "empty fingerprint",
			mutate:  func(task *Task) { task.Fingerprint = "" },
			wantErr: ErrEmptyFingerprint,
		},
		{
			name:    "bad status",
			mutate:  func(task *Task) { task.Status = "bogus" },
			wantErr: ErrInvalidTaskStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := NewTask("slug", TaskKindQuestion, "why?", "", "", "fp")
			require.NoError(t, err)

			tt.mutate(task)
			err = task.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from    TaskStatus
		to      TaskStatus
		allowed bool
	}{
		{TaskStatusPending, TaskStatusApproved, true},
		{TaskStatusPending, TaskStatusRunning, true},
		{TaskStatusPending, TaskStatusRejected, true},
		{TaskStatusPending, TaskStatusDone, false},
		{TaskStatusApproved, TaskStatusRunning, true},
		{TaskStatusApproved, TaskStatusRejected, false},
		{TaskStatusRunning, TaskStatusDone, true},
		{TaskStatusRunning, TaskStatusFailed, true},
		{TaskStatusRunning, TaskStatusPending, false},
		{TaskStatusFailed, TaskStatusRunning, true},
		{TaskStatusFailed, TaskStatusRejected, true},
		{TaskStatusFailed, TaskStatusApproved, false},
		// Terminal states have no outgoing edges.
		{TaskStatusDone, TaskStatusRunning, false},
		{TaskStatusDone, TaskStatusFailed, false},
		{TaskStatusRejected, TaskStatusRunning, false},
		{TaskStatusRejected, TaskStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			task := &Task{Status: tt.from}
			assert.Equal(t, tt.allowed, task.CanTransitionTo(tt.to))
		})
	}
}

func TestTransitionSources(t *testing.T) {
	sources := TransitionSources(TaskStatusRunning)
	assert.ElementsMatch(t,
		[]TaskStatus{TaskStatusPending, TaskStatusApproved, TaskStatusFailed},
		sources)

	sources = TransitionSources(TaskStatusRejected)
	assert.ElementsMatch(t,
		[]TaskStatus{TaskStatusPending, TaskStatusFailed},
		sources)

	// Nothing leads back to pending.
	assert.Empty(t, TransitionSources(TaskStatusPending))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, (&Task{Status: TaskStatusDone}).IsTerminal())
	assert.True(t, (&Task{Status: TaskStatusRejected}).IsTerminal())
	assert.False(t, (&Task{Status: TaskStatusPending}).IsTerminal())
	assert.False(t, (&Task{Status: TaskStatusFailed}).IsTerminal())
	assert.False(t, (&Task{Status: TaskStatusRunning}).IsTerminal())
}

func TestRunRecordComplete(t *testing.T) {
	run := NewRunRecord(mustNewTask(t).ID, "responder")
	require.Equal(t, RunStatusRunning, run.Status)
	require.Nil(t, run.CompletedAt)

	run.Complete(RunStatusSuccess)
	assert.Equal(t, RunStatusSuccess, run.Status)
	require.NotNil(t, run.CompletedAt)
	assert.False(t, run.CompletedAt.IsZero())
}

func mustNewTask(t *testing.T) *Task {
	t.Helper()
	task, err := NewTask("slug", TaskKindComment, "body", "", "", "fp")
	require.NoError(t, err)
	return task
}
