package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/replyd/replyd/internal/domain"
	"github.com/replyd/replyd/internal/mocks"
	"github.com/replyd/replyd/internal/ratelimit"
	"github.com/replyd/replyd/internal/service"
	"github.com/replyd/replyd/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	router *chi.Mux
	tasks  *mocks.MockTaskStore
	runs   *mocks.MockRunStore
	audit  *mocks.MockAuditStore
	queue  *task.Queue
	svc    *service.TaskService
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &apiFixture{
		tasks: mocks.NewMockTaskStore(),
		runs:  mocks.NewMockRunStore(),
		audit: mocks.NewMockAuditStore(),
		queue: task.NewQueue(8, log),
	}
	f.svc = service.NewTaskService(
		f.tasks, f.runs, f.audit, mocks.NewMockPostStore("hello-world"),
		f.queue, ratelimit.NewLimiter(time.Minute), log)

	handler := NewTaskHandler(f.svc, log)
	f.router = chi.NewRouter()
	f.router.Route("/api/tasks", func(r chi.Router) {
		r.Post("/", handler.SubmitTask)
		r.Get("/", handler.ListTasks)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handler.GetTask)
			r.Delete("/", handler.DeleteTask)
			r.Get("/runs", handler.ListRuns)
			r.Get("/audit", handler.ListAudit)
			r.Post("/approve", handler.ApproveTask)
			r.Post("/approve-run", handler.ApproveAndRunTask)
			r.Post("/reject", handler.RejectTask)
			r.Post("/retry", handler.RetryTask)
		})
	})
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.7:51234"
	req.Header.Set("User-Agent", "test-agent")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) submitTask(t *testing.T) TaskResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/tasks", SubmitTaskRequest{
		PostSlug: "hello-world",
		Kind:     "comment",
		Body:     "nice writeup",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestSubmitTaskEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.submitTask(t)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "hello-world", resp.PostSlug)
	assert.Equal(t, 0, resp.AttemptCount)
}

func TestSubmitTaskValidation(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name string
		req  SubmitTaskRequest
		want int
	}{
		{
			name: "missing body",
			req:  SubmitTaskRequest{PostSlug: "hello-world", Kind: "comment"},
			want: http.StatusBadRequest,
		},
		{
			name: "bad kind",
			req:  SubmitTaskRequest{PostSlug: "hello-world", Kind: "rant", Body: "x"},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown post",
			req:  SubmitTaskRequest{PostSlug: "missing", Kind: "comment", Body: "x"},
			want: http.StatusNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/tasks", tc.req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestSubmitTaskRateLimited(t *testing.T) {
	f := newAPIFixture(t)

	f.submitTask(t)

	rec := f.do(t, http.MethodPost, "/api/tasks", SubmitTaskRequest{
		PostSlug: "hello-world",
		Kind:     "comment",
		Body:     "again so soon",
	})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestGetTaskEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	created := f.submitTask(t)

	rec := f.do(t, http.MethodGet, "/api/tasks/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, created.ID, resp.ID)

	rec = f.do(t, http.MethodGet, "/api/tasks/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/tasks/00000000-0000-0000-0000-000000000001", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTasksEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.submitTask(t)

	rec := f.do(t, http.MethodGet, "/api/tasks?status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TaskListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Tasks, 1)
	assert.Equal(t, 1, resp.Total)

	rec = f.do(t, http.MethodGet, "/api/tasks?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/tasks?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApproveEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	created := f.submitTask(t)

	rec := f.do(t, http.MethodPost, "/api/tasks/"+created.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "approved", resp.Status)

	rec = f.do(t, http.MethodPost, "/api/tasks/"+created.ID+"/approve-run", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, 1, resp.AttemptCount)

	// Dispatching a running task conflicts.
	rec = f.do(t, http.MethodPost, "/api/tasks/"+created.ID+"/approve-run", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRejectEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	created := f.submitTask(t)

	rec := f.do(t, http.MethodPost, "/api/tasks/"+created.ID+"/reject", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rejected", resp.Status)
}

func TestRetryEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	created := f.submitTask(t)

	// Not failed yet.
	rec := f.do(t, http.MethodPost, "/api/tasks/"+created.ID+"/retry", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/tasks/"+created.ID+"/approve-run", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	id := mustUUID(t, resp.ID)

	_, err := f.tasks.CompareAndSetStatus(context.Background(), id,
		[]domain.TaskStatus{domain.TaskStatusRunning},
		domain.TaskStatusFailed, "timed out")
	require.NoError(t, err)

	rec = f.do(t, http.MethodPost, "/api/tasks/"+created.ID+"/retry", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, 2, resp.AttemptCount)
}

func TestDeleteEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	created := f.submitTask(t)

	rec := f.do(t, http.MethodDelete, "/api/tasks/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/tasks/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteRunningEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	created := f.submitTask(t)

	rec := f.do(t, http.MethodPost, "/api/tasks/"+created.ID+"/approve-run", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/tasks/"+created.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListRunsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	created := f.submitTask(t)
	id := mustUUID(t, created.ID)

	run := domain.NewRunRecord(id, "responder")
	run.Complete(domain.RunStatusSuccess)
	run.FinalReply = "hello there"
	require.NoError(t, f.runs.Create(context.Background(), run))

	rec := f.do(t, http.MethodGet, "/api/tasks/"+created.ID+"/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "hello there", resp[0].FinalReply)
	assert.Equal(t, "success", resp[0].Status)
}

func TestListAuditEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	created := f.submitTask(t)

	rec := f.do(t, http.MethodPost, "/api/tasks/"+created.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/tasks/"+created.ID+"/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []AuditEntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "created", resp[0].Action)
	assert.Equal(t, "approved", resp[1].Action)
}

func TestFingerprintFromRequest(t *testing.T) {
	base := httptest.NewRequest(http.MethodPost, "/api/tasks", nil)
	base.RemoteAddr = "203.0.113.7:51234"
	base.Header.Set("User-Agent", "browser-a")

	samePort := httptest.NewRequest(http.MethodPost, "/api/tasks", nil)
	samePort.RemoteAddr = "203.0.113.7:60000"
	samePort.Header.Set("User-Agent", "browser-a")

	// Ephemeral port changes must not change the fingerprint.
	assert.Equal(t, fingerprintFromRequest(base), fingerprintFromRequest(samePort))

	otherAgent := httptest.NewRequest(http.MethodPost, "/api/tasks", nil)
	otherAgent.RemoteAddr = "203.0.113.7:51234"
	otherAgent.Header.Set("User-Agent", "browser-b")
	assert.NotEqual(t, fingerprintFromRequest(base), fingerprintFromRequest(otherAgent))

	forwarded := httptest.NewRequest(http.MethodPost, "/api/tasks", nil)
	forwarded.RemoteAddr = "10.0.0.1:1234"
	forwarded.Header.Set("X-Forwarded-For", "198.51.100.9")
	forwarded.Header.Set("User-Agent", "browser-a")
	assert.NotEqual(t, fingerprintFromRequest(base), fingerprintFromRequest(forwarded))
}

func mustUUID(t *testing.T, raw string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(raw)
	require.NoError(t, err)
	return id
}
