package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/replyd/replyd/internal/api"
	"github.com/replyd/replyd/internal/mocks"
	"github.com/replyd/replyd/internal/ratelimit"
	"github.com/replyd/replyd/internal/service"
	"github.com/replyd/replyd/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type okPinger struct{}

func (okPinger) PingContext(ctx context.Context) error { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tasks := mocks.NewMockTaskStore()
	runs := mocks.NewMockRunStore()
	chunks := mocks.NewMockChunkStore()
	audit := mocks.NewMockAuditStore()
	posts := mocks.NewMockPostStore("hello-world")
	queue := task.NewQueue(8, log)

	svc := service.NewTaskService(tasks, runs, audit, posts, queue,
		ratelimit.NewLimiter(time.Minute), log)

	return newRouter(
		api.NewTaskHandler(svc, log),
		api.NewStreamHandler(runs, chunks, 15*time.Second, log),
		okPinger{},
	)
}

func TestRouterHealth(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRouterTaskLifecycle(t *testing.T) {
	router := newTestRouter(t)

	body := `{"post_slug": "hello-world", "kind": "question", "body": "why single flight?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(body))
	req.RemoteAddr = "203.0.113.7:51234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created api.TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tasks/"+created.ID+"/approve", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterUnknownRoute(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterStreamNoRuns(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
