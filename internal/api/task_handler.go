// Package api provides HTTP handlers for the API.
package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/replyd/replyd/internal/api/shared"
	"github.com/replyd/replyd/internal/domain"
	"github.com/replyd/replyd/internal/platform/logger"
	"github.com/replyd/replyd/internal/service"
	"github.com/replyd/replyd/internal/store"
)

// maxListLimit caps how many tasks one list request can return.
const maxListLimit = 200

// TaskHandler handles task submission and lifecycle HTTP requests.
type TaskHandler struct {
	service *service.TaskService
	logger  *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(svc *service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		service: svc,
		logger:  logger.With(slog.String("component", "task_handler")),
	}
}

// SubmitTask handles POST /api/tasks requests.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req SubmitTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Debug("failed to decode submit request", "error", err)
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		log.Debug("submit request failed validation", "error", err)
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	created, err := h.service.Submit(r.Context(), service.SubmitInput{
		PostSlug:      req.PostSlug,
		Kind:          domain.TaskKind(req.Kind),
		Body:          req.Body,
		QuotedTitle:   req.QuotedTitle,
		QuotedExcerpt: req.QuotedExcerpt,
		Fingerprint:   fingerprintFromRequest(r),
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToResponse(created))
}

// GetTask handles GET /api/tasks/{id} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(t))
}

// ListTasks handles GET /api/tasks requests with optional status,
// post, limit, and offset query parameters.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter := store.TaskFilter{
		PostSlug: r.URL.Query().Get("post"),
		Limit:    50,
	}

	if status := r.URL.Query().Get("status"); status != "" {
		if !domain.IsValidTaskStatus(domain.TaskStatus(status)) {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid status filter")
			return
		}
		filter.Status = domain.TaskStatus(status)
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid offset")
			return
		}
		filter.Offset = offset
	}

	tasks, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	items := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		items[i] = taskToResponse(t)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{
		Tasks:  items,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// ListRuns handles GET /api/tasks/{id}/runs requests.
func (h *TaskHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	runs, err := h.service.ListRuns(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	items := make([]RunResponse, len(runs))
	for i, run := range runs {
		items[i] = runToResponse(run)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, items)
}

// ListAudit handles GET /api/tasks/{id}/audit requests.
func (h *TaskHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	entries, err := h.service.ListAudit(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	items := make([]AuditEntryResponse, len(entries))
	for i, entry := range entries {
		items[i] = auditToResponse(entry)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, items)
}

// ApproveTask handles POST /api/tasks/{id}/approve requests.
func (h *TaskHandler) ApproveTask(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Approve)
}

// ApproveAndRunTask handles POST /api/tasks/{id}/approve-run requests.
func (h *TaskHandler) ApproveAndRunTask(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ApproveAndRun)
}

// RejectTask handles POST /api/tasks/{id}/reject requests.
func (h *TaskHandler) RejectTask(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Reject)
}

// RetryTask handles POST /api/tasks/{id}/retry requests.
func (h *TaskHandler) RetryTask(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Retry)
}

// DeleteTask handles DELETE /api/tasks/{id} requests.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// transition runs one operator transition and writes the updated task.
func (h *TaskHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	apply func(context.Context, uuid.UUID) (*domain.Task, error),
) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	updated, err := apply(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(updated))
}

// taskID parses the {id} route parameter, writing a 400 on failure.
func (h *TaskHandler) taskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return uuid.Nil, false
	}
	return id, true
}

// fingerprintFromRequest derives a stable submitter fingerprint from
// the client address and user agent. Behind a proxy the
// X-Forwarded-For header takes precedence over the socket address.
func fingerprintFromRequest(r *http.Request) string {
	host := r.Header.Get("X-Forwarded-For")
	if host == "" {
		var err error
		host, _, err = net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
	}

	sum := sha256.Sum256([]byte(host + "|" + r.UserAgent()))
	return hex.EncodeToString(sum[:16])
}
