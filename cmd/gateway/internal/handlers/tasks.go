package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/lumenhq/taskagent/internal/auth"
	"github.com/lumenhq/taskagent/internal/tasks"
)

// TasksHandler exposes the plain CRUD surface over task records. It shares
// the repository with the tool registry, so the same ownership scoping
// applies on both paths.
type TasksHandler struct {
	repo   *tasks.Repository
	logger *zap.Logger
}

// NewTasksHandler creates a tasks handler.
func NewTasksHandler(repo *tasks.Repository, logger *zap.Logger) *TasksHandler {
	return &TasksHandler{repo: repo, logger: logger}
}

// CreateTaskRequest is the task creation payload.
type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
}

// List handles GET /api/v1/tasks.
func (h *TasksHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		sendError(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	list, err := h.repo.List(r.Context(), principal.UserID)
	if err != nil {
		h.logger.Error("Failed to list tasks", zap.Error(err))
		sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// Create handles POST /api/v1/tasks.
func (h *TasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		sendError(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		sendError(w, "Title is required", http.StatusBadRequest)
		return
	}

	task, err := h.repo.Create(r.Context(), principal.UserID, req.Title, req.Description)
	if err != nil {
		h.logger.Error("Failed to create task", zap.Error(err))
		sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// Get handles GET /api/v1/tasks/{id}.
func (h *TasksHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.taskRequest(w, r)
	if !ok {
		return
	}

	task, err := h.repo.Get(r.Context(), principal.UserID, id)
	if err != nil {
		h.taskError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Update handles PATCH /api/v1/tasks/{id}.
func (h *TasksHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.taskRequest(w, r)
	if !ok {
		return
	}

	var update tasks.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	task, err := h.repo.Apply(r.Context(), principal.UserID, id, update)
	if err != nil {
		h.taskError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Toggle handles PATCH /api/v1/tasks/{id}/toggle.
func (h *TasksHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.taskRequest(w, r)
	if !ok {
		return
	}

	task, err := h.repo.Toggle(r.Context(), principal.UserID, id)
	if err != nil {
		h.taskError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Delete handles DELETE /api/v1/tasks/{id}.
func (h *TasksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.taskRequest(w, r)
	if !ok {
		return
	}

	deleted, err := h.repo.Delete(r.Context(), principal.UserID, id)
	if err != nil {
		h.logger.Error("Failed to delete task", zap.Error(err))
		sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !deleted {
		sendError(w, "Task not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TasksHandler) taskRequest(w http.ResponseWriter, r *http.Request) (*auth.Principal, int64, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		sendError(w, "Not authenticated", http.StatusUnauthorized)
		return nil, 0, false
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		sendError(w, "Invalid task id", http.StatusBadRequest)
		return nil, 0, false
	}

	return principal, id, true
}

func (h *TasksHandler) taskError(w http.ResponseWriter, err error) {
	if errors.Is(err, tasks.ErrNotFound) {
		sendError(w, "Task not found", http.StatusNotFound)
		return
	}
	h.logger.Error("Task operation failed", zap.Error(err))
	sendError(w, "Internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
