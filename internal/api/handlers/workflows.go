package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/scholarsync/collab-plane/internal/api/middleware"
	"github.com/scholarsync/collab-plane/internal/models"
	"github.com/scholarsync/collab-plane/internal/workflows"
)

// WorkflowHandler handles workflow board HTTP requests.
type WorkflowHandler struct {
	workflows *workflows.Service
	logger    *slog.Logger
}

// NewWorkflowHandler creates a new workflow handler.
func NewWorkflowHandler(svc *workflows.Service, logger *slog.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		workflows: svc,
		logger:    logger,
	}
}

// CreateWorkflowRequest represents the request body for creating a
// workflow board.
type CreateWorkflowRequest struct {
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
}

// Create handles POST /v1/workflows.
func (h *WorkflowHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteUnauthorized(w, "unauthorized")
		return
	}

	var req CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}

	wf, err := h.workflows.Create(r.Context(), req.Name, userID, req.Participants)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, wf)
}

// List handles GET /v1/workflows.
func (h *WorkflowHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteUnauthorized(w, "unauthorized")
		return
	}

	ws, err := h.workflows.List(r.Context(), userID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"workflows": ws})
}

// Get handles GET /v1/workflows/{workflowID}.
func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	workflowID := chi.URLParam(r, "workflowID")

	wf, err := h.workflows.Get(r.Context(), workflowID, userID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, wf)
}

// TaskRequest represents the request body for task upserts.
type TaskRequest struct {
	Title    string            `json:"title"`
	Status   models.TaskStatus `json:"status"`
	Assignee string            `json:"assignee"`
	Comments []models.Comment  `json:"comments"`
}

// CreateTask handles POST /v1/workflows/{workflowID}/tasks - adds a new
// task and fans out a task_added change event.
func (h *WorkflowHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	h.upsertTask(w, r, "")
}

// UpdateTask handles PUT /v1/workflows/{workflowID}/tasks/{taskID} -
// rewrites a task and fans out a task_updated change event.
func (h *WorkflowHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if taskID == "" {
		WriteBadRequest(w, "task id is required")
		return
	}
	h.upsertTask(w, r, taskID)
}

func (h *WorkflowHandler) upsertTask(w http.ResponseWriter, r *http.Request, taskID string) {
	userID := middleware.GetUserID(r.Context())
	workflowID := chi.URLParam(r, "workflowID")

	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Title == "" {
		WriteBadRequest(w, "title is required")
		return
	}

	wf, err := h.workflows.UpdateTask(r.Context(), workflowID, userID, models.Task{
		ID:       taskID,
		Title:    req.Title,
		Status:   req.Status,
		Assignee: req.Assignee,
		Comments: req.Comments,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, wf)
}
