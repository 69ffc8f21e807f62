package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/taskhub/apiserver/internal/services"
	"github.com/taskhub/apiserver/types"
)

// TaskHandler provides HTTP handlers for tasks.
type TaskHandler struct {
	tasks *services.TaskService
	log   *zap.Logger
}

func NewTaskHandler(tasks *services.TaskService, log *zap.Logger) *TaskHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskHandler{tasks: tasks, log: log}
}

// TaskRouter registers task routes. All of them require auth.
func TaskRouter(r chi.Router, handler *TaskHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Get("/", handler.ListTasks)
	r.Post("/", handler.CreateTask)
	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", handler.GetTask)
		r.Put("/", handler.UpdateTask)
		r.Delete("/", handler.DeleteTask)
	})
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := parseDate(r.URL.Query().Get("start_date"), false)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid input", Fields: map[string]string{"start_date": err.Error()}})
		return
	}
	to, err := parseDate(r.URL.Query().Get("end_date"), true)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid input", Fields: map[string]string{"end_date": err.Error()}})
		return
	}

	items, total, err := h.tasks.List(r.Context(), actor, services.TaskQuery{
		DueFrom: from,
		DueTo:   to,
		Offset:  offset,
		Limit:   limit,
	})
	if err != nil {
		respondError(w, r, h.log, err, "failed to list tasks")
		return
	}
	if items == nil {
		items = []types.Task{}
	}
	writeJSON(w, http.StatusOK, TaskListResponse{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "taskID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := h.tasks.Get(r.Context(), actor, id)
	if err != nil {
		respondError(w, r, h.log, err, "failed to fetch task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req TaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	due, err := req.dueDate()
	if err != nil {
		respondError(w, r, h.log, err, "invalid request")
		return
	}
	input := services.TaskInput{
		Description: req.Description,
		DueDate:     due,
		CategoryID:  req.CategoryID,
	}
	if req.Name != nil {
		input.Name = *req.Name
	}
	if req.IsCompleted != nil {
		input.IsCompleted = *req.IsCompleted
	}

	task, err := h.tasks.Create(r.Context(), actor, input)
	if err != nil {
		respondError(w, r, h.log, err, "failed to create task")
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// UpdateTask applies a partial update; omitted fields keep their value.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "taskID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req TaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	due, err := req.dueDate()
	if err != nil {
		respondError(w, r, h.log, err, "invalid request")
		return
	}

	task, err := h.tasks.Update(r.Context(), actor, id, services.TaskPatch{
		Name:        req.Name,
		Description: req.Description,
		DueDate:     due,
		IsCompleted: req.IsCompleted,
		CategoryID:  req.CategoryID,
		UserID:      req.UserID,
	})
	if err != nil {
		respondError(w, r, h.log, err, "failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "taskID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.tasks.Delete(r.Context(), actor, id); err != nil {
		respondError(w, r, h.log, err, "failed to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TaskRequest is the create and update payload.
type TaskRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	DueDate     *string `json:"due_date"`
	IsCompleted *bool   `json:"is_completed"`
	CategoryID  *int    `json:"category_id"`
	UserID      *int    `json:"user_id"`
}

func (req TaskRequest) dueDate() (*time.Time, error) {
	if req.DueDate == nil {
		return nil, nil
	}
	due, err := parseDate(*req.DueDate, false)
	if err != nil {
		return nil, services.FieldError("due_date", err.Error())
	}
	return due, nil
}

// TaskListResponse is the paginated list response payload.
type TaskListResponse struct {
	Items []types.Task `json:"items"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Total int          `json:"total"`
}
