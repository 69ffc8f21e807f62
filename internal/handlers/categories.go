package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/taskhub/apiserver/internal/services"
)

// CategoryHandler provides HTTP handlers for categories.
type CategoryHandler struct {
	categories *services.CategoryService
	log        *zap.Logger
}

func NewCategoryHandler(categories *services.CategoryService, log *zap.Logger) *CategoryHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CategoryHandler{categories: categories, log: log}
}

// CategoryRouter registers category routes. All of them require auth.
func CategoryRouter(r chi.Router, handler *CategoryHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Get("/", handler.ListCategories)
	r.Post("/", handler.CreateCategory)
	r.Route("/{categoryID}", func(r chi.Router) {
		r.Get("/", handler.GetCategory)
		r.Put("/", handler.UpdateCategory)
		r.Delete("/", handler.DeleteCategory)
	})
}

func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	views, err := h.categories.List(r.Context(), actor)
	if err != nil {
		respondError(w, r, h.log, err, "failed to list categories")
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *CategoryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "categoryID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := h.categories.Get(r.Context(), actor, id)
	if err != nil {
		respondError(w, r, h.log, err, "failed to fetch category")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req CategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := h.categories.Create(r.Context(), actor, req.Name)
	if err != nil {
		respondError(w, r, h.log, err, "failed to create category")
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "categoryID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req CategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := h.categories.Update(r.Context(), actor, id, req.Name)
	if err != nil {
		respondError(w, r, h.log, err, "failed to update category")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "categoryID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.categories.Delete(r.Context(), actor, id); err != nil {
		respondError(w, r, h.log, err, "failed to delete category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type CategoryRequest struct {
	Name string `json:"name"`
}
