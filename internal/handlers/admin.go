package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/taskhub/apiserver/config"
	"github.com/taskhub/apiserver/internal/services"
	"github.com/taskhub/apiserver/types"
)

// AdminHandler serves account administration and the approval queue.
// Role checks happen in the services so that every entry point shares them.
type AdminHandler struct {
	accounts     *services.AccountService
	registration *services.RegistrationService
	log          *zap.Logger
}

func NewAdminHandler(accounts *services.AccountService, registration *services.RegistrationService, log *zap.Logger) *AdminHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminHandler{accounts: accounts, registration: registration, log: log}
}

// AdminRouter registers admin routes. The registration queue is only
// exposed in approval mode.
func AdminRouter(r chi.Router, handler *AdminHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Route("/users", func(r chi.Router) {
		r.Get("/", handler.ListUsers)
		r.Route("/{userID}", func(r chi.Router) {
			r.Put("/role", handler.SetRole)
			r.Put("/active", handler.SetActive)
			r.Delete("/", handler.DeleteUser)
		})
	})
	if handler.registration != nil && handler.registration.Mode() == config.RegistrationApproval {
		r.Route("/registrations", func(r chi.Router) {
			r.Get("/", handler.ListRegistrations)
			r.Put("/{registrationID}", handler.DecideRegistration)
		})
	}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	users, err := h.accounts.ListUsers(r.Context(), actor)
	if err != nil {
		respondError(w, r, h.log, err, "failed to list users")
		return
	}
	if users == nil {
		users = []types.UserSummary{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req RoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	role, err := types.ParseRole(req.Role)
	if err != nil {
		respondError(w, r, h.log, services.FieldError("role", "role must be user, admin or superadmin"), "invalid request")
		return
	}
	if err := h.accounts.SetRole(r.Context(), actor, id, role); err != nil {
		respondError(w, r, h.log, err, "failed to update role")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Role updated successfully"})
}

func (h *AdminHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req ActiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IsActive == nil {
		respondError(w, r, h.log, services.FieldError("is_active", "this field is required"), "invalid request")
		return
	}
	if err := h.accounts.SetActive(r.Context(), actor, id, *req.IsActive); err != nil {
		respondError(w, r, h.log, err, "failed to update account")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Account updated successfully"})
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.accounts.DeleteUser(r.Context(), actor, id); err != nil {
		respondError(w, r, h.log, err, "failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	pending, err := h.registration.ListPending(r.Context(), actor)
	if err != nil {
		respondError(w, r, h.log, err, "failed to list registrations")
		return
	}
	if pending == nil {
		pending = []types.PendingRegistration{}
	}
	writeJSON(w, http.StatusOK, pending)
}

func (h *AdminHandler) DecideRegistration(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "registrationID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req DecisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.registration.Decide(r.Context(), actor, id, services.RegistrationDecision{
		Status: types.ProfileStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		Role:   types.Role(strings.ToLower(strings.TrimSpace(req.Role))),
	})
	if err != nil {
		respondError(w, r, h.log, err, "failed to decide registration")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type RoleRequest struct {
	Role string `json:"role"`
}

type ActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

type DecisionRequest struct {
	Status string `json:"status"`
	Role   string `json:"role"`
}
