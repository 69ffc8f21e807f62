package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/taskhub/apiserver/internal/services"
)

// PasswordHandler serves the reset and change flows.
type PasswordHandler struct {
	recovery *services.RecoveryService
	log      *zap.Logger
}

func NewPasswordHandler(recovery *services.RecoveryService, log *zap.Logger) *PasswordHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PasswordHandler{recovery: recovery, log: log}
}

// PasswordRouter registers password routes on the given router.
func PasswordRouter(r chi.Router, handler *PasswordHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Post("/forgot", handler.Forgot)
	r.Post("/reset", handler.Reset)
	r.With(authMiddleware).Post("/change", handler.Change)
}

func (h *PasswordHandler) Forgot(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.recovery.Request(r.Context(), req.Email); err != nil {
		respondError(w, r, h.log, err, "failed to send OTP")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "OTP sent to your email"})
}

func (h *PasswordHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.recovery.Verify(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		respondError(w, r, h.log, err, "failed to reset password")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password reset successful"})
}

func (h *PasswordHandler) Change(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.recovery.Change(r.Context(), actor, req.OldPassword, req.NewPassword); err != nil {
		respondError(w, r, h.log, err, "failed to change password")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password updated successfully"})
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}
