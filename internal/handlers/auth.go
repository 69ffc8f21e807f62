package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/taskhub/apiserver/internal/services"
	"github.com/taskhub/apiserver/internal/tokens"
	"github.com/taskhub/apiserver/types"
)

// AccessVerifier checks access tokens.
type AccessVerifier interface {
	ParseAccess(token string) (*tokens.Claims, error)
}

// AuthHandler provides registration, login and session endpoints.
type AuthHandler struct {
	auth         *services.AuthService
	registration *services.RegistrationService
	log          *zap.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(auth *services.AuthService, registration *services.RegistrationService, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{auth: auth, registration: registration, log: log}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/refresh", handler.Refresh)
	r.With(authMiddleware).Get("/me", handler.Me)
}

// RequireAuth verifies the bearer access token and resolves the caller. The
// actor is stored in the request context for the downstream handlers.
func RequireAuth(verifier AccessVerifier, auth *services.AuthService, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			claims, err := verifier.ParseAccess(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			actor, err := auth.Identify(r.Context(), userID)
			if err != nil {
				respondError(w, r, log, err, "failed to authenticate")
				return
			}
			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
		})
	}
}

// Register submits a signup. Immediate mode answers 201 with tokens,
// approval mode answers 202 with the queued registration.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	sub, closeImage, err := parseSubmission(w, r)
	defer closeImage()
	if err != nil {
		respondError(w, r, h.log, err, "invalid request")
		return
	}

	result, err := h.registration.Submit(r.Context(), sub)
	if err != nil {
		respondError(w, r, h.log, err, "failed to register")
		return
	}

	status := http.StatusCreated
	if result.Status == types.StatusPending {
		status = http.StatusAccepted
	}
	writeJSON(w, status, result)
}

// Login verifies credentials and returns a token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pair, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, r, h.log, err, "failed to authenticate")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// Refresh rotates a refresh token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Refresh) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid input", Fields: map[string]string{"refresh": "this field is required"}})
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.Refresh)
	if err != nil {
		respondError(w, r, h.log, err, "failed to refresh token")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.auth.Me(r.Context(), actor)
	if err != nil {
		respondError(w, r, h.log, err, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{User: user, Role: actor.Role})
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

type MeResponse struct {
	types.User
	Role types.Role `json:"role"`
}

// parseSubmission reads a signup from a multipart form, which may carry an
// image, or from a JSON body.
func parseSubmission(w http.ResponseWriter, r *http.Request) (services.Submission, func(), error) {
	noop := func() {}
	if !isMultipart(r) {
		var req RegisterRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return services.Submission{}, noop, services.Validation(err.Error())
		}
		return services.Submission{
			Email:    req.Email,
			Password: req.Password,
			Name:     req.Name,
			Location: req.Location,
		}, noop, nil
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return services.Submission{}, noop, services.Validation("invalid multipart form")
	}
	image, closeImage, err := imageUpload(r.MultipartForm)
	if err != nil {
		return services.Submission{}, closeImage, err
	}
	return services.Submission{
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
		Name:     r.FormValue("name"),
		Location: r.FormValue("location"),
		Image:    image,
	}, closeImage, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
