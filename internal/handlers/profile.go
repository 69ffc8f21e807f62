package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/taskhub/apiserver/internal/services"
)

// ProfileHandler serves the caller's own profile.
type ProfileHandler struct {
	profiles *services.ProfileService
	log      *zap.Logger
}

func NewProfileHandler(profiles *services.ProfileService, log *zap.Logger) *ProfileHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileHandler{profiles: profiles, log: log}
}

// ProfileRouter registers profile routes. All of them require auth.
func ProfileRouter(r chi.Router, handler *ProfileHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Get("/", handler.GetProfile)
	r.Put("/", handler.UpdateProfile)
	r.Get("/image", handler.GetImage)
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	details, err := h.profiles.Get(r.Context(), actor)
	if err != nil {
		respondError(w, r, h.log, err, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// UpdateProfile accepts a multipart form (with an optional image) or JSON.
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	update, closeImage, err := parseProfileUpdate(w, r)
	defer closeImage()
	if err != nil {
		respondError(w, r, h.log, err, "invalid request")
		return
	}

	details, err := h.profiles.Update(r.Context(), actor, update)
	if err != nil {
		respondError(w, r, h.log, err, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *ProfileHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	obj, err := h.profiles.Image(r.Context(), actor)
	if err != nil {
		respondError(w, r, h.log, err, "failed to load image")
		return
	}
	defer obj.Body.Close()

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.log.Warn("image stream interrupted", zap.Error(err))
	}
}

type ProfileUpdateRequest struct {
	Name              *string `json:"name"`
	Location          *string `json:"location"`
	DefaultCategoryID *int    `json:"default_category_id"`
}

func parseProfileUpdate(w http.ResponseWriter, r *http.Request) (services.ProfileUpdate, func(), error) {
	noop := func() {}
	if !isMultipart(r) {
		var req ProfileUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return services.ProfileUpdate{}, noop, services.Validation(err.Error())
		}
		return services.ProfileUpdate{
			Name:              req.Name,
			Location:          req.Location,
			DefaultCategoryID: req.DefaultCategoryID,
		}, noop, nil
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return services.ProfileUpdate{}, noop, services.Validation("invalid multipart form")
	}
	var update services.ProfileUpdate
	if name, ok := formValue(r.MultipartForm, "name"); ok {
		update.Name = &name
	}
	if location, ok := formValue(r.MultipartForm, "location"); ok {
		update.Location = &location
	}
	if raw, ok := formValue(r.MultipartForm, "default_category_id"); ok {
		id, err := parseOptionalInt(raw)
		if err != nil {
			return services.ProfileUpdate{}, noop, services.FieldError("default_category_id", "a valid integer is required")
		}
		update.DefaultCategoryID = id
	}
	image, closeImage, err := imageUpload(r.MultipartForm)
	if err != nil {
		return services.ProfileUpdate{}, closeImage, err
	}
	update.Image = image
	return update, closeImage, nil
}
