package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taskhub/apiserver/internal/authz"
	"github.com/taskhub/apiserver/internal/services"
)

const (
	defaultPage        = 1
	defaultLimit       = 10
	maxLimit           = 100
	maxMultipartMemory = 8 << 20
	maxImageBytes      = 5 << 20
	maxJSONBytes       = 1 << 20
	formFieldImage     = "image"
	dateLayout         = "2006-01-02"
)

type contextKey string

const contextActorKey contextKey = "actor"

func withActor(ctx context.Context, actor authz.Actor) context.Context {
	return context.WithValue(ctx, contextActorKey, actor)
}

func actorFromContext(ctx context.Context) (authz.Actor, bool) {
	actor, ok := ctx.Value(contextActorKey).(authz.Actor)
	return actor, ok && actor.UserID > 0
}

// ErrorResponse is the error payload. Fields carries per-field validation
// messages.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// MessageResponse acknowledges an action that returns no resource.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	rawLimit := strings.TrimSpace(r.URL.Query().Get("limit"))
	if rawLimit == "" {
		rawLimit = strings.TrimSpace(r.URL.Query().Get("page_size"))
	}
	if rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func parseID(r *http.Request, param string) (int, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid " + strings.TrimSuffix(param, "ID") + " id")
	}
	return id, nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. A bare date
// used as an upper bound covers the whole day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, errors.New("expected YYYY-MM-DD or RFC 3339")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func parseOptionalInt(value string) (*int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func formValue(form *multipart.Form, key string) (string, bool) {
	if form == nil {
		return "", false
	}
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// imageUpload opens the optional image part of a parsed multipart form. The
// returned closer is never nil.
func imageUpload(form *multipart.Form) (*services.ImageUpload, func(), error) {
	noop := func() {}
	if form == nil {
		return nil, noop, nil
	}
	files := form.File[formFieldImage]
	if len(files) == 0 {
		return nil, noop, nil
	}
	if len(files) > 1 {
		return nil, noop, services.FieldError(formFieldImage, "only one image is allowed")
	}
	header := files[0]
	if header.Size > maxImageBytes {
		return nil, noop, services.FieldError(formFieldImage, "image must be at most 5 MB")
	}
	file, err := header.Open()
	if err != nil {
		return nil, noop, services.FieldError(formFieldImage, "failed to read image")
	}
	upload := &services.ImageUpload{
		Filename: header.Filename,
		Size:     header.Size,
		Body:     io.LimitReader(file, maxImageBytes),
	}
	return upload, func() { _ = file.Close() }, nil
}
