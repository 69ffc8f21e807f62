package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/taskhub/apiserver/internal/logger"
	"github.com/taskhub/apiserver/internal/services"
)

func statusOf(kind services.Kind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindPermission:
		return http.StatusForbidden
	case services.KindConflict:
		return http.StatusConflict
	case services.KindUpstream:
		return http.StatusBadGateway
	case services.KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error. Failures without a service kind
// are logged and reported with the generic fallback message.
func respondError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error, fallback string) {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		logger.WithContext(r.Context(), log).Error(fallback, zap.Error(err))
		writeError(w, http.StatusInternalServerError, fallback)
		return
	}
	status := statusOf(svcErr.Kind)
	if status >= http.StatusInternalServerError {
		logger.WithContext(r.Context(), log).Error(svcErr.Message, zap.Error(err))
	}
	writeJSON(w, status, ErrorResponse{Error: svcErr.Message, Fields: svcErr.Fields})
}
