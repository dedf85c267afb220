package handler

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
	"github.com/conex-ia/agentesv2-sub000/internal/view"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// parsePage reads the page query parameter through the shared
// page-input rules. Anything that is not a positive integer reverts to
// page 1; the upper bound is left open here because services clamp
// against the actual page count.
func parsePage(r *http.Request) int {
	return view.ParsePageInput(r.URL.Query().Get("page"), 1, math.MaxInt, 1)
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var validation *domain.ErrValidation
	var unauthorized *domain.ErrUnauthorized
	var forbidden *domain.ErrForbidden
	var conflict *domain.ErrConflict
	var webhookErr *domain.ErrWebhook
	var decodeErr *domain.ErrDecode
	var externalErr *domain.ErrExternalService
	var circuitOpen *domain.ErrCircuitOpen

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &forbidden):
		logger.Warn("forbidden access", zap.String("error", err.Error()))
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &webhookErr):
		logger.Error("workflow rejected request", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &decodeErr):
		logger.Error("backend returned undecodable rows", zap.Error(err))
		writeError(w, http.StatusBadGateway, "backend returned unexpected data")
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &externalErr):
		logger.Error("external service failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream service unavailable")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
