package handler

import (
	"encoding/json"
	"net/http"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
	"github.com/conex-ia/agentesv2-sub000/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Preferences — /v1/preferences
// ============================================================

func getPreferencesHandler(svc *service.PreferenceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prefs, err := svc.Get(r.Context(), UserUIDFromContext(r.Context()), EmpresaFromContext(r.Context()))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, prefs)
	}
}

func savePreferencesHandler(svc *service.PreferenceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/preferences")
		defer span.End()

		var req domain.Preferences
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		saved, err := svc.Save(ctx, UserUIDFromContext(ctx), EmpresaFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}
