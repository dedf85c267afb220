package handler

import (
	"encoding/json"
	"net/http"

	"github.com/conex-ia/agentesv2-sub000/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Lab assistants — /v1/lab
// ============================================================

func listAssistantsHandler(svc *service.LabService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := svc.List(r.Context(), EmpresaFromContext(r.Context()), parsePage(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func createAssistantHandler(svc *service.LabService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/lab")
		defer span.End()

		var req service.AssistantInput
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := svc.Create(ctx, EmpresaFromContext(ctx), req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func updateAssistantHandler(svc *service.LabService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/lab/{assistantId}")
		defer span.End()

		var req service.AssistantInput
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := svc.Update(ctx, EmpresaFromContext(ctx), chi.URLParam(r, "assistantId"), req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func deleteAssistantHandler(svc *service.LabService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/lab/{assistantId}")
		defer span.End()

		if err := svc.Delete(ctx, EmpresaFromContext(ctx), chi.URLParam(r, "assistantId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}
