package handler

import (
	"encoding/json"
	"net/http"

	"github.com/conex-ia/agentesv2-sub000/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Knowledge bases — /v1/bases
// ============================================================

func listBasesHandler(svc *service.BaseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projeto := r.URL.Query().Get("projeto")
		page, err := svc.List(r.Context(), EmpresaFromContext(r.Context()), projeto, parsePage(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func getBaseHandler(svc *service.BaseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		base, err := svc.Get(r.Context(), EmpresaFromContext(r.Context()), chi.URLParam(r, "baseId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, base)
	}
}

type createBaseRequest struct {
	Nome    string `json:"nome"`
	Projeto string `json:"projeto"`
}

func createBaseHandler(svc *service.BaseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/bases")
		defer span.End()

		var req createBaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		base, err := svc.Create(ctx, EmpresaFromContext(ctx), req.Projeto, req.Nome)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, base)
	}
}

type renameBaseRequest struct {
	Nome string `json:"nome"`
}

func renameBaseHandler(svc *service.BaseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/bases/{baseId}")
		defer span.End()

		uid := chi.URLParam(r, "baseId")
		span.SetAttributes(attribute.String("base.uid", uid))

		var req renameBaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := svc.Rename(ctx, EmpresaFromContext(ctx), uid, req.Nome); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

func updateBasePromptHandler(svc *service.BaseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/bases/{baseId}/prompt")
		defer span.End()

		uid := chi.URLParam(r, "baseId")
		span.SetAttributes(attribute.String("base.uid", uid))

		var req promptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := svc.UpdatePrompt(ctx, EmpresaFromContext(ctx), uid, req.Prompt); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func deleteBaseHandler(svc *service.BaseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/bases/{baseId}")
		defer span.End()

		uid := chi.URLParam(r, "baseId")
		span.SetAttributes(attribute.String("base.uid", uid))

		if err := svc.Delete(ctx, EmpresaFromContext(ctx), uid); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
