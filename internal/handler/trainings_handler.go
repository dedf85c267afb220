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
// Trainings — /v1/trainings
// ============================================================

func listTrainingsHandler(svc *service.TrainingService, logger *zap.Logger) http.HandlerFunc {
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

func listBaseTrainingsHandler(svc *service.TrainingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		baseUID := chi.URLParam(r, "baseId")
		page, err := svc.ListByBase(r.Context(), EmpresaFromContext(r.Context()), baseUID, parsePage(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func getTrainingHandler(svc *service.TrainingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := svc.Get(r.Context(), EmpresaFromContext(r.Context()), chi.URLParam(r, "trainingId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func ingestTrainingHandler(svc *service.TrainingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/trainings")
		defer span.End()

		var req service.TrainingInput
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		created, err := svc.Ingest(ctx, EmpresaFromContext(ctx), req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func closeTrainingHandler(svc *service.TrainingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/trainings/{trainingId}/close")
		defer span.End()

		uid := chi.URLParam(r, "trainingId")
		span.SetAttributes(attribute.String("training.uid", uid))

		if err := svc.Close(ctx, EmpresaFromContext(ctx), uid); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
