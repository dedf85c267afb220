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
// WhatsApp bots — /v1/whatsapp
// ============================================================

func listBotsHandler(svc *service.BotService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := svc.List(r.Context(), EmpresaFromContext(r.Context()), parsePage(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func getBotHandler(svc *service.BotService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bot, err := svc.Get(r.Context(), EmpresaFromContext(r.Context()), chi.URLParam(r, "botId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, bot)
	}
}

func createBotHandler(svc *service.BotService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/whatsapp")
		defer span.End()

		var req service.BotInput
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		created, err := svc.Create(ctx, EmpresaFromContext(ctx), req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func connectBotHandler(svc *service.BotService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/whatsapp/{botId}/connect")
		defer span.End()

		uid := chi.URLParam(r, "botId")
		span.SetAttributes(attribute.String("bot.uid", uid))

		if err := svc.Connect(ctx, EmpresaFromContext(ctx), uid); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func disconnectBotHandler(svc *service.BotService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/whatsapp/{botId}/disconnect")
		defer span.End()

		uid := chi.URLParam(r, "botId")
		span.SetAttributes(attribute.String("bot.uid", uid))

		if err := svc.Disconnect(ctx, EmpresaFromContext(ctx), uid); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// botQRHandler serves the pairing QR code as a PNG image.
func botQRHandler(svc *service.BotService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		png, err := svc.PairingQR(r.Context(), EmpresaFromContext(r.Context()), chi.URLParam(r, "botId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		w.Write(png)
	}
}

type linkRequest struct {
	Base string `json:"base"`
}

func linkBotHandler(svc *service.BotService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/whatsapp/{botId}/link")
		defer span.End()

		uid := chi.URLParam(r, "botId")
		span.SetAttributes(attribute.String("bot.uid", uid))

		var req linkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := svc.Link(ctx, EmpresaFromContext(ctx), uid, req.Base); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func unlinkBotHandler(svc *service.BotService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/whatsapp/{botId}/unlink")
		defer span.End()

		uid := chi.URLParam(r, "botId")
		span.SetAttributes(attribute.String("bot.uid", uid))

		if err := svc.Unlink(ctx, EmpresaFromContext(ctx), uid); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type activeRequest struct {
	Ativo bool `json:"ativo"`
}

func setBotActiveHandler(svc *service.BotService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/whatsapp/{botId}/active")
		defer span.End()

		uid := chi.URLParam(r, "botId")
		span.SetAttributes(attribute.String("bot.uid", uid))

		var req activeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := svc.SetActive(ctx, EmpresaFromContext(ctx), uid, req.Ativo); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func hideBotHandler(svc *service.BotService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/whatsapp/{botId}")
		defer span.End()

		uid := chi.URLParam(r, "botId")
		span.SetAttributes(attribute.String("bot.uid", uid))

		if err := svc.Hide(ctx, EmpresaFromContext(ctx), uid); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
