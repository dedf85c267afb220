package service

import (
	"context"
	"strings"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/observability"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/webhook"
	"github.com/conex-ia/agentesv2-sub000/internal/port"
	"github.com/conex-ia/agentesv2-sub000/internal/view"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var botTracer = otel.Tracer("service/bots")

// BotView is the list representation of a bot: raw row plus the derived
// display name and connection state.
type BotView struct {
	domain.Bot
	Nome      string `json:"nome"`
	Connected bool   `json:"connected"`
}

// BotInput is the bot creation form.
type BotInput struct {
	Nome       string `json:"nome"`
	Numero     string `json:"numero"`
	AgenteNome string `json:"agente_nome"`
	Saudacao   string `json:"saudacao"`
	Prompt     string `json:"prompt"`
	LGPD       bool   `json:"lgpd"`
}

// BotService manages WhatsApp bots: listing, creation, session pairing,
// base linking and visibility. The actual WhatsApp session lives in the
// external integration; this service only mirrors and commands it.
type BotService struct {
	rows     port.RowStore
	mirrors  *Mirrors
	workflow port.WorkflowClient
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewBotService creates a bot service.
func NewBotService(rows port.RowStore, mirrors *Mirrors, workflow port.WorkflowClient, metrics *observability.Metrics, logger *zap.Logger) *BotService {
	return &BotService{
		rows:     rows,
		mirrors:  mirrors,
		workflow: workflow,
		metrics:  metrics,
		logger:   logger,
	}
}

// List returns one page of the tenant's visible bots.
func (s *BotService) List(ctx context.Context, titular string, page int) (view.Page[BotView], error) {
	ctx, span := botTracer.Start(ctx, "BotService.List")
	defer span.End()
	span.SetAttributes(attribute.String("titular.uid", titular))

	mirror, err := s.mirrors.Bots(ctx, titular)
	if err != nil {
		return view.Page[BotView]{}, err
	}

	rows := mirror.Rows()
	views := make([]BotView, 0, len(rows))
	for _, b := range rows {
		views = append(views, BotView{
			Bot:       b,
			Nome:      b.DisplayName(),
			Connected: b.Connected(),
		})
	}
	return view.BuildPage(views, page, view.DefaultPageSize), nil
}

// Get returns one visible bot of the tenant.
func (s *BotService) Get(ctx context.Context, titular, uid string) (*BotView, error) {
	ctx, span := botTracer.Start(ctx, "BotService.Get")
	defer span.End()

	b, err := s.owned(ctx, titular, uid)
	if err != nil {
		return nil, err
	}
	return &BotView{Bot: *b, Nome: b.DisplayName(), Connected: b.Connected()}, nil
}

// Create registers a bot and asks the integration to provision its
// WhatsApp instance. New bots start disconnected, unlinked and visible.
func (s *BotService) Create(ctx context.Context, titular string, in BotInput) (*domain.Bot, error) {
	ctx, span := botTracer.Start(ctx, "BotService.Create")
	defer span.End()

	if strings.TrimSpace(in.Nome) == "" {
		return nil, &domain.ErrValidation{Field: "nome", Message: "bot name is required"}
	}

	b := &domain.Bot{
		UID:        uuid.NewString(),
		BotNome:    in.Nome,
		BotNumero:  in.Numero,
		BotStatus:  domain.BotStatusClose,
		BotTitular: titular,
		BotExibir:  true,
		AgenteNome: in.AgenteNome,
		Saudacao:   in.Saudacao,
		Prompt:     in.Prompt,
		LGPD:       in.LGPD,
	}
	created, err := s.rows.CreateBot(ctx, b)
	if err != nil {
		return nil, err
	}

	if _, err := s.workflow.SyncSession(ctx, webhook.SessionPayload{
		Acao:      "criar",
		Instancia: created.UID,
		Titular:   titular,
	}); err != nil {
		s.metrics.IncrWebhookCall(webhook.WorkflowSession, "error")
		return nil, err
	}
	s.metrics.IncrWebhookCall(webhook.WorkflowSession, "success")

	s.logger.Info("bot created",
		zap.String("bot_uid", created.UID),
		zap.String("titular", titular),
	)
	return created, nil
}

// Connect asks the integration to open the bot's WhatsApp session. The
// pairing payload lands in the bot row asynchronously; PairingQR renders
// it once it is there.
func (s *BotService) Connect(ctx context.Context, titular, uid string) error {
	ctx, span := botTracer.Start(ctx, "BotService.Connect")
	defer span.End()

	if _, err := s.owned(ctx, titular, uid); err != nil {
		return err
	}
	if _, err := s.workflow.SyncSession(ctx, webhook.SessionPayload{
		Acao:      "conectar",
		Instancia: uid,
		Titular:   titular,
	}); err != nil {
		s.metrics.IncrWebhookCall(webhook.WorkflowSession, "error")
		return err
	}
	s.metrics.IncrWebhookCall(webhook.WorkflowSession, "success")
	return nil
}

// Disconnect asks the integration to close the bot's session.
func (s *BotService) Disconnect(ctx context.Context, titular, uid string) error {
	ctx, span := botTracer.Start(ctx, "BotService.Disconnect")
	defer span.End()

	if _, err := s.owned(ctx, titular, uid); err != nil {
		return err
	}
	if _, err := s.workflow.SyncSession(ctx, webhook.SessionPayload{
		Acao:      "desconectar",
		Instancia: uid,
		Titular:   titular,
	}); err != nil {
		s.metrics.IncrWebhookCall(webhook.WorkflowSession, "error")
		return err
	}
	s.metrics.IncrWebhookCall(webhook.WorkflowSession, "success")
	return nil
}

// PairingQR renders the bot's stored pairing payload as a PNG QR code.
// Returns ErrConflict while the integration has not delivered one yet.
func (s *BotService) PairingQR(ctx context.Context, titular, uid string) ([]byte, error) {
	ctx, span := botTracer.Start(ctx, "BotService.PairingQR")
	defer span.End()

	b, err := s.owned(ctx, titular, uid)
	if err != nil {
		return nil, err
	}
	if b.Connected() {
		return nil, &domain.ErrConflict{Message: "bot is already connected"}
	}
	if b.BotQRCode == "" {
		return nil, &domain.ErrConflict{Message: "pairing code not available yet"}
	}

	png, err := qrcode.Encode(b.BotQRCode, qrcode.Medium, 256)
	if err != nil {
		return nil, err
	}
	return png, nil
}

// Link attaches a knowledge base to a bot and mirrors the link into the
// engine. The base must belong to the same tenant and be active.
func (s *BotService) Link(ctx context.Context, titular, uid, baseUID string) error {
	ctx, span := botTracer.Start(ctx, "BotService.Link")
	defer span.End()
	span.SetAttributes(attribute.String("bot.uid", uid), attribute.String("base.uid", baseUID))

	if _, err := s.owned(ctx, titular, uid); err != nil {
		return err
	}
	base, err := s.rows.GetBase(ctx, baseUID)
	if err != nil {
		return err
	}
	if base.Titular != titular {
		return &domain.ErrForbidden{Action: "link base " + baseUID}
	}
	if !base.Ativa {
		return &domain.ErrConflict{Message: "base is pending deletion"}
	}

	if err := s.rows.LinkBotBase(ctx, uid, baseUID, true); err != nil {
		return err
	}
	if _, err := s.workflow.LinkBot(ctx, webhook.BotLinkPayload{
		Acao:    "vincular",
		Bot:     uid,
		Base:    baseUID,
		Titular: titular,
	}); err != nil {
		s.metrics.IncrWebhookCall(webhook.WorkflowBotLink, "error")
		return err
	}
	s.metrics.IncrWebhookCall(webhook.WorkflowBotLink, "success")
	return nil
}

// Unlink detaches the bot's base and deactivates it; a bot never stays
// active without a base.
func (s *BotService) Unlink(ctx context.Context, titular, uid string) error {
	ctx, span := botTracer.Start(ctx, "BotService.Unlink")
	defer span.End()

	if _, err := s.owned(ctx, titular, uid); err != nil {
		return err
	}
	if err := s.rows.LinkBotBase(ctx, uid, "", false); err != nil {
		return err
	}
	if _, err := s.workflow.LinkBot(ctx, webhook.BotLinkPayload{
		Acao:    "desvincular",
		Bot:     uid,
		Titular: titular,
	}); err != nil {
		s.metrics.IncrWebhookCall(webhook.WorkflowBotLink, "error")
		return err
	}
	s.metrics.IncrWebhookCall(webhook.WorkflowBotLink, "success")
	return nil
}

// SetActive pauses or resumes a bot without touching its base link.
// A bot cannot go active without a linked base.
func (s *BotService) SetActive(ctx context.Context, titular, uid string, active bool) error {
	ctx, span := botTracer.Start(ctx, "BotService.SetActive")
	defer span.End()
	span.SetAttributes(attribute.String("bot.uid", uid))

	b, err := s.owned(ctx, titular, uid)
	if err != nil {
		return err
	}
	if active && b.BotBase == "" {
		return &domain.ErrConflict{Message: "bot has no linked base"}
	}
	return s.rows.UpdateBot(ctx, uid, map[string]any{"bot_ativo": active})
}

// Hide removes the bot from every listing and tears down its session.
// The row itself survives so the integration keeps a write target.
func (s *BotService) Hide(ctx context.Context, titular, uid string) error {
	ctx, span := botTracer.Start(ctx, "BotService.Hide")
	defer span.End()
	span.SetAttributes(attribute.String("bot.uid", uid))

	if _, err := s.owned(ctx, titular, uid); err != nil {
		return err
	}
	if _, err := s.workflow.SyncSession(ctx, webhook.SessionPayload{
		Acao:      "excluir",
		Instancia: uid,
		Titular:   titular,
	}); err != nil {
		s.metrics.IncrWebhookCall(webhook.WorkflowSession, "error")
		return err
	}
	s.metrics.IncrWebhookCall(webhook.WorkflowSession, "success")

	if err := s.rows.LinkBotBase(ctx, uid, "", false); err != nil {
		s.logger.Warn("bot hide: failed to detach base",
			zap.String("bot_uid", uid),
			zap.Error(err),
		)
	}
	return s.rows.HideBot(ctx, uid)
}

// owned fetches a bot and rejects cross-tenant or hidden access.
func (s *BotService) owned(ctx context.Context, titular, uid string) (*domain.Bot, error) {
	b, err := s.rows.GetBot(ctx, uid)
	if err != nil {
		return nil, err
	}
	if b.BotTitular != titular {
		return nil, &domain.ErrForbidden{Action: "access bot " + uid}
	}
	if !b.BotExibir {
		return nil, &domain.ErrNotFound{Resource: "bot", ID: uid}
	}
	return b, nil
}
