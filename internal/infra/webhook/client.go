// Package webhook calls the external workflow engine that performs the heavy
// lifting behind the dashboard: content ingestion, product image processing,
// assistant lifecycle and WhatsApp session management. Every call is
// fire-and-confirm: the engine answers success/error immediately and reports
// progress later through table updates.
package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/resilience"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("webhook")

// Workflow names, used in errors and metrics labels.
const (
	WorkflowTraining  = "training"
	WorkflowProduct   = "product"
	WorkflowAssistant = "assistant"
	WorkflowSession   = "session"
	WorkflowBaseTable = "base_table"
	WorkflowBotLink   = "bot_link"
)

// Response is the engine's uniform reply envelope.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
	UID     string `json:"uid,omitempty"`
}

// Paths configures the route of each workflow under the engine base URL.
type Paths struct {
	Training  string
	Product   string
	Assistant string
	Session   string
	BaseTable string
	BotLink   string
}

// Client posts workflow requests to the engine.
type Client struct {
	http   *resty.Client
	paths  Paths
	cb     *gobreaker.CircuitBreaker
	cfg    resilience.Config
	logger *zap.Logger
}

// NewClient creates a workflow client rooted at baseURL.
func NewClient(baseURL string, paths Paths, timeout time.Duration, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &Client{
		http:   httpClient,
		paths:  paths,
		cb:     cb,
		cfg:    cfg,
		logger: logger,
	}
}

// call posts a payload to one workflow path and validates the envelope.
// A transport failure surfaces as ErrExternalService; a delivered request
// the engine refused surfaces as ErrWebhook. Neither is ever swallowed.
func (c *Client) call(ctx context.Context, workflow, path string, payload any) (*Response, error) {
	ctx, span := tracer.Start(ctx, "Webhook."+workflow)
	defer span.End()
	span.SetAttributes(attribute.String("workflow", workflow))

	var out Response
	var rejected *domain.ErrWebhook

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			resp, err := c.http.R().
				SetContext(ctx).
				SetBody(payload).
				SetResult(&out).
				Post(path)
			if err != nil {
				c.logger.Error("webhook: request failed",
					zap.String("workflow", workflow),
					zap.String("path", path),
					zap.Error(err),
				)
				return err
			}
			if resp.IsError() {
				c.logger.Warn("webhook: non-2xx response",
					zap.String("workflow", workflow),
					zap.String("path", path),
					zap.Int("status", resp.StatusCode()),
					zap.String("body", resp.String()),
				)
				if resp.StatusCode() >= 500 {
					return errors.New("webhook " + workflow + " returned " + resp.Status())
				}
				// 4xx: the engine refused the request, retrying won't help
				rejected = &domain.ErrWebhook{Workflow: workflow, Message: resp.Status()}
				return nil
			}
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "webhook/" + workflow, Err: err}
	}
	if rejected != nil {
		return nil, rejected
	}

	if out.Status != "success" {
		c.logger.Warn("webhook: workflow rejected request",
			zap.String("workflow", workflow),
			zap.String("status", out.Status),
			zap.String("message", out.Message),
		)
		return nil, &domain.ErrWebhook{Workflow: workflow, Message: out.Message}
	}

	c.logger.Debug("webhook: workflow accepted",
		zap.String("workflow", workflow),
		zap.String("message", out.Message),
	)
	return &out, nil
}

// TrainingPayload starts content ingestion for a training row.
type TrainingPayload struct {
	UID     string   `json:"uid"`
	Base    string   `json:"base"`
	Origem  string   `json:"origem"`
	Tipo    string   `json:"tipo"`
	Titular string   `json:"titular"`
	Projeto string   `json:"projeto"`
	Resumo  string   `json:"resumo"`
	URL     []string `json:"url,omitempty"`
}

// StartTraining hands a training over to the ingestion pipeline.
func (c *Client) StartTraining(ctx context.Context, p TrainingPayload) (*Response, error) {
	return c.call(ctx, WorkflowTraining, c.paths.Training, p)
}

// TrainingRemovalPayload tells the pipeline to discard what it learned
// from a training that is being closed.
type TrainingRemovalPayload struct {
	Acao    string `json:"acao"` // excluir
	UID     string `json:"uid"`
	Base    string `json:"base"`
	Titular string `json:"titular"`
}

// RemoveTraining notifies the pipeline that a training row was removed
// so the engine drops its ingested content from the base.
func (c *Client) RemoveTraining(ctx context.Context, p TrainingRemovalPayload) (*Response, error) {
	return c.call(ctx, WorkflowTraining, c.paths.Training, p)
}

// ProductPayload submits product images with their descriptions.
type ProductPayload struct {
	UID        string   `json:"uid"`
	Base       string   `json:"base"`
	Titular    string   `json:"titular"`
	Projeto    string   `json:"projeto"`
	URL        []string `json:"url"`
	Descricoes []string `json:"descricoes"`
}

// SubmitProducts hands product images to the image pipeline.
func (c *Client) SubmitProducts(ctx context.Context, p ProductPayload) (*Response, error) {
	return c.call(ctx, WorkflowProduct, c.paths.Product, p)
}

// AssistantPayload drives the lab assistant lifecycle.
type AssistantPayload struct {
	Acao    string `json:"acao"` // criar, atualizar, excluir
	UID     string `json:"uid,omitempty"`
	Nome    string `json:"nome,omitempty"`
	Modelo  string `json:"modelo,omitempty"`
	Titular string `json:"titular"`
}

// ManageAssistant creates, updates or removes a lab assistant.
func (c *Client) ManageAssistant(ctx context.Context, p AssistantPayload) (*Response, error) {
	return c.call(ctx, WorkflowAssistant, c.paths.Assistant, p)
}

// SessionPayload drives the WhatsApp session integration.
type SessionPayload struct {
	Acao      string `json:"acao"` // criar, conectar, desconectar, excluir
	Instancia string `json:"instancia"`
	Titular   string `json:"titular"`
}

// SyncSession asks the integration to act on a bot's WhatsApp session.
// The QR code for pairing comes back asynchronously via the bots table.
func (c *Client) SyncSession(ctx context.Context, p SessionPayload) (*Response, error) {
	return c.call(ctx, WorkflowSession, c.paths.Session, p)
}

// BaseTablePayload provisions backing storage for a new knowledge base.
type BaseTablePayload struct {
	UID     string `json:"uid"`
	Nome    string `json:"nome"`
	Titular string `json:"titular"`
}

// CreateBaseTable provisions the vector table behind a knowledge base.
func (c *Client) CreateBaseTable(ctx context.Context, p BaseTablePayload) (*Response, error) {
	return c.call(ctx, WorkflowBaseTable, c.paths.BaseTable, p)
}

// BotLinkPayload links or unlinks a bot and a knowledge base on the
// engine side, mirroring the row-level link.
type BotLinkPayload struct {
	Acao    string `json:"acao"` // vincular, desvincular
	Bot     string `json:"bot"`
	Base    string `json:"base,omitempty"`
	Titular string `json:"titular"`
}

// LinkBot mirrors a bot/base link change into the engine.
func (c *Client) LinkBot(ctx context.Context, p BotLinkPayload) (*Response, error) {
	return c.call(ctx, WorkflowBotLink, c.paths.BotLink, p)
}
