package service

import (
	"context"
	"strings"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/observability"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/webhook"
	"github.com/conex-ia/agentesv2-sub000/internal/port"
	"github.com/conex-ia/agentesv2-sub000/internal/view"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var labTracer = otel.Tracer("service/lab")

// AssistantInput is the lab assistant creation/update form.
type AssistantInput struct {
	Nome   string `json:"nome"`
	Modelo string `json:"modelo"`
}

// LabService manages experimental assistants. Rows in the assistants
// table are owned by the lifecycle workflow; this service only commands
// it and mirrors the results.
type LabService struct {
	rows     port.RowStore
	mirrors  *Mirrors
	workflow port.WorkflowClient
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewLabService creates a lab service.
func NewLabService(rows port.RowStore, mirrors *Mirrors, workflow port.WorkflowClient, metrics *observability.Metrics, logger *zap.Logger) *LabService {
	return &LabService{
		rows:     rows,
		mirrors:  mirrors,
		workflow: workflow,
		metrics:  metrics,
		logger:   logger,
	}
}

// List returns one page of the tenant's assistants.
func (s *LabService) List(ctx context.Context, titular string, page int) (view.Page[domain.Assistant], error) {
	ctx, span := labTracer.Start(ctx, "LabService.List")
	defer span.End()

	mirror, err := s.mirrors.Assistants(ctx, titular)
	if err != nil {
		return view.Page[domain.Assistant]{}, err
	}
	return view.BuildPage(mirror.Rows(), page, view.DefaultPageSize), nil
}

// Create asks the lifecycle workflow to provision an assistant. The row
// appears in the table once the engine writes it.
func (s *LabService) Create(ctx context.Context, titular string, in AssistantInput) error {
	ctx, span := labTracer.Start(ctx, "LabService.Create")
	defer span.End()

	if strings.TrimSpace(in.Nome) == "" {
		return &domain.ErrValidation{Field: "nome", Message: "assistant name is required"}
	}

	if _, err := s.workflow.ManageAssistant(ctx, webhook.AssistantPayload{
		Acao:    "criar",
		Nome:    in.Nome,
		Modelo:  in.Modelo,
		Titular: titular,
	}); err != nil {
		s.metrics.IncrWebhookCall(webhook.WorkflowAssistant, "error")
		return err
	}
	s.metrics.IncrWebhookCall(webhook.WorkflowAssistant, "success")
	return nil
}

// Update pushes changed fields through the lifecycle workflow.
func (s *LabService) Update(ctx context.Context, titular, uid string, in AssistantInput) error {
	ctx, span := labTracer.Start(ctx, "LabService.Update")
	defer span.End()

	if err := s.ensureOwned(ctx, titular, uid); err != nil {
		return err
	}
	if _, err := s.workflow.ManageAssistant(ctx, webhook.AssistantPayload{
		Acao:    "atualizar",
		UID:     uid,
		Nome:    in.Nome,
		Modelo:  in.Modelo,
		Titular: titular,
	}); err != nil {
		s.metrics.IncrWebhookCall(webhook.WorkflowAssistant, "error")
		return err
	}
	s.metrics.IncrWebhookCall(webhook.WorkflowAssistant, "success")
	return nil
}

// Delete asks the workflow to tear an assistant down.
func (s *LabService) Delete(ctx context.Context, titular, uid string) error {
	ctx, span := labTracer.Start(ctx, "LabService.Delete")
	defer span.End()

	if err := s.ensureOwned(ctx, titular, uid); err != nil {
		return err
	}
	if _, err := s.workflow.ManageAssistant(ctx, webhook.AssistantPayload{
		Acao:    "excluir",
		UID:     uid,
		Titular: titular,
	}); err != nil {
		s.metrics.IncrWebhookCall(webhook.WorkflowAssistant, "error")
		return err
	}
	s.metrics.IncrWebhookCall(webhook.WorkflowAssistant, "success")
	return nil
}

func (s *LabService) ensureOwned(ctx context.Context, titular, uid string) error {
	a, err := s.rows.GetAssistant(ctx, uid)
	if err != nil {
		return err
	}
	if a.Titular != titular {
		return &domain.ErrForbidden{Action: "access assistant " + uid}
	}
	return nil
}
