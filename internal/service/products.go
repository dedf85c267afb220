package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/observability"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/webhook"
	"github.com/conex-ia/agentesv2-sub000/internal/port"
	"github.com/conex-ia/agentesv2-sub000/internal/view"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var productTracer = otel.Tracer("service/products")

// ProductInput is the product image submission form. Every image comes
// with its own description, matched by position.
type ProductInput struct {
	Base       string   `json:"base"`
	URL        []string `json:"url"`
	Descricoes []string `json:"descricoes"`
}

// ProductService manages the products area. Products are training rows
// on the product route; the image pipeline reads them, describes the
// images and feeds the results into the base.
type ProductService struct {
	rows     port.RowStore
	mirrors  *Mirrors
	workflow port.WorkflowClient
	storage  string
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewProductService creates a product service.
func NewProductService(rows port.RowStore, mirrors *Mirrors, workflow port.WorkflowClient, storageBaseURL string, metrics *observability.Metrics, logger *zap.Logger) *ProductService {
	return &ProductService{
		rows:     rows,
		mirrors:  mirrors,
		workflow: workflow,
		storage:  storageBaseURL,
		metrics:  metrics,
		logger:   logger,
	}
}

// List returns one page of the tenant's product imports with phase
// displays.
func (s *ProductService) List(ctx context.Context, titular string, page int) (view.Page[TrainingView], error) {
	ctx, span := productTracer.Start(ctx, "ProductService.List")
	defer span.End()
	span.SetAttributes(attribute.String("titular.uid", titular))

	mirror, err := s.mirrors.Trainings(ctx, titular)
	if err != nil {
		return view.Page[TrainingView]{}, err
	}

	rows := mirror.Rows()
	views := make([]TrainingView, 0, len(rows))
	for _, t := range rows {
		if !t.IsProduct() {
			continue
		}
		views = append(views, newTrainingView(t, s.storage))
	}
	return view.BuildPage(views, page, view.DefaultPageSize), nil
}

// Submit creates a product row and hands the images to the pipeline.
// URL and description counts must match one-to-one.
func (s *ProductService) Submit(ctx context.Context, titular string, in ProductInput) (*domain.Training, error) {
	ctx, span := productTracer.Start(ctx, "ProductService.Submit")
	defer span.End()

	if len(in.URL) == 0 {
		return nil, &domain.ErrValidation{Field: "url", Message: "at least one image is required"}
	}
	if len(in.URL) != len(in.Descricoes) {
		return nil, &domain.ErrValidation{
			Field:   "descricoes",
			Message: fmt.Sprintf("%d descriptions for %d images", len(in.Descricoes), len(in.URL)),
		}
	}
	for i, d := range in.Descricoes {
		if strings.TrimSpace(d) == "" {
			return nil, &domain.ErrValidation{
				Field:   "descricoes",
				Message: fmt.Sprintf("description %d is empty", i+1),
			}
		}
	}

	base, err := s.rows.GetBase(ctx, in.Base)
	if err != nil {
		return nil, err
	}
	if base.Titular != titular {
		return nil, &domain.ErrForbidden{Action: "submit products to base " + in.Base}
	}

	t := &domain.Training{
		UID:        uuid.NewString(),
		Resumo:     fmt.Sprintf("%d produto(s)", len(in.URL)),
		Origem:     "imagens",
		Base:       in.Base,
		Fase:       domain.PhaseAguardando,
		Tipo:       "produto",
		Projeto:    base.Projeto,
		Titular:    titular,
		URL:        in.URL,
		Descricoes: in.Descricoes,
		Rota:       domain.RotaProdutos,
	}
	created, err := s.rows.CreateTraining(ctx, t)
	if err != nil {
		return nil, err
	}

	if _, err := s.workflow.SubmitProducts(ctx, webhook.ProductPayload{
		UID:        created.UID,
		Base:       created.Base,
		Titular:    titular,
		Projeto:    created.Projeto,
		URL:        created.URL,
		Descricoes: created.Descricoes,
	}); err != nil {
		s.metrics.IncrWebhookCall(webhook.WorkflowProduct, "error")
		if perr := s.rows.UpdateTrainingPhase(ctx, created.UID, domain.PhaseAguardando.AsError()); perr != nil {
			s.logger.Error("product submit: failed to mark error phase",
				zap.String("training_uid", created.UID),
				zap.Error(perr),
			)
		}
		return nil, err
	}
	s.metrics.IncrWebhookCall(webhook.WorkflowProduct, "success")

	s.logger.Info("products submitted",
		zap.String("training_uid", created.UID),
		zap.Int("images", len(created.URL)),
	)
	return created, nil
}
