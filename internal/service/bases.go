package service

import (
	"context"
	"strings"
	"time"

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

var baseTracer = otel.Tracer("service/bases")

// BaseService manages knowledge bases: scoped listing, creation (which
// provisions backing storage through the workflow engine), prompt edits
// and the two-phase delete.
type BaseService struct {
	rows     port.RowStore
	mirrors  *Mirrors
	workflow port.WorkflowClient
	grace    time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewBaseService creates a knowledge base service.
func NewBaseService(rows port.RowStore, mirrors *Mirrors, workflow port.WorkflowClient, grace time.Duration, metrics *observability.Metrics, logger *zap.Logger) *BaseService {
	return &BaseService{
		rows:     rows,
		mirrors:  mirrors,
		workflow: workflow,
		grace:    grace,
		metrics:  metrics,
		logger:   logger,
	}
}

// List returns one page of the tenant's active bases, optionally narrowed
// to one project. projeto accepts domain.SelectedAll (or empty) for no
// filter; a filter naming a vanished project yields an empty page rather
// than an error.
func (s *BaseService) List(ctx context.Context, titular, projeto string, page int) (view.Page[domain.KnowledgeBase], error) {
	ctx, span := baseTracer.Start(ctx, "BaseService.List")
	defer span.End()
	span.SetAttributes(attribute.String("titular.uid", titular))

	mirror, err := s.mirrors.Bases(ctx, titular)
	if err != nil {
		return view.Page[domain.KnowledgeBase]{}, err
	}

	rows := mirror.Rows()
	if projeto != "" && projeto != domain.SelectedAll {
		filtered := make([]domain.KnowledgeBase, 0, len(rows))
		for _, b := range rows {
			if b.Projeto == projeto {
				filtered = append(filtered, b)
			}
		}
		rows = filtered
	}
	return view.BuildPage(rows, page, view.DefaultPageSize), nil
}

// Get returns one base of the tenant.
func (s *BaseService) Get(ctx context.Context, titular, uid string) (*domain.KnowledgeBase, error) {
	ctx, span := baseTracer.Start(ctx, "BaseService.Get")
	defer span.End()

	base, err := s.rows.GetBase(ctx, uid)
	if err != nil {
		return nil, err
	}
	if base.Titular != titular {
		return nil, &domain.ErrForbidden{Action: "access base " + uid}
	}
	return base, nil
}

// Create provisions a new knowledge base. The workflow engine creates
// the backing content table first; only a confirmed provisioning gets a
// row, so the dashboard never lists a base that cannot ingest.
func (s *BaseService) Create(ctx context.Context, titular, projeto, nome string) (*domain.KnowledgeBase, error) {
	ctx, span := baseTracer.Start(ctx, "BaseService.Create")
	defer span.End()

	nome = strings.TrimSpace(nome)
	if nome == "" {
		return nil, &domain.ErrValidation{Field: "nome", Message: "base name is required"}
	}
	project, err := s.rows.GetProject(ctx, projeto)
	if err != nil {
		return nil, err
	}

	uid := uuid.NewString()
	if _, err := s.workflow.CreateBaseTable(ctx, webhook.BaseTablePayload{
		UID:     uid,
		Nome:    nome,
		Titular: titular,
	}); err != nil {
		s.metrics.IncrWebhookCall(webhook.WorkflowBaseTable, "error")
		return nil, err
	}
	s.metrics.IncrWebhookCall(webhook.WorkflowBaseTable, "success")

	base := &domain.KnowledgeBase{
		UID:          uid,
		Nome:         nome,
		Titular:      titular,
		Projeto:      projeto,
		Treinamentos: []string{},
		Ativa:        true,
	}
	created, err := s.rows.CreateBase(ctx, base)
	if err != nil {
		return nil, err
	}

	if err := s.rows.SetProjectBases(ctx, projeto, append(project.Bases, uid)); err != nil {
		s.logger.Warn("base create: failed to attach to project",
			zap.String("base_uid", uid),
			zap.String("project_uid", projeto),
			zap.Error(err),
		)
	}

	s.logger.Info("base created",
		zap.String("base_uid", uid),
		zap.String("project_uid", projeto),
	)
	return created, nil
}

// Rename changes the display name of a base.
func (s *BaseService) Rename(ctx context.Context, titular, uid, nome string) error {
	ctx, span := baseTracer.Start(ctx, "BaseService.Rename")
	defer span.End()

	nome = strings.TrimSpace(nome)
	if nome == "" {
		return &domain.ErrValidation{Field: "nome", Message: "base name is required"}
	}
	if _, err := s.Get(ctx, titular, uid); err != nil {
		return err
	}
	return s.rows.RenameBase(ctx, uid, nome)
}

// UpdatePrompt replaces the behaviour prompt of a base.
func (s *BaseService) UpdatePrompt(ctx context.Context, titular, uid, prompt string) error {
	ctx, span := baseTracer.Start(ctx, "BaseService.UpdatePrompt")
	defer span.End()

	if _, err := s.Get(ctx, titular, uid); err != nil {
		return err
	}
	return s.rows.UpdateBasePrompt(ctx, uid, prompt)
}

// Delete starts the two-phase removal of a base: the row goes inactive
// with a purge deadline, bots pointing at it are detached, and the base
// is pulled out of its project's list. The sweeper finishes the job.
func (s *BaseService) Delete(ctx context.Context, titular, uid string) error {
	ctx, span := baseTracer.Start(ctx, "BaseService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("base.uid", uid))

	base, err := s.Get(ctx, titular, uid)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(s.grace)
	if err := s.rows.SoftDeleteBase(ctx, uid, deadline); err != nil {
		return err
	}
	if err := s.rows.DetachBotsFromBase(ctx, uid); err != nil {
		s.logger.Warn("base delete: failed to detach bots",
			zap.String("base_uid", uid),
			zap.Error(err),
		)
	}

	if base.Projeto != "" {
		if project, err := s.rows.GetProject(ctx, base.Projeto); err == nil {
			remaining := make([]string, 0, len(project.Bases))
			for _, b := range project.Bases {
				if b != uid {
					remaining = append(remaining, b)
				}
			}
			if err := s.rows.SetProjectBases(ctx, base.Projeto, remaining); err != nil {
				s.logger.Warn("base delete: failed to update project list",
					zap.String("project_uid", base.Projeto),
					zap.Error(err),
				)
			}
		}
	}

	s.logger.Info("base soft-deleted",
		zap.String("base_uid", uid),
		zap.Time("delete_after", deadline),
	)
	return nil
}
