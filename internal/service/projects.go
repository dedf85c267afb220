package service

import (
	"context"
	"strings"
	"time"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/observability"
	"github.com/conex-ia/agentesv2-sub000/internal/port"
	"github.com/conex-ia/agentesv2-sub000/internal/view"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var projectTracer = otel.Tracer("service/projects")

// ProjectService manages the project area: listing, creation, rename and
// the two-phase delete that cascades onto the project's bases.
type ProjectService struct {
	rows    port.RowStore
	mirrors *Mirrors
	grace   time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewProjectService creates a project service. grace is the window
// between soft delete and the sweeper's hard delete.
func NewProjectService(rows port.RowStore, mirrors *Mirrors, grace time.Duration, metrics *observability.Metrics, logger *zap.Logger) *ProjectService {
	return &ProjectService{
		rows:    rows,
		mirrors: mirrors,
		grace:   grace,
		metrics: metrics,
		logger:  logger,
	}
}

// List returns one page of the tenant's active projects.
func (s *ProjectService) List(ctx context.Context, empresa string, page int) (view.Page[domain.Project], error) {
	ctx, span := projectTracer.Start(ctx, "ProjectService.List")
	defer span.End()
	span.SetAttributes(attribute.String("empresa.uid", empresa))

	mirror, err := s.mirrors.Projects(ctx, empresa)
	if err != nil {
		return view.Page[domain.Project]{}, err
	}
	return view.BuildPage(mirror.Rows(), page, view.DefaultPageSize), nil
}

// Exists reports whether a project is currently cached for the tenant.
// Used to validate selected-project preferences.
func (s *ProjectService) Exists(ctx context.Context, empresa, uid string) bool {
	mirror, err := s.mirrors.Projects(ctx, empresa)
	if err != nil {
		return false
	}
	_, ok := mirror.Get(uid)
	return ok
}

// Create inserts a new, empty project.
func (s *ProjectService) Create(ctx context.Context, empresa, nome string) (*domain.Project, error) {
	ctx, span := projectTracer.Start(ctx, "ProjectService.Create")
	defer span.End()

	nome = strings.TrimSpace(nome)
	if nome == "" {
		return nil, &domain.ErrValidation{Field: "nome", Message: "project name is required"}
	}

	p := &domain.Project{
		UID:     uuid.NewString(),
		Nome:    nome,
		Empresa: empresa,
		Bases:   []string{},
		Ativo:   true,
	}
	created, err := s.rows.CreateProject(ctx, p)
	if err != nil {
		return nil, err
	}

	s.logger.Info("project created",
		zap.String("project_uid", created.UID),
		zap.String("empresa", empresa),
	)
	return created, nil
}

// Rename changes a project's display name.
func (s *ProjectService) Rename(ctx context.Context, empresa, uid, nome string) error {
	ctx, span := projectTracer.Start(ctx, "ProjectService.Rename")
	defer span.End()

	nome = strings.TrimSpace(nome)
	if nome == "" {
		return &domain.ErrValidation{Field: "nome", Message: "project name is required"}
	}
	if err := s.ensureOwned(ctx, empresa, uid); err != nil {
		return err
	}
	return s.rows.RenameProject(ctx, uid, nome)
}

// Delete starts the two-phase removal of a project. The row and its
// bases are marked inactive immediately (they vanish from every scoped
// listing) and stamped with a purge deadline; the sweeper hard-deletes
// them once the grace window has passed. Bots linked to the affected
// bases are detached right away so none keeps answering from removed
// content.
func (s *ProjectService) Delete(ctx context.Context, empresa, uid string) error {
	ctx, span := projectTracer.Start(ctx, "ProjectService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("project.uid", uid))

	if err := s.ensureOwned(ctx, empresa, uid); err != nil {
		return err
	}
	project, err := s.rows.GetProject(ctx, uid)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(s.grace)
	if err := s.rows.SoftDeleteProject(ctx, uid, deadline); err != nil {
		return err
	}
	if err := s.rows.SoftDeleteBasesByProject(ctx, uid, deadline); err != nil {
		return err
	}
	for _, baseUID := range project.Bases {
		if err := s.rows.DetachBotsFromBase(ctx, baseUID); err != nil {
			s.logger.Warn("project delete: failed to detach bots",
				zap.String("base_uid", baseUID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("project soft-deleted",
		zap.String("project_uid", uid),
		zap.Time("delete_after", deadline),
		zap.Int("bases", len(project.Bases)),
	)
	return nil
}

// ensureOwned rejects cross-tenant access to a project.
func (s *ProjectService) ensureOwned(ctx context.Context, empresa, uid string) error {
	project, err := s.rows.GetProject(ctx, uid)
	if err != nil {
		return err
	}
	if project.Empresa != empresa {
		return &domain.ErrForbidden{Action: "access project " + uid}
	}
	return nil
}
