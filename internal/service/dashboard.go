package service

import (
	"context"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/observability"
	"github.com/conex-ia/agentesv2-sub000/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var dashTracer = otel.Tracer("service/dashboard")

// DashboardService aggregates the landing screen counters. Counts are
// assembled from the table mirrors plus a direct condominium read, and
// cached briefly so a busy dashboard does not hammer the backend.
type DashboardService struct {
	rows    port.RowStore
	mirrors *Mirrors
	cache   port.Cache[*domain.DashboardSummary]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewDashboardService creates a dashboard service.
func NewDashboardService(rows port.RowStore, mirrors *Mirrors, cache port.Cache[*domain.DashboardSummary], metrics *observability.Metrics, logger *zap.Logger) *DashboardService {
	return &DashboardService{
		rows:    rows,
		mirrors: mirrors,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// Summary returns the tenant's counters, concurrently gathered.
func (s *DashboardService) Summary(ctx context.Context, empresa string) (*domain.DashboardSummary, error) {
	ctx, span := dashTracer.Start(ctx, "DashboardService.Summary")
	defer span.End()
	span.SetAttributes(attribute.String("empresa.uid", empresa))

	if cached, ok := s.cache.Get(empresa); ok {
		s.metrics.IncrCacheHit("dashboard")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("dashboard")

	summary := &domain.DashboardSummary{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		mirror, err := s.mirrors.Projects(gctx, empresa)
		if err != nil {
			return err
		}
		summary.Projects = mirror.Len()
		return nil
	})
	g.Go(func() error {
		mirror, err := s.mirrors.Bases(gctx, empresa)
		if err != nil {
			return err
		}
		summary.Bases = mirror.Len()
		return nil
	})
	g.Go(func() error {
		mirror, err := s.mirrors.Trainings(gctx, empresa)
		if err != nil {
			return err
		}
		trainings, products := 0, 0
		for _, t := range mirror.Rows() {
			if t.IsProduct() {
				products++
			} else {
				trainings++
			}
		}
		summary.Trainings = trainings
		summary.Products = products
		return nil
	})
	g.Go(func() error {
		mirror, err := s.mirrors.Bots(gctx, empresa)
		if err != nil {
			return err
		}
		bots := mirror.Rows()
		summary.Bots = len(bots)
		for _, b := range bots {
			if b.Connected() {
				summary.ConnectedBots++
			}
		}
		return nil
	})
	g.Go(func() error {
		condos, err := s.rows.ListCondominiums(gctx, empresa)
		if err != nil {
			return err
		}
		summary.Condominiums = len(condos)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.cache.Set(empresa, summary)
	return summary, nil
}

// Sync reports cache/subscription health counters for the ops widget.
func (s *DashboardService) Sync(ctx context.Context) *domain.SyncMetrics {
	_, span := dashTracer.Start(ctx, "DashboardService.Sync")
	defer span.End()

	return s.metrics.GetSyncSnapshot()
}
