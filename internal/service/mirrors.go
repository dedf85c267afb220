// Package service provides the business logic layer (use cases) of the
// dashboard backend: tenant-scoped listings over live table mirrors,
// workflow orchestration and the two-phase delete protocol.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/observability"
	"github.com/conex-ia/agentesv2-sub000/internal/port"
	"github.com/conex-ia/agentesv2-sub000/internal/store"

	"go.uber.org/zap"
)

// Mirrors hands out the shared table mirrors, one per (table, tenant)
// scope. Handles are held for the process lifetime; the underlying
// registry deduplicates scopes requested by more than one service.
type Mirrors struct {
	registry *store.Registry
	feed     port.ChangeFeed
	rows     port.RowStore
	metrics  *observability.Metrics
	logger   *zap.Logger

	mu       sync.Mutex
	handles  map[string]any
	releases []func()
}

// NewMirrors creates the mirror directory.
func NewMirrors(registry *store.Registry, feed port.ChangeFeed, rows port.RowStore, metrics *observability.Metrics, logger *zap.Logger) *Mirrors {
	return &Mirrors{
		registry: registry,
		feed:     feed,
		rows:     rows,
		metrics:  metrics,
		logger:   logger,
		handles:  make(map[string]any),
	}
}

// open acquires (or reuses) the mirror for one scope. The start function
// loads the snapshot and wires the subscription; a failed initial load is
// tolerated, the mirror stays in its error state until a later refresh.
func open[T any](m *Mirrors, table, filter string, fetch store.FetchFunc[T], uid func(*T) string, opts ...store.Option[T]) (*store.Resource[T], error) {
	key := fmt.Sprintf("%s|%s", table, filter)

	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.handles[key]; ok {
		return h.(*store.Resource[T]), nil
	}

	mirror, release, err := store.Acquire(m.registry, key, func(ctx context.Context) (*store.Resource[T], error) {
		r := store.NewResource(table, fetch, uid, m.logger, m.metrics, opts...)
		if err := r.Load(ctx); err != nil {
			m.logger.Warn("mirrors: initial load failed, serving degraded",
				zap.String("key", key),
				zap.Error(err),
			)
		}

		events, err := m.feed.Subscribe(ctx, table, filter)
		if err != nil {
			return nil, err
		}
		go r.Run(ctx, events)
		return r, nil
	})
	if err != nil {
		return nil, err
	}

	m.handles[key] = mirror
	m.releases = append(m.releases, release)
	return mirror, nil
}

// ensure refreshes a mirror that never managed an initial load.
func ensure[T any](ctx context.Context, r *store.Resource[T]) {
	if s := r.State(); s == store.StateIdle || s == store.StateError {
		r.Refresh(ctx)
	}
}

// Projects returns the active-projects mirror of a tenant.
func (m *Mirrors) Projects(ctx context.Context, empresa string) (*store.Resource[domain.Project], error) {
	r, err := open(m, domain.TableProjects, "empresa=eq."+empresa,
		func(ctx context.Context) ([]domain.Project, error) { return m.rows.ListProjects(ctx, empresa) },
		func(p *domain.Project) string { return p.UID },
	)
	if err != nil {
		return nil, err
	}
	ensure(ctx, r)
	return r, nil
}

// Bases returns the active-bases mirror of a tenant.
func (m *Mirrors) Bases(ctx context.Context, titular string) (*store.Resource[domain.KnowledgeBase], error) {
	r, err := open(m, domain.TableBases, "titular=eq."+titular,
		func(ctx context.Context) ([]domain.KnowledgeBase, error) { return m.rows.ListBases(ctx, titular) },
		func(b *domain.KnowledgeBase) string { return b.UID },
	)
	if err != nil {
		return nil, err
	}
	ensure(ctx, r)
	return r, nil
}

// Trainings returns the trainings mirror of a tenant. Phase transitions
// arrive in bursts while the pipeline runs, so updates patch in place.
func (m *Mirrors) Trainings(ctx context.Context, titular string) (*store.Resource[domain.Training], error) {
	r, err := open(m, domain.TableTrainings, "titular=eq."+titular,
		func(ctx context.Context) ([]domain.Training, error) { return m.rows.ListTrainings(ctx, titular, "") },
		func(t *domain.Training) string { return t.UID },
		store.WithPatchUpdates[domain.Training](),
	)
	if err != nil {
		return nil, err
	}
	ensure(ctx, r)
	return r, nil
}

// Bots returns the visible-bots mirror of a tenant.
func (m *Mirrors) Bots(ctx context.Context, titular string) (*store.Resource[domain.Bot], error) {
	r, err := open(m, domain.TableBots, "bot_titular=eq."+titular,
		func(ctx context.Context) ([]domain.Bot, error) { return m.rows.ListBots(ctx, titular) },
		func(b *domain.Bot) string { return b.UID },
	)
	if err != nil {
		return nil, err
	}
	ensure(ctx, r)
	return r, nil
}

// Assistants returns the lab assistants mirror of a tenant.
func (m *Mirrors) Assistants(ctx context.Context, titular string) (*store.Resource[domain.Assistant], error) {
	r, err := open(m, domain.TableAssistants, "titular=eq."+titular,
		func(ctx context.Context) ([]domain.Assistant, error) { return m.rows.ListAssistants(ctx, titular) },
		func(a *domain.Assistant) string { return a.UID },
	)
	if err != nil {
		return nil, err
	}
	ensure(ctx, r)
	return r, nil
}

// Shutdown releases every held mirror.
func (m *Mirrors) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, release := range m.releases {
		release()
	}
	m.releases = nil
	m.handles = make(map[string]any)
}
