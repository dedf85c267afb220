// Package sweeper finishes the two-phase delete protocol. Deletion marks
// rows inactive with a purge deadline; the sweeper periodically hard-deletes
// whatever is past it. Restarting the process never loses a pending delete,
// the deadline lives in the row.
package sweeper

import (
	"context"
	"time"

	"github.com/conex-ia/agentesv2-sub000/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("sweeper")

// Sweeper purges soft-deleted projects and bases past their grace window.
type Sweeper struct {
	rows     port.RowStore
	interval time.Duration
	logger   *zap.Logger
}

// New creates a sweeper that scans every interval.
func New(rows port.RowStore, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{rows: rows, interval: interval, logger: logger}
}

// Run blocks, sweeping until ctx is canceled. One sweep runs immediately
// so deletes pending from before a restart are picked up without delay.
func (s *Sweeper) Run(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one purge pass. Failures are logged and retried on the
// next tick; a row that cannot be purged stays invisible either way.
func (s *Sweeper) Sweep(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "Sweeper.Sweep")
	defer span.End()

	now := time.Now()

	projects, err := s.rows.ListExpiredProjects(ctx, now)
	if err != nil {
		s.logger.Warn("sweeper: listing expired projects failed", zap.Error(err))
	}
	for _, p := range projects {
		if err := s.rows.HardDeleteProject(ctx, p.UID); err != nil {
			s.logger.Warn("sweeper: project purge failed",
				zap.String("project_uid", p.UID),
				zap.Error(err),
			)
			continue
		}
		s.logger.Info("sweeper: project purged", zap.String("project_uid", p.UID))
	}

	bases, err := s.rows.ListExpiredBases(ctx, now)
	if err != nil {
		s.logger.Warn("sweeper: listing expired bases failed", zap.Error(err))
	}
	for _, b := range bases {
		if err := s.rows.HardDeleteBase(ctx, b.UID); err != nil {
			s.logger.Warn("sweeper: base purge failed",
				zap.String("base_uid", b.UID),
				zap.Error(err),
			)
			continue
		}
		s.logger.Info("sweeper: base purged", zap.String("base_uid", b.UID))
	}
}
