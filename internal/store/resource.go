// Package store keeps in-memory mirrors of backend tables, one per
// (table, filter) scope. A mirror is loaded once, then kept warm by the
// realtime feed: every change notification triggers a refetch (or, for
// high-churn tables, an in-place patch). Mirrors are caches, never the
// source of truth.
package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/conex-ia/agentesv2-sub000/internal/infra/observability"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/realtime"

	"go.uber.org/zap"
)

// State is the lifecycle position of a resource store.
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateRefreshing State = "refreshing"
	StateError      State = "error"
)

// FetchFunc loads the complete scoped row set from the backend.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Resource mirrors one scoped table. All methods are safe for
// concurrent use.
type Resource[T any] struct {
	table   string
	fetch   FetchFunc[T]
	uid     func(*T) string
	logger  *zap.Logger
	metrics *observability.Metrics

	// patchUpdates applies UPDATE events in place instead of refetching.
	// Enabled for trainings, whose phase transitions arrive in bursts.
	patchUpdates bool

	mu    sync.RWMutex
	state State
	rows  []T
	err   error
	seq   uint64 // incremented per fetch; stale fetches never commit
}

// Option configures a Resource.
type Option[T any] func(*Resource[T])

// WithPatchUpdates makes UPDATE events patch the cached row by uid
// instead of triggering a full refetch. INSERT and DELETE still refetch.
func WithPatchUpdates[T any]() Option[T] {
	return func(r *Resource[T]) { r.patchUpdates = true }
}

// NewResource creates an idle mirror for one table scope. uid extracts
// the row identity used for patching and lookups.
func NewResource[T any](table string, fetch FetchFunc[T], uid func(*T) string, logger *zap.Logger, metrics *observability.Metrics, opts ...Option[T]) *Resource[T] {
	r := &Resource[T]{
		table:   table,
		fetch:   fetch,
		uid:     uid,
		logger:  logger,
		metrics: metrics,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load performs the initial fetch. On failure the store lands in
// StateError with no rows; a later Refresh can recover it.
func (r *Resource[T]) Load(ctx context.Context) error {
	r.mu.Lock()
	r.state = StateLoading
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	rows, err := r.fetch(ctx)
	r.metrics.IncrStoreFetch(r.table)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seq != seq {
		return nil // a newer fetch already landed
	}
	if err != nil {
		r.state = StateError
		r.err = err
		r.logger.Error("store: initial load failed",
			zap.String("table", r.table),
			zap.Error(err),
		)
		return err
	}
	r.rows = rows
	r.state = StateReady
	r.err = nil
	return nil
}

// Refresh refetches the row set. A failed refresh keeps the previous
// rows serving and records the error; overlapping refreshes are resolved
// by sequence number, so a slow stale fetch never overwrites a newer one.
func (r *Resource[T]) Refresh(ctx context.Context) {
	r.mu.Lock()
	if r.state == StateReady || r.state == StateRefreshing {
		r.state = StateRefreshing
	} else {
		r.state = StateLoading
	}
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	rows, err := r.fetch(ctx)
	r.metrics.IncrStoreFetch(r.table)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seq != seq {
		return
	}
	if err != nil {
		// keep serving the last good snapshot
		if r.rows != nil {
			r.state = StateReady
		} else {
			r.state = StateError
		}
		r.err = err
		r.logger.Warn("store: refresh failed, keeping cached rows",
			zap.String("table", r.table),
			zap.Error(err),
		)
		return
	}
	r.rows = rows
	r.state = StateReady
	r.err = nil
}

// Apply reacts to one change notification.
func (r *Resource[T]) Apply(ctx context.Context, ev realtime.Event) {
	r.metrics.IncrSubscriptionEvent(r.table, ev.Type)

	if r.patchUpdates && ev.Type == realtime.EventUpdate && len(ev.Row) > 0 {
		if r.patchRow(ev.Row) {
			return
		}
		// row not cached yet, fall through to a full refresh
	}

	r.metrics.IncrStoreRefresh(r.table)
	r.Refresh(ctx)
}

// patchRow decodes the event payload and replaces the cached row with the
// same uid. Returns false when the uid is unknown.
func (r *Resource[T]) patchRow(raw json.RawMessage) bool {
	var row T
	if err := json.Unmarshal(raw, &row); err != nil {
		r.logger.Warn("store: undecodable event row",
			zap.String("table", r.table),
			zap.Error(err),
		)
		return false
	}
	id := r.uid(&row)
	if id == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.uid(&r.rows[i]) == id {
			r.rows[i] = row
			return true
		}
	}
	return false
}

// Run consumes the event channel until it closes or ctx cancels.
func (r *Resource[T]) Run(ctx context.Context, events <-chan realtime.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.Apply(ctx, ev)
		}
	}
}

// Rows returns a copy of the current snapshot.
func (r *Resource[T]) Rows() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, len(r.rows))
	copy(out, r.rows)
	return out
}

// Get returns the cached row with the given uid.
func (r *Resource[T]) Get(uid string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.rows {
		if r.uid(&r.rows[i]) == uid {
			r.metrics.IncrCacheHit(r.table)
			return r.rows[i], true
		}
	}
	r.metrics.IncrCacheMiss(r.table)
	var zero T
	return zero, false
}

// State reports the current lifecycle state.
func (r *Resource[T]) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Err returns the last fetch error, if any.
func (r *Resource[T]) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Len returns the cached row count without copying.
func (r *Resource[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}
