package store

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Registry shares resource mirrors between consumers. Mirrors are keyed
// by (table, filter scope) and refcounted: the first acquirer starts the
// mirror and its subscription, the last release tears both down.
type Registry struct {
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	refs   int
	mirror any
	cancel context.CancelFunc
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Acquire returns the shared mirror for key, starting it via start on
// first use. The returned release function must be called exactly once;
// when the last holder releases, the mirror's context is canceled.
//
// start receives a context that outlives the acquiring request and is
// canceled only on final release.
func Acquire[T any](r *Registry, key string, start func(ctx context.Context) (*Resource[T], error)) (*Resource[T], func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		e.refs++
		return e.mirror.(*Resource[T]), r.releaseFunc(key), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	mirror, err := start(ctx)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	r.entries[key] = &entry{refs: 1, mirror: mirror, cancel: cancel}
	r.logger.Debug("registry: mirror started", zap.String("key", key))
	return mirror, r.releaseFunc(key), nil
}

// releaseFunc builds the idempotent release closure for one acquisition.
// Caller must hold r.mu.
func (r *Registry) releaseFunc(key string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()

			e, ok := r.entries[key]
			if !ok {
				return
			}
			e.refs--
			if e.refs > 0 {
				return
			}
			e.cancel()
			delete(r.entries, key)
			r.logger.Debug("registry: mirror stopped", zap.String("key", key))
		})
	}
}

// Active returns the number of live mirrors, for readiness reporting.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Shutdown stops every mirror regardless of refcounts.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, e := range r.entries {
		e.cancel()
		delete(r.entries, key)
	}
}
