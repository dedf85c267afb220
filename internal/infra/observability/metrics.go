package observability

import (
	"time"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the dashboard backend.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration    *prometheus.HistogramVec
	externalErrors     *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	storeFetches       *prometheus.CounterVec
	storeRefreshes     *prometheus.CounterVec
	subscriptionEvents *prometheus.CounterVec
	webhookCalls       *prometheus.CounterVec
	requestsTotal      *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conex_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conex_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conex_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conex_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		storeFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conex_store_fetches_total",
				Help: "Total full table fetches by resource stores.",
			},
			[]string{"table"},
		),
		storeRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conex_store_refreshes_total",
				Help: "Total event-driven store refreshes.",
			},
			[]string{"table"},
		),
		subscriptionEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conex_subscription_events_total",
				Help: "Total realtime change events received.",
			},
			[]string{"table", "op"},
		),
		webhookCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conex_webhook_calls_total",
				Help: "Total workflow webhook calls by outcome.",
			},
			[]string{"workflow", "status"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conex_requests_total",
				Help: "Total requests processed.",
			},
			[]string{"status"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrStoreFetch increments the full-fetch counter for a table.
func (m *Metrics) IncrStoreFetch(table string) {
	m.storeFetches.WithLabelValues(table).Inc()
}

// IncrStoreRefresh increments the refresh counter for a table.
func (m *Metrics) IncrStoreRefresh(table string) {
	m.storeRefreshes.WithLabelValues(table).Inc()
}

// IncrSubscriptionEvent increments the realtime event counter.
func (m *Metrics) IncrSubscriptionEvent(table, op string) {
	m.subscriptionEvents.WithLabelValues(table, op).Inc()
}

// IncrWebhookCall increments the webhook counter with an outcome label.
func (m *Metrics) IncrWebhookCall(workflow, status string) {
	m.webhookCalls.WithLabelValues(workflow, status).Inc()
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// GetSyncSnapshot returns a snapshot of synchronization metrics suitable for
// the GET /v1/dashboard/sync endpoint.
func (m *Metrics) GetSyncSnapshot() *domain.SyncMetrics {
	fetches := sumCounterVec(m.storeFetches)
	refreshes := sumCounterVec(m.storeRefreshes)
	events := sumCounterVec(m.subscriptionEvents)
	webhookErrors := getCounterValue(m.webhookCalls, "training", "error") +
		getCounterValue(m.webhookCalls, "product", "error") +
		getCounterValue(m.webhookCalls, "assistant", "error") +
		getCounterValue(m.webhookCalls, "session", "error") +
		getCounterValue(m.webhookCalls, "base_table", "error") +
		getCounterValue(m.webhookCalls, "bot_link", "error")

	totalRequests := getCounterValue(m.requestsTotal, "success") +
		getCounterValue(m.requestsTotal, "error")
	errorCount := getCounterValue(m.requestsTotal, "error")
	hits := sumCounterVec(m.cacheHits)
	misses := sumCounterVec(m.cacheMisses)

	errorRate := float64(0)
	cacheHitRate := float64(0)
	if totalRequests > 0 {
		errorRate = errorCount / totalRequests
	}
	if hits+misses > 0 {
		cacheHitRate = hits / (hits + misses)
	}

	return &domain.SyncMetrics{
		StoreFetches:       int64(fetches),
		StoreRefreshes:     int64(refreshes),
		SubscriptionEvents: int64(events),
		WebhookErrors:      int64(webhookErrors),
		ErrorRate:          errorRate,
		CacheHitRate:       cacheHitRate,
		Period:             "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounterVec sums all child counters of a CounterVec across label values.
func sumCounterVec(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	total := float64(0)
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		if m.Counter != nil && m.Counter.Value != nil {
			total += *m.Counter.Value
		}
	}
	return total
}
