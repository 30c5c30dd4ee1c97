package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for tenant resolution.
// Tracks resolution outcomes, lookup latency and cache effectiveness.
type Metrics struct {
	ResolutionsTotal *prometheus.CounterVec
	ResolveDuration  prometheus.Histogram
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	LifecycleTotal   *prometheus.CounterVec
}

// New creates a new Metrics instance with all tenant metrics registered.
func New() *Metrics {
	return &Metrics{
		ResolutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "quoin_tenant_resolutions_total",
			Help: "Tenant resolution attempts by outcome",
		}, []string{"outcome"}),
		ResolveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "quoin_tenant_resolve_duration_seconds",
			Help:    "Duration of tenant resolution (request critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "quoin_tenant_cache_hits_total",
			Help: "Tenant lookups served from the Redis cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "quoin_tenant_cache_misses_total",
			Help: "Tenant lookups that fell through to the backing store",
		}),
		LifecycleTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "quoin_tenant_lifecycle_total",
			Help: "Tenant lifecycle transitions by operation",
		}, []string{"op"}),
	}
}

// IncrementResolution records one resolution attempt with its outcome
// (resolved, mismatch, suspended, missing, unavailable).
func (m *Metrics) IncrementResolution(outcome string) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveResolve records the duration of a resolution.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveResolve(start time.Time) {
	if m == nil {
		return
	}
	m.ResolveDuration.Observe(time.Since(start).Seconds())
}

// IncrementCacheHit records a cache hit.
func (m *Metrics) IncrementCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// IncrementCacheMiss records a cache miss or cache read failure.
func (m *Metrics) IncrementCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

// IncrementLifecycle records one lifecycle transition
// (created, suspended, reactivated).
func (m *Metrics) IncrementLifecycle(op string) {
	if m == nil {
		return
	}
	m.LifecycleTotal.WithLabelValues(op).Inc()
}
