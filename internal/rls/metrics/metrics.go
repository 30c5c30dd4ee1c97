package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for session claims binding.
type Metrics struct {
	SessionsTotal   *prometheus.CounterVec
	AcquireDuration prometheus.Histogram
	HealthRetries   prometheus.Counter
	ResetFailures   prometheus.Counter
}

// New creates a new Metrics instance with all session metrics registered.
func New() *Metrics {
	return &Metrics{
		SessionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "quoin_rls_sessions_total",
			Help: "Session claim bindings by outcome",
		}, []string{"outcome"}),
		AcquireDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "quoin_rls_acquire_duration_seconds",
			Help:    "Duration of session acquisition including health probes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		HealthRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "quoin_rls_health_retries_total",
			Help: "Database health probes that failed and were retried",
		}),
		ResetFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "quoin_rls_reset_failures_total",
			Help: "Claim resets that failed, forcing connection destruction",
		}),
	}
}

// IncrementSession records one binding attempt with its outcome
// (applied, degraded, failed, skipped).
func (m *Metrics) IncrementSession(outcome string) {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAcquire records acquisition duration.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAcquire(start time.Time) {
	if m == nil {
		return
	}
	m.AcquireDuration.Observe(time.Since(start).Seconds())
}

// IncrementHealthRetry records a failed health probe that will be retried.
func (m *Metrics) IncrementHealthRetry() {
	if m == nil {
		return
	}
	m.HealthRetries.Inc()
}

// IncrementResetFailure records a failed claims reset.
func (m *Metrics) IncrementResetFailure() {
	if m == nil {
		return
	}
	m.ResetFailures.Inc()
}
