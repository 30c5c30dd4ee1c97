package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit capture pipeline.
type Metrics struct {
	RecordedTotal  prometheus.Counter
	DroppedTotal   prometheus.Counter
	SinkErrors     *prometheus.CounterVec
	FlushBatchSize prometheus.Histogram
	BufferDepth    prometheus.Gauge
}

// New creates a new Metrics instance with all audit metrics registered.
func New() *Metrics {
	return &Metrics{
		RecordedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "quoin_audit_recorded_total",
			Help: "Audit entries accepted into the dispatch buffer",
		}),
		DroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "quoin_audit_dropped_total",
			Help: "Audit entries dropped because the buffer was full",
		}),
		SinkErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "quoin_audit_sink_errors_total",
			Help: "Failed sink appends by sink name",
		}, []string{"sink"}),
		FlushBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "quoin_audit_flush_batch_size",
			Help:    "Entries sealed and dispatched per flush",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}),
		BufferDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "quoin_audit_buffer_depth",
			Help: "Entries waiting in the dispatch buffer",
		}),
	}
}

// IncrementRecorded counts one entry accepted for dispatch.
func (m *Metrics) IncrementRecorded() {
	if m == nil {
		return
	}
	m.RecordedTotal.Inc()
}

// AddDropped counts entries lost to buffer overflow.
func (m *Metrics) AddDropped(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.DroppedTotal.Add(float64(n))
}

// IncrementSinkError counts one failed append for the named sink.
func (m *Metrics) IncrementSinkError(sink string) {
	if m == nil {
		return
	}
	m.SinkErrors.WithLabelValues(sink).Inc()
}

// ObserveFlush records the size of a dispatched batch.
func (m *Metrics) ObserveFlush(n int) {
	if m == nil {
		return
	}
	m.FlushBatchSize.Observe(float64(n))
}

// SetBufferDepth records the current buffer fill level.
func (m *Metrics) SetBufferDepth(n int) {
	if m == nil {
		return
	}
	m.BufferDepth.Set(float64(n))
}
