package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks audit persistence health.
type Metrics struct {
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
	EntriesRecorded *prometheus.CounterVec
	RelayDropped    prometheus.Counter
}

// NewMetrics registers the audit metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "examflow_audit_persist_failures_total",
			Help: "Audit entries that could not be persisted; each failed its workflow operation",
		}),
		PersistDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "examflow_audit_persist_duration_seconds",
			Help:    "Duration of synchronous audit appends",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		EntriesRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "examflow_audit_entries_total",
			Help: "Audit entries persisted by event type",
		}, []string{"event_type"}),
		RelayDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "examflow_audit_relay_dropped_total",
			Help: "Persisted audit entries not handed to the relay because its buffer was full",
		}),
	}
}
