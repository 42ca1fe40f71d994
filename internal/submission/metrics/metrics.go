package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the submission workflow engine.
type Metrics struct {
	// Operation outcomes by operation and result code ("ok" on success)
	Operations *prometheus.CounterVec

	// Engine operation latency, including the unit of work
	OperationLatency *prometheus.HistogramVec

	// Status transitions that committed, by from/to status
	Transitions *prometheus.CounterVec
}

// New registers the submission metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "examflow_submission_operations_total",
			Help: "Workflow operations by operation and outcome",
		}, []string{"operation", "outcome"}),

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "examflow_submission_operation_duration_seconds",
			Help:    "Duration of workflow operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),

		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "examflow_submission_transitions_total",
			Help: "Committed status transitions",
		}, []string{"from", "to"}),
	}
}

// ObserveOperation records one engine call.
func (m *Metrics) ObserveOperation(operation, outcome string, d time.Duration) {
	if m != nil {
		m.Operations.WithLabelValues(operation, outcome).Inc()
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// IncrementTransition records a committed status change.
func (m *Metrics) IncrementTransition(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}
