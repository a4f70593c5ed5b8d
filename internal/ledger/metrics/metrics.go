package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for ledger transitions.
type Metrics struct {
	// Applied transitions by event kind
	Transitions *prometheus.CounterVec

	// Refused transitions by operation and error code
	Rejections *prometheus.CounterVec

	// Time spent inside the ledger transaction, by operation
	Duration *prometheus.HistogramVec
}

// New creates a new Metrics instance with all ledger metrics registered.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "receipt_ledger_transitions_total",
			Help: "Total applied ledger transitions by event kind",
		}, []string{"kind"}),

		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "receipt_ledger_rejections_total",
			Help: "Total refused ledger operations by operation and error code",
		}, []string{"operation", "code"}),

		Duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "receipt_ledger_operation_duration_seconds",
			Help:    "Duration of ledger operations including the transaction",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

// IncrementTransition records an applied transition.
func (m *Metrics) IncrementTransition(kind string) {
	if m != nil {
		m.Transitions.WithLabelValues(kind).Inc()
	}
}

// IncrementRejection records a refused operation.
func (m *Metrics) IncrementRejection(operation, code string) {
	if m != nil {
		m.Rejections.WithLabelValues(operation, code).Inc()
	}
}

// ObserveDuration records how long an operation took.
func (m *Metrics) ObserveDuration(operation string, d time.Duration) {
	if m != nil {
		m.Duration.WithLabelValues(operation).Observe(d.Seconds())
	}
}
