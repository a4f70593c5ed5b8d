package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the outbox relay.
type Metrics struct {
	Published    prometheus.Counter
	Failures     prometheus.Counter
	BatchLatency prometheus.Histogram
	LastSequence prometheus.Gauge
}

// New creates a new Metrics instance with all relay metrics registered.
func New() *Metrics {
	return &Metrics{
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "receipt_ledger_outbox_published_total",
			Help: "Total events published from the outbox",
		}),
		Failures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "receipt_ledger_outbox_publish_failures_total",
			Help: "Total failed outbox publish attempts",
		}),
		BatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "receipt_ledger_outbox_batch_duration_seconds",
			Help:    "Duration of publishing one outbox batch",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		LastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "receipt_ledger_outbox_last_published_sequence",
			Help: "Sequence of the last published event",
		}),
	}
}

func (m *Metrics) ObservePublish(events int, d time.Duration) {
	if m != nil {
		m.Published.Add(float64(events))
		m.BatchLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementFailures() {
	if m != nil {
		m.Failures.Inc()
	}
}

func (m *Metrics) SetLastSequence(seq uint64) {
	if m != nil {
		m.LastSequence.Set(float64(seq))
	}
}

