package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the indexer.
type Metrics struct {
	// Applied events by kind
	Applied *prometheus.CounterVec

	// Events skipped because they were already applied, by detector
	Duplicates *prometheus.CounterVec

	// Events refused because an earlier sequence is missing
	Gaps prometheus.Counter

	ApplyLatency prometheus.Histogram
	Checkpoint   prometheus.Gauge
}

// New creates a new Metrics instance with all indexer metrics registered.
func New() *Metrics {
	return &Metrics{
		Applied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "receipt_ledger_indexer_applied_total",
			Help: "Total events applied to the indexer views by kind",
		}, []string{"kind"}),
		Duplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "receipt_ledger_indexer_duplicates_total",
			Help: "Total redelivered events skipped by the indexer",
		}, []string{"detector"}), // detector: "cache", "checkpoint"
		Gaps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "receipt_ledger_indexer_gaps_total",
			Help: "Total events refused because an earlier sequence was not applied",
		}),
		ApplyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "receipt_ledger_indexer_apply_duration_seconds",
			Help:    "Duration of applying one event to the views",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		Checkpoint: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "receipt_ledger_indexer_checkpoint",
			Help: "Sequence of the last applied event",
		}),
	}
}

func (m *Metrics) ObserveApplied(kind string, seq uint64, d time.Duration) {
	if m != nil {
		m.Applied.WithLabelValues(kind).Inc()
		m.ApplyLatency.Observe(d.Seconds())
		m.Checkpoint.Set(float64(seq))
	}
}

func (m *Metrics) IncrementDuplicate(detector string) {
	if m != nil {
		m.Duplicates.WithLabelValues(detector).Inc()
	}
}

func (m *Metrics) IncrementGap() {
	if m != nil {
		m.Gaps.Inc()
	}
}
