package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks rate limit decisions.
type Metrics struct {
	Rejections *prometheus.CounterVec
	Fallback   prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "receipt_ledger_ratelimit_rejections_total",
			Help: "Total requests rejected by the rate limiter by endpoint class",
		}, []string{"class"}),
		Fallback: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "receipt_ledger_ratelimit_fallback_active",
			Help: "1 while the rate limiter serves from the in-memory fallback",
		}),
	}
}

func (m *Metrics) IncrementRejection(class string) {
	if m != nil {
		m.Rejections.WithLabelValues(class).Inc()
	}
}

func (m *Metrics) SetFallback(active bool) {
	if m == nil {
		return
	}
	if active {
		m.Fallback.Set(1)
		return
	}
	m.Fallback.Set(0)
}
