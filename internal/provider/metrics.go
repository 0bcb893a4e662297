package provider

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stackforge"

// Metrics records provider call counts and latency
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers provider metrics on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "requests_total",
				Help:      "Total number of LLM provider requests",
			},
			[]string{"provider", "outcome"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "request_duration_seconds",
				Help:      "LLM provider request duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"provider"},
		),
	}
}

func (m *Metrics) observe(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(provider, outcome).Inc()
	m.duration.WithLabelValues(provider).Observe(d.Seconds())
}
