package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the classification counters. A dedicated registry keeps
// tests independent of the global default registerer.
type Metrics struct {
	Registry  *prometheus.Registry
	Requests  *prometheus.CounterVec
	Latency   *prometheus.HistogramVec
	CacheHits prometheus.Counter
}

const (
	OutcomeSuccess      = "success"
	OutcomeInvalidInput = "invalid_input"
	OutcomeEngineError  = "engine_error"
	OutcomeBadOutput    = "invalid_output"
)

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hscode",
			Name:      "classify_requests_total",
			Help:      "Classification requests by engine and outcome.",
		}, []string{"engine", "outcome"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hscode",
			Name:      "classify_duration_seconds",
			Help:      "Engine call latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"engine"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hscode",
			Name:      "cache_hits_total",
			Help:      "Classifications served from cache.",
		}),
	}
	m.Registry.MustRegister(m.Requests, m.Latency, m.CacheHits)
	return m
}
