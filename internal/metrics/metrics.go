// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the engine's Prometheus instruments behind one registry so
// tests can build isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	SessionsCreated   *prometheus.CounterVec
	Checks            *prometheus.CounterVec
	SessionsFinished  prometheus.Counter
	SessionsAbandoned prometheus.Counter
	RequestDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		SessionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pairmatch_sessions_created_total",
			Help: "Play sessions created, by game variant.",
		}, []string{"variant"}),
		Checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pairmatch_checks_total",
			Help: "Match attempts validated, by outcome.",
		}, []string{"outcome"}),
		SessionsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairmatch_sessions_finished_total",
			Help: "Sessions finalized with all pairs matched.",
		}),
		SessionsAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairmatch_sessions_abandoned_total",
			Help: "Sessions reclaimed by idle sweep or explicit destroy before completion.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pairmatch_http_request_duration_ms",
			Help:    "HTTP request duration in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"method", "path"}),
	}

	reg.MustRegister(
		m.SessionsCreated,
		m.Checks,
		m.SessionsFinished,
		m.SessionsAbandoned,
		m.RequestDuration,
	)
	return m
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one HTTP request's duration.
func (m *Metrics) ObserveRequest(method, path string, duration time.Duration) {
	m.RequestDuration.WithLabelValues(method, path).Observe(float64(duration.Milliseconds()))
}

// RecordCheck counts one validated match attempt.
func (m *Metrics) RecordCheck(isMatch bool) {
	outcome := "mismatch"
	if isMatch {
		outcome = "match"
	}
	m.Checks.WithLabelValues(outcome).Inc()
}
