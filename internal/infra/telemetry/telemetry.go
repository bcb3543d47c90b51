package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the client-side counters observed by the request engine
// and the conflict resolver.
type Metrics struct {
	requests     prometheus.Counter
	retries      prometheus.Counter
	conflicts    prometheus.Counter
	unauthorized prometheus.Counter
}

// NewMetrics registers the client counters on the supplied registerer. Pass
// a fresh registry in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "equiptrack",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP request attempts issued",
		}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "equiptrack",
			Name:      "http_retries_total",
			Help:      "Total number of transparent retries",
		}),
		conflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "equiptrack",
			Name:      "session_conflicts_total",
			Help:      "Total number of 409 session conflicts observed",
		}),
		unauthorized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "equiptrack",
			Name:      "unauthorized_total",
			Help:      "Total number of confirmed unauthorized responses",
		}),
	}
}

// IncRequests counts one issued attempt.
func (m *Metrics) IncRequests() {
	if m != nil {
		m.requests.Inc()
	}
}

// IncRetries counts one transparent retry.
func (m *Metrics) IncRetries() {
	if m != nil {
		m.retries.Inc()
	}
}

// IncConflicts counts one observed session conflict.
func (m *Metrics) IncConflicts() {
	if m != nil {
		m.conflicts.Inc()
	}
}

// IncUnauthorized counts one confirmed unauthorized response.
func (m *Metrics) IncUnauthorized() {
	if m != nil {
		m.unauthorized.Inc()
	}
}
