package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus instruments for the governance controller and
// implements domain.MetricsRecorder. Instruments are created once here;
// nothing redefines them per call.
type Metrics struct {
	policyViolations   *prometheus.CounterVec
	enforcementLatency *prometheus.HistogramVec
	activePolicies     *prometheus.GaugeVec
	remediations       *prometheus.CounterVec
	watchEvents        *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics instance backed by its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "governance_policy_violations",
				Help: "Number of policy violations detected",
			},
			[]string{"policy_type", "severity"},
		),

		enforcementLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "governance_enforcement_latency",
				Help:    "Time taken to enforce policies in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"policy_type"},
		),

		activePolicies: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "governance_active_policies",
				Help: "Number of active governance policies",
			},
			[]string{"policy_type"},
		),

		remediations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "governance_remediations_total",
				Help: "Remediation attempts by action and status",
			},
			[]string{"action", "status"},
		),

		watchEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "governance_watch_events_total",
				Help: "Violation watcher state transitions",
			},
			[]string{"state"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.policyViolations,
		m.enforcementLatency,
		m.activePolicies,
		m.remediations,
		m.watchEvents,
	)

	return m
}

// IncViolation counts a violation observation by type and severity.
func (m *Metrics) IncViolation(violationType, severity string) {
	m.policyViolations.WithLabelValues(violationType, severity).Inc()
}

// IncActivePolicies bumps the active-policy gauge for a kind.
func (m *Metrics) IncActivePolicies(kind string) {
	m.activePolicies.WithLabelValues(kind).Inc()
}

// ObserveEnforcementLatency records one enforcement duration by kind.
func (m *Metrics) ObserveEnforcementLatency(kind string, seconds float64) {
	m.enforcementLatency.WithLabelValues(kind).Observe(seconds)
}

// IncRemediation counts a remediation attempt by action and status.
func (m *Metrics) IncRemediation(action, status string) {
	m.remediations.WithLabelValues(action, status).Inc()
}

// IncWatchEvent counts a watcher state transition.
func (m *Metrics) IncWatchEvent(state string) {
	m.watchEvents.WithLabelValues(state).Inc()
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
