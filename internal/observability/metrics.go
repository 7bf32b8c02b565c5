// Package observability holds the Prometheus metrics for the practice
// engine. Uses a custom registry — no global state.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for aide.
type Metrics struct {
	Registry *prometheus.Registry

	// Session lifecycle.
	SessionsStarted *prometheus.CounterVec // mode: generate|custom
	SessionsEnded   prometheus.Counter
	SchemasDropped  *prometheus.CounterVec // strategy: metadata|heuristic|session_end

	// Answer checking.
	ChecksTotal *prometheus.CounterVec // outcome: correct|incorrect|error
	HintsServed prometheus.Counter

	// Query execution.
	QueryDuration *prometheus.HistogramVec // kind: user|expected|free|setup
}

// NewMetrics creates a Metrics with all collectors registered on a custom
// prometheus.Registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		SessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aide",
			Subsystem: "practice",
			Name:      "sessions_started_total",
			Help:      "Practice sessions started, by generation mode.",
		}, []string{"mode"}),

		SessionsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aide",
			Subsystem: "practice",
			Name:      "sessions_ended_total",
			Help:      "Practice sessions ended explicitly by the caller.",
		}),

		SchemasDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aide",
			Subsystem: "practice",
			Name:      "schemas_dropped_total",
			Help:      "Practice schemas dropped, by reclamation path.",
		}, []string{"strategy"}),

		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aide",
			Subsystem: "practice",
			Name:      "checks_total",
			Help:      "Answer checks, by outcome.",
		}, []string{"outcome"}),

		HintsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aide",
			Subsystem: "practice",
			Name:      "hints_served_total",
			Help:      "Hints revealed to users.",
		}),

		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aide",
			Subsystem: "sql",
			Name:      "query_duration_seconds",
			Help:      "SQL execution latency, by query kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.SessionsStarted,
		m.SessionsEnded,
		m.SchemasDropped,
		m.ChecksTotal,
		m.HintsServed,
		m.QueryDuration,
	)

	return m
}
