// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sparql

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes recorded on the queries counter.
const (
	OutcomeSuccess   = "success"
	OutcomeUpstream  = "upstream_error"
	OutcomeTransport = "transport_error"
	OutcomeInvalid   = "invalid_response"
	OutcomeRejected  = "circuit_open"
)

// Metrics holds the prometheus collectors for the query client. Each
// Metrics owns its registry so tests and embedded uses never collide with
// the global default registry.
type Metrics struct {
	registry *prometheus.Registry

	Queries  *prometheus.CounterVec
	Duration prometheus.Histogram
	Pending  prometheus.Gauge
	Breaker  prometheus.Gauge
}

// NewMetrics creates and registers the query client collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	queries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphscope",
			Subsystem: "sparql",
			Name:      "queries_total",
			Help:      "SPARQL queries dispatched, by outcome",
		},
		[]string{"outcome"},
	)

	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "graphscope",
			Subsystem: "sparql",
			Name:      "query_duration_seconds",
			Help:      "Round-trip time of dispatched SPARQL queries",
			Buckets:   prometheus.DefBuckets,
		},
	)

	pending := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "graphscope",
			Subsystem: "sparql",
			Name:      "pending_queries",
			Help:      "Queries waiting for a rate-limit slot or in flight",
		},
	)

	breaker := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "graphscope",
			Subsystem: "sparql",
			Name:      "circuit_state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		},
	)

	registry.MustRegister(queries, duration, pending, breaker)

	return &Metrics{
		registry: registry,
		Queries:  queries,
		Duration: duration,
		Pending:  pending,
		Breaker:  breaker,
	}
}

// Registry returns the registry so other packages can add collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
