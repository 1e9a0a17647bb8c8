package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the counters the handlers report. Each Metrics owns its own
// registry so tests can build as many handlers as they like.
type Metrics struct {
	registry *prometheus.Registry

	Queries       *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	Imports       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queryassist_queries_total",
			Help: "Prompts and plans handled, by mode and outcome",
		}, []string{"mode", "outcome"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "queryassist_query_duration_seconds",
			Help:    "Time spent answering prompts and executing plans",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		Imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queryassist_imports_total",
			Help: "Dataset imports, by format and outcome",
		}, []string{"format", "outcome"}),
	}
	m.registry.MustRegister(
		m.Queries,
		m.QueryDuration,
		m.Imports,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeQuery(mode, outcome string, seconds float64) {
	m.Queries.With(prometheus.Labels{"mode": mode, "outcome": outcome}).Inc()
	m.QueryDuration.With(prometheus.Labels{"mode": mode}).Observe(seconds)
}

func (m *Metrics) observeImport(format, outcome string) {
	m.Imports.With(prometheus.Labels{"format": format, "outcome": outcome}).Inc()
}
