package session

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of a benchmark session. Each
// Metrics owns its registry, so sessions never collide on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	RunsTotal         *prometheus.CounterVec
	CombinationsTotal *prometheus.CounterVec
	RunSeconds        *prometheus.HistogramVec
	BuildSeconds      prometheus.Gauge
}

// NewMetrics creates and registers the session collectors.
func NewMetrics() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}

	m.RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heapbench_runs_total",
			Help: "Timed sort executions recorded",
		},
		[]string{"language"},
	)

	m.CombinationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heapbench_combinations_total",
			Help: "Measured combinations by outcome",
		},
		[]string{"language", "status"},
	)

	m.RunSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "heapbench_run_seconds",
			Help:    "Elapsed sort time of a single run",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 14),
		},
		[]string{"language", "case_type"},
	)

	m.BuildSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "heapbench_build_seconds",
			Help: "Time spent compiling the external implementation",
		},
	)

	m.Registry.MustRegister(
		m.RunsTotal,
		m.CombinationsTotal,
		m.RunSeconds,
		m.BuildSeconds,
	)

	return m
}

// Handler serves the session registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
