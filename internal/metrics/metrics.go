// Package metrics exposes Prometheus instrumentation for the data layer:
// query/execute counters, retry counts, latency histograms, and connection
// pool gauges.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Default histogram buckets for statement duration (in seconds).
var defaultBuckets = []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics wraps the registry and collectors. A nil *Metrics is valid and
// records nothing, so instrumentation stays optional.
type Metrics struct {
	registry *prometheus.Registry

	statementsTotal  *prometheus.CounterVec
	retriesTotal     prometheus.Counter
	statementSeconds *prometheus.HistogramVec
	poolIdle         prometheus.GaugeFunc
	poolInUse        prometheus.GaugeFunc
}

// New builds a registry with all data-layer collectors registered.
// poolCounts supplies the live idle/in-use connection counts for the gauges;
// it may be nil.
func New(namespace string, poolCounts func() (idle, inUse int)) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		statementsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statements_total",
			Help:      "Statements executed, by database, operation and result.",
		}, []string{"database", "op", "result"}),
		retriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statement_retries_total",
			Help:      "Statement attempts repeated after a transient connection failure.",
		}),
		statementSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "statement_duration_seconds",
			Help:      "Statement wall time including retries.",
			Buckets:   defaultBuckets,
		}, []string{"database", "op"}),
	}
	registry.MustRegister(m.statementsTotal, m.retriesTotal, m.statementSeconds)

	if poolCounts != nil {
		m.poolIdle = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_idle_connections",
			Help:      "Connections currently idle in the pool.",
		}, func() float64 {
			idle, _ := poolCounts()
			return float64(idle)
		})
		m.poolInUse = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_inuse_connections",
			Help:      "Connections currently checked out of the pool.",
		}, func() float64 {
			_, inUse := poolCounts()
			return float64(inUse)
		})
		registry.MustRegister(m.poolIdle, m.poolInUse)
	}
	return m
}

// ObserveStatement records one finished statement.
func (m *Metrics) ObserveStatement(database, op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.statementsTotal.WithLabelValues(database, op, result).Inc()
	m.statementSeconds.WithLabelValues(database, op).Observe(elapsed.Seconds())
}

// ObserveRetry records one repeated attempt.
func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.retriesTotal.Inc()
}

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
