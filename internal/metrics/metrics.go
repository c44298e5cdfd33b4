package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kurisync"

// Metrics holds every collector exported by the service on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	RemoteCalls      *prometheus.CounterVec
	RemoteBackoff    *prometheus.HistogramVec
	SyncRuns         *prometheus.CounterVec
	SyncDuration     *prometheus.HistogramVec
	SyncFailures     *prometheus.CounterVec
	RoundRegressions prometheus.Counter
	HTTPRequests     *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RemoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Remote call attempts by operation and outcome.",
		}, []string{"operation", "outcome"}),
		RemoteBackoff: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_backoff_seconds",
			Help:      "Time waited before retrying a rate limited remote call.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}, []string{"operation"}),
		SyncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Synchronization job runs by job and outcome.",
		}, []string{"job", "outcome"}),
		SyncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_run_duration_seconds",
			Help:      "Duration of synchronization job runs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"job"}),
		SyncFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_entity_failures_total",
			Help:      "Entities a synchronization job failed to reconcile.",
		}, []string{"job"}),
		RoundRegressions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_round_regressions_total",
			Help:      "Ledger reads that reported a lower current round than stored.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RemoteCalls,
		m.RemoteBackoff,
		m.SyncRuns,
		m.SyncDuration,
		m.SyncFailures,
		m.RoundRegressions,
		m.HTTPRequests,
	)

	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
