package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "inmet_alerts"

// Poll outcomes used as the "outcome" label of PollsTotal.
const (
	OutcomeSuccess    = "success"
	OutcomeFetchError = "fetch_error"
	OutcomeMalformed  = "malformed"
	OutcomeSkipped    = "skipped"
)

// Metrics holds the Prometheus collectors for the alert pollers.
type Metrics struct {
	PollsTotal     *prometheus.CounterVec   // labels: region, outcome={success,fetch_error,malformed,skipped}
	PollDuration   *prometheus.HistogramVec // labels: region
	Transitions    *prometheus.CounterVec   // labels: region, kind={entered,updated,exited}
	ActiveAlerts   *prometheus.GaugeVec     // labels: region
	LastSuccess    *prometheus.GaugeVec     // labels: region
	SinkErrors     *prometheus.CounterVec   // labels: sink
	PollersRunning prometheus.Gauge

	// Upstream API metrics.
	UpstreamRequests *prometheus.CounterVec   // labels: endpoint={alerts,city}, outcome={success,error}
	UpstreamDuration *prometheus.HistogramVec // labels: endpoint
	CityCache        *prometheus.CounterVec   // labels: result={hit,miss}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as many
// as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Poll cycles by region and outcome.",
		}, []string{"region", "outcome"}),
		PollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of a fetch-parse-resolve-reconcile cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"region"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Alert transitions emitted by region and kind.",
		}, []string{"region", "kind"}),
		ActiveAlerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_alerts",
			Help:      "Alerts currently in effect per region.",
		}, []string{"region"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful poll per region.",
		}, []string{"region"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed transition publishes by sink.",
		}, []string{"sink"}),
		PollersRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pollers_running",
			Help:      "Number of region pollers currently running.",
		}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "INMET API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "INMET API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"endpoint"}),
		CityCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "city_cache_total",
			Help:      "City lookup cache results.",
		}, []string{"result"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PollsTotal,
		m.PollDuration,
		m.Transitions,
		m.ActiveAlerts,
		m.LastSuccess,
		m.SinkErrors,
		m.PollersRunning,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.CityCache,
	}
}
