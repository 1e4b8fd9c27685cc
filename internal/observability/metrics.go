package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "epi_route"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Derivation pipeline metrics.
	DerivationRuns     *prometheus.CounterVec // labels: case_type, outcome={success,error}
	DerivationDuration prometheus.Histogram
	RegionsDerived     prometheus.Counter

	// Source adapter metrics.
	SourceFetches       *prometheus.CounterVec   // labels: source, outcome={success,error}
	SourceFetchDuration *prometheus.HistogramVec // labels: source
	SourceCache         *prometheus.CounterVec   // labels: source, result={hit,miss}
	SnapshotCache       *prometheus.CounterVec   // labels: result={hit,miss,error}

	// Routing metrics.
	RouteQueries  *prometheus.CounterVec // labels: outcome={success,error}
	RouteDuration prometheus.Histogram

	// Publisher metrics.
	PublishRuns      *prometheus.CounterVec // labels: outcome={success,error}
	RowsPublished    prometheus.Counter
	PublisherRunning prometheus.Gauge
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		DerivationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "derivation_runs_total",
			Help:      help("Active-case derivations by case type and outcome."),
		}, []string{"case_type", "outcome"}),
		DerivationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "derivation_duration_seconds",
			Help:      help("Duration of a full derivation including source fetches."),
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		RegionsDerived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "regions_derived_total",
			Help:      help("Region series produced by successful derivations."),
		}),
		SourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      help("Remote table fetches by source and outcome."),
		}, []string{"source", "outcome"}),
		SourceFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      help("Remote table fetch duration in seconds."),
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		SourceCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_cache_total",
			Help:      help("Source table cache lookups by source and result."),
		}, []string{"source", "result"}),
		SnapshotCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_cache_total",
			Help:      help("Per-date active-case snapshot cache lookups by result."),
		}, []string{"result"}),
		RouteQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_queries_total",
			Help:      help("Routing queries by outcome."),
		}, []string{"outcome"}),
		RouteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_duration_seconds",
			Help:      help("Duration of a routing query including the snapshot load."),
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		PublishRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_runs_total",
			Help:      help("Daily derived-table publications by outcome."),
		}, []string{"outcome"}),
		RowsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_published_total",
			Help:      help("Region rows written to the derived-table sink."),
		}),
		PublisherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "publisher_running",
			Help:      help("1 when the publisher loop is active, 0 when shut down."),
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.DerivationRuns,
		m.DerivationDuration,
		m.RegionsDerived,
		m.SourceFetches,
		m.SourceFetchDuration,
		m.SourceCache,
		m.SnapshotCache,
		m.RouteQueries,
		m.RouteDuration,
		m.PublishRuns,
		m.RowsPublished,
		m.PublisherRunning,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}
