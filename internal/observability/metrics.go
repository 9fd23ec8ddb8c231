package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// refresh job and its sources.
type Metrics struct {
	CyclesTotal       prometheus.Counter
	ArticlesIngested  prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	ExtractionDropped prometheus.Counter
	RefreshRunning    prometheus.Gauge

	CityFetches   *prometheus.CounterVec // labels: outcome={ok,rate_limited,source_unavailable,storage}
	CycleDuration prometheus.Histogram

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "worldonfire",
			Name:      "refresh_cycles_total",
			Help:      "Total refresh cycles run, timer-triggered or manual.",
		}),
		ArticlesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "worldonfire",
			Name:      "articles_ingested_total",
			Help:      "Total new articles persisted.",
		}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "worldonfire",
			Name:      "duplicates_skipped_total",
			Help:      "Total articles skipped because their dedup key already existed.",
		}),
		ExtractionDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "worldonfire",
			Name:      "extraction_dropped_total",
			Help:      "Total articles dropped because no tracked city matched.",
		}),
		RefreshRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "worldonfire",
			Name:      "refresh_running",
			Help:      "1 while a refresh cycle is in flight.",
		}),
		CityFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "worldonfire",
			Name:      "city_fetches_total",
			Help:      "Per-city fetch attempts by outcome.",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "worldonfire",
			Name:      "refresh_cycle_duration_seconds",
			Help:      "Duration of a complete refresh cycle over all cities.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "worldonfire",
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "worldonfire",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
	}

	prometheus.MustRegister(
		m.CyclesTotal,
		m.ArticlesIngested,
		m.DuplicatesSkipped,
		m.ExtractionDropped,
		m.RefreshRunning,
		m.CityFetches,
		m.CycleDuration,
		m.GeocodeRequests,
		m.GeocodeCache,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		CyclesTotal:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "worldonfire", Name: "refresh_cycles_total"}),
		ArticlesIngested:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "worldonfire", Name: "articles_ingested_total"}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "worldonfire", Name: "duplicates_skipped_total"}),
		ExtractionDropped: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "worldonfire", Name: "extraction_dropped_total"}),
		RefreshRunning:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "worldonfire", Name: "refresh_running"}),
		CityFetches:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "worldonfire", Name: "city_fetches_total"}, []string{"outcome"}),
		CycleDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "worldonfire", Name: "refresh_cycle_duration_seconds"}),
		GeocodeRequests:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "worldonfire", Name: "geocode_requests_total"}, []string{"outcome"}),
		GeocodeCache:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "worldonfire", Name: "geocode_cache_total"}, []string{"result"}),
	}
}
