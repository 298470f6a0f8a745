// Package metrics defines the Prometheus metric collectors used across the
// content core and exposes an HTTP handler for scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the content core.
type Metrics struct {
	MutationsTotal        *prometheus.CounterVec
	MutationFailuresTotal *prometheus.CounterVec
	BackupsTotal          *prometheus.CounterVec
	RestoresTotal         *prometheus.CounterVec
	EventsAppendedTotal   *prometheus.CounterVec
	EventsDroppedTotal    *prometheus.CounterVec
	SearchesTotal         prometheus.Counter
	SearchLatency         prometheus.Histogram
	SearchResultsCount    prometheus.Histogram
	CacheHitsTotal        prometheus.Counter
	CacheMissesTotal      prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		MutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_mutations_total",
				Help: "Total content mutations by content type and change kind.",
			},
			[]string{"content_type", "kind"},
		),
		MutationFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_mutation_failures_total",
				Help: "Total failed content mutations by content type.",
			},
			[]string{"content_type"},
		),
		BackupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_backups_total",
				Help: "Total backup snapshots written by content type.",
			},
			[]string{"content_type"},
		),
		RestoresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_restores_total",
				Help: "Total collection restores by content type.",
			},
			[]string{"content_type"},
		),
		EventsAppendedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_events_appended_total",
				Help: "Total events appended to the behavioral log by stream.",
			},
			[]string{"stream"},
		),
		EventsDroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_events_dropped_total",
				Help: "Total events dropped (malformed or append failure) by stream.",
			},
			[]string{"stream"},
		),
		SearchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "content_searches_total",
				Help: "Total search queries executed.",
			},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "content_search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "content_search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "content_search_cache_hits_total",
				Help: "Total search cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "content_search_cache_misses_total",
				Help: "Total search cache misses.",
			},
		),
	}

	prometheus.MustRegister(
		m.MutationsTotal,
		m.MutationFailuresTotal,
		m.BackupsTotal,
		m.RestoresTotal,
		m.EventsAppendedTotal,
		m.EventsDroppedTotal,
		m.SearchesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)
	return m
}
