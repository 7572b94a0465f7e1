// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchesTotal            *prometheus.CounterVec
	fetchDurationSeconds    *prometheus.HistogramVec
	rateLimitDelaySeconds   *prometheus.HistogramVec
	eventsExtractedTotal    *prometheus.CounterVec
	eventsIngestedTotal     *prometheus.CounterVec
	staleEventsRemovedTotal prometheus.Counter
	runDurationSeconds      prometheus.Histogram
	sourceRunsTotal         *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventtide_fetches_total",
				Help: "Total page fetches, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventtide_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by source.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventtide_rate_limit_delay_seconds",
				Help:    "Delay introduced by per-source request pacing.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"source"},
		)

		eventsExtractedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventtide_events_extracted_total",
				Help: "Raw events produced, labeled by source and extraction stage.",
			},
			[]string{"source", "stage"},
		)

		eventsIngestedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventtide_events_ingested_total",
				Help: "Ingestion outcomes, labeled by result (added, updated, error).",
			},
			[]string{"result"},
		)

		staleEventsRemovedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "eventtide_stale_events_removed_total",
				Help: "Events evicted by the retention sweep.",
			},
		)

		runDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "eventtide_run_duration_seconds",
				Help:    "Histogram of full coordinator run durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		sourceRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventtide_source_runs_total",
				Help: "Per-source pipeline runs, labeled by source and status.",
			},
			[]string{"source", "status"},
		)
	})
}

// ObserveFetch records one fetch attempt outcome.
func ObserveFetch(source, outcome string, d time.Duration) {
	if fetchesTotal == nil {
		return
	}
	fetchesTotal.WithLabelValues(source, outcome).Inc()
	fetchDurationSeconds.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveRateLimitDelay records pacing delay for a source.
func ObserveRateLimitDelay(source string, d time.Duration) {
	if rateLimitDelaySeconds == nil {
		return
	}
	rateLimitDelaySeconds.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveExtracted records raw events produced by a strategy stage.
func ObserveExtracted(source, stage string, n int) {
	if eventsExtractedTotal == nil {
		return
	}
	eventsExtractedTotal.WithLabelValues(source, stage).Add(float64(n))
}

// ObserveIngest records ingestion outcomes.
func ObserveIngest(result string, n int) {
	if eventsIngestedTotal == nil {
		return
	}
	eventsIngestedTotal.WithLabelValues(result).Add(float64(n))
}

// ObserveEviction records the retention sweep result.
func ObserveEviction(n int64) {
	if staleEventsRemovedTotal == nil {
		return
	}
	staleEventsRemovedTotal.Add(float64(n))
}

// ObserveRun records a full coordinator run.
func ObserveRun(d time.Duration) {
	if runDurationSeconds == nil {
		return
	}
	runDurationSeconds.Observe(d.Seconds())
}

// ObserveSourceRun records a per-source pipeline outcome.
func ObserveSourceRun(source, status string) {
	if sourceRunsTotal == nil {
		return
	}
	sourceRunsTotal.WithLabelValues(source, status).Inc()
}
