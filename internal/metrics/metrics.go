// Package metrics exposes Prometheus instrumentation for the Kite service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SimulationsTotal counts completed simulations by mode and confidence.
	SimulationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kite",
		Name:      "simulations_total",
		Help:      "Total number of simulations run.",
	}, []string{"mode", "confidence"})

	// SimulationDuration observes end-to-end simulation latency.
	SimulationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "kite",
		Name:      "simulation_duration_seconds",
		Help:      "Simulation pipeline latency.",
		Buckets:   prometheus.DefBuckets,
	})

	// RowsImportedTotal counts imported daily rows by merge mode.
	RowsImportedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kite",
		Name:      "rows_imported_total",
		Help:      "Total number of daily rows imported.",
	}, []string{"mode"})

	// RowsSkippedTotal counts rows dropped during CSV coercion.
	RowsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kite",
		Name:      "rows_skipped_total",
		Help:      "Total number of rows skipped during import.",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kite",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration observes HTTP request latency by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kite",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	// CacheHitsTotal counts simulation cache hits and misses.
	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kite",
		Name:      "cache_results_total",
		Help:      "Simulation cache lookups by outcome.",
	}, []string{"outcome"})
)

// ObserveSimulation records one completed simulation.
func ObserveSimulation(mode, confidence string, start time.Time) {
	SimulationsTotal.WithLabelValues(mode, confidence).Inc()
	SimulationDuration.Observe(time.Since(start).Seconds())
}

// ObserveImport records one import batch.
func ObserveImport(mode string, imported, skipped int) {
	RowsImportedTotal.WithLabelValues(mode).Add(float64(imported))
	if skipped > 0 {
		RowsSkippedTotal.Add(float64(skipped))
	}
}
