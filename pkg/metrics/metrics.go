// Package metrics provides Prometheus metrics for the resolution library.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal tracks resolutions by entity type and decision
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "resolution",
			Name:      "resolutions_total",
			Help:      "Total number of resolutions by entity type and decision",
		},
		[]string{"entity_type", "decision"},
	)

	// ResolutionDuration tracks end-to-end resolution latency in seconds
	ResolutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "resolution",
			Name:      "duration_seconds",
			Help:      "Duration of resolutions in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"entity_type"},
	)

	// CacheHitsTotal tracks resolution cache hits
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of resolution cache hits",
		},
		[]string{"entity_type"},
	)

	// CacheMissesTotal tracks resolution cache misses
	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of resolution cache misses",
		},
		[]string{"entity_type"},
	)

	// LockFailuresTotal tracks lock acquisitions that timed out. The
	// pipeline proceeds without the lock, so this counts risk, not errors.
	LockFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "locking",
			Name:      "acquisition_failures_total",
			Help:      "Total number of lock acquisition timeouts",
		},
	)

	// FuzzyCandidates tracks how many candidates blocking produced per call
	FuzzyCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "fuzzy_candidates",
			Help:      "Number of candidates scored per fuzzy match",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// FullScanFallbacksTotal tracks candidate generation falling back to a
	// full active scan because no blocking key matched
	FullScanFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "full_scan_fallbacks_total",
			Help:      "Total number of full-scan candidate fallbacks",
		},
		[]string{"entity_type"},
	)

	// MergesTotal tracks merge sagas by outcome
	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "merging",
			Name:      "merges_total",
			Help:      "Total number of merge sagas by status",
		},
		[]string{"status"},
	)

	// LLMCallsTotal tracks enrichment calls by outcome
	LLMCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Total number of LLM enrichment calls by status",
		},
		[]string{"status"},
	)

	// ActiveBatches tracks open batch contexts
	ActiveBatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fern",
			Subsystem: "batch",
			Name:      "active_batches",
			Help:      "Number of open batch contexts",
		},
	)

	// AuditFailuresTotal tracks audit entries that could not be persisted.
	// Audit writes never fail a resolution, so failures only show up here
	// and in the logs.
	AuditFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "audit",
			Name:      "write_failures_total",
			Help:      "Total number of failed audit writes",
		},
	)
)

// RecordResolution records one finished resolution
func RecordResolution(entityType, decision string, durationSeconds float64) {
	ResolutionsTotal.WithLabelValues(entityType, decision).Inc()
	ResolutionDuration.WithLabelValues(entityType).Observe(durationSeconds)
}

// RecordCacheHit records a resolution served from cache
func RecordCacheHit(entityType string) {
	CacheHitsTotal.WithLabelValues(entityType).Inc()
}

// RecordCacheMiss records a resolution that had to run the pipeline
func RecordCacheMiss(entityType string) {
	CacheMissesTotal.WithLabelValues(entityType).Inc()
}

// RecordLockFailure records a lock acquisition timeout
func RecordLockFailure() {
	LockFailuresTotal.Inc()
}

// RecordFuzzyCandidates records the candidate set size of one fuzzy match
func RecordFuzzyCandidates(count int) {
	FuzzyCandidates.Observe(float64(count))
}

// RecordFullScanFallback records a candidate generation full-scan fallback
func RecordFullScanFallback(entityType string) {
	FullScanFallbacksTotal.WithLabelValues(entityType).Inc()
}

// RecordMerge records a merge saga outcome
func RecordMerge(status string) {
	MergesTotal.WithLabelValues(status).Inc()
}

// RecordLLMCall records an enrichment call outcome
func RecordLLMCall(status string) {
	LLMCallsTotal.WithLabelValues(status).Inc()
}

// RecordBatchStarted marks a batch context opened
func RecordBatchStarted() {
	ActiveBatches.Inc()
}

// RecordBatchFinished marks a batch context committed or rolled back
func RecordBatchFinished() {
	ActiveBatches.Dec()
}

// RecordAuditFailure records a failed audit write
func RecordAuditFailure() {
	AuditFailuresTotal.Inc()
}
