// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the sync pipeline:
// - Blizzard API call volume, latency and throttling
// - Rate limiter pressure
// - DuckDB store performance
// - Per-sweep ingestion outcomes and retry backlog
// - Clustering and output writing

var (
	// Blizzard API Metrics
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blizzard_fetch_requests_total",
			Help: "Total number of Blizzard API requests by endpoint kind and outcome",
		},
		[]string{"region", "kind", "outcome"}, // kind: "profile", "static", "dynamic", "oauth"; outcome: "ok", "throttled", "timeout", "fatal"
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blizzard_fetch_duration_seconds",
			Help:    "Duration of Blizzard API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"region", "kind"},
	)

	FetchThrottledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blizzard_throttled_total",
			Help: "Total number of HTTP 429/5xx responses from the Blizzard API",
		},
		[]string{"region", "status"},
	)

	FetchTimeoutRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blizzard_timeout_retries_total",
			Help: "Total number of in-client retries after socket timeouts",
		},
		[]string{"region"},
	)

	CredentialRotations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blizzard_credential_rotations_total",
			Help: "Total number of rotations to the fallback credential pair",
		},
	)

	// Rate Limiter Metrics
	RateLimiterWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rate_limiter_wait_seconds",
			Help:    "Time spent waiting for a rate limiter token",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"limiter"}, // "per_second", "hourly"
	)

	RateLimiterTokens = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rate_limiter_tokens",
			Help: "Current token balance of a rate limiter (sampled)",
		},
		[]string{"limiter"},
	)

	// Cache Metrics (url cache, discovery cache)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "url", "discovery"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	StoreRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "store_rows",
			Help: "Row count per store table at last checkpoint",
		},
		[]string{"table"},
	)

	// Ingestion Pipeline Metrics
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of a full sync run in seconds",
			Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600, 7200, 14400},
		},
	)

	IdentityOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_outcomes_total",
			Help: "Per-identity processing outcomes",
		},
		[]string{"outcome"}, // "stored", "empty", "retryable", "dropped"
	)

	RetryBucketSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "retry_bucket_size",
			Help: "Identities queued for the next retry sweep",
		},
	)

	SweepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweeps_total",
			Help: "Total number of retry sweeps performed",
		},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of last successful sync",
		},
	)

	CallRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blizzard_call_rate_per_second",
			Help: "Completed Blizzard calls per second over the last minute (heartbeat sample)",
		},
	)

	// Clustering Metrics
	ClustersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusters_total",
			Help: "Number of identity clusters found by the last finalize pass",
		},
	)

	ClusterSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cluster_size",
			Help:    "Identities per cluster in the last finalize pass",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
		},
	)

	ClusterEdges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cluster_edges_total",
			Help: "Alt-link edges found by the last finalize pass",
		},
	)

	// Output Writer Metrics
	OutputParts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "output_parts",
			Help: "Number of output file parts written by the last pass",
		},
	)

	OutputBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "output_bytes",
			Help: "Total bytes written to output files by the last pass",
		},
	)

	OutputEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "output_entries",
			Help: "Cluster entries written to output files by the last pass",
		},
	)

	// Circuit Breaker Metrics (OAuth token endpoint)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordFetch records one Blizzard API call.
func RecordFetch(region, kind, outcome string, duration time.Duration) {
	FetchRequestsTotal.WithLabelValues(region, kind, outcome).Inc()
	FetchDuration.WithLabelValues(region, kind).Observe(duration.Seconds())
}

// RecordThrottled records an upstream 429/5xx response.
func RecordThrottled(region, status string) {
	FetchThrottledTotal.WithLabelValues(region, status).Inc()
}

// RecordLimiterWait records time spent waiting on a rate limiter token and
// samples the post-acquire balance.
func RecordLimiterWait(limiter string, wait time.Duration, tokens float64) {
	RateLimiterWait.WithLabelValues(limiter).Observe(wait.Seconds())
	RateLimiterTokens.WithLabelValues(limiter).Set(tokens)
}

// RecordDBQuery records a store query with duration and categorized error.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordOutcome records a per-identity pipeline outcome.
func RecordOutcome(outcome string) {
	IdentityOutcomes.WithLabelValues(outcome).Inc()
}

// RecordSweep records one retry sweep and the size of the surviving bucket.
func RecordSweep(bucketSize int) {
	SweepsTotal.Inc()
	RetryBucketSize.Set(float64(bucketSize))
}

// RecordClustering records the shape of a finalize pass's cluster partition.
func RecordClustering(clusterCount, edgeCount int, sizes []int) {
	ClustersTotal.Set(float64(clusterCount))
	ClusterEdges.Set(float64(edgeCount))
	for _, s := range sizes {
		ClusterSize.Observe(float64(s))
	}
}

// RecordOutput records what the output writer produced.
func RecordOutput(parts, entries int, bytes int64) {
	OutputParts.Set(float64(parts))
	OutputEntries.Set(float64(entries))
	OutputBytes.Set(float64(bytes))
}

// RecordSyncComplete records a successful end-to-end run.
func RecordSyncComplete(duration time.Duration) {
	SyncDuration.Observe(duration.Seconds())
	SyncLastSuccess.Set(float64(time.Now().Unix()))
}
