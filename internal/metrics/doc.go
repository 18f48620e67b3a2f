// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

/*
Package metrics provides Prometheus metrics collection for the sync runner.

All metrics are registered on the default registry via promauto at package
load; the ops listener exposes them at /metrics in Prometheus text format.

# Available Metrics

Blizzard API:
  - blizzard_fetch_requests_total: API calls (counter)
    Labels: region, kind (profile, static, dynamic, oauth), outcome (ok, throttled, timeout, fatal)
  - blizzard_fetch_duration_seconds: call latency (histogram)
  - blizzard_throttled_total: 429/5xx responses (counter), labels: region, status
  - blizzard_timeout_retries_total: in-client timeout retries (counter)
  - blizzard_credential_rotations_total: fallback credential rotations (counter)
  - blizzard_call_rate_per_second: heartbeat-sampled completed-call rate (gauge)

Rate Limiter:
  - rate_limiter_wait_seconds: token wait time (histogram), label: limiter
  - rate_limiter_tokens: sampled token balance (gauge), label: limiter

Caches:
  - cache_hits_total / cache_misses_total / cache_entries
    Labels: cache_type (url, discovery)

Store (DuckDB):
  - duckdb_query_duration_seconds: query time (histogram), labels: operation, table
  - duckdb_query_errors_total: failed queries (counter)
  - store_rows: rows per table at last checkpoint (gauge)

Pipeline:
  - sync_duration_seconds: full run duration (histogram)
  - identity_outcomes_total: per-identity outcomes (counter)
    Labels: outcome (stored, empty, retryable, dropped)
  - retry_bucket_size: identities awaiting the next sweep (gauge)
  - sweeps_total: retry sweeps performed (counter)
  - sync_last_success_timestamp: last successful run (gauge)

Clustering and Output:
  - clusters_total, cluster_edges_total, cluster_size (finalize pass shape)
  - output_parts, output_entries, output_bytes (writer production)

Circuit Breaker (OAuth endpoint):
  - circuit_breaker_state, circuit_breaker_requests_total,
    circuit_breaker_state_transitions_total

# Usage

	import "github.com/liamnap/RatedStats-Achiev/internal/metrics"

	start := time.Now()
	err := store.Upsert(ctx, key, guid, blob)
	metrics.RecordDBQuery("INSERT", "char_data", time.Since(start), err)

Helper functions cover the common recording patterns; the raw collectors are
exported for call sites with unusual needs.
*/
package metrics
