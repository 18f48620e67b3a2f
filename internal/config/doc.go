// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

/*
Package config provides centralized configuration management for RatedStats-Achiev.

This package handles loading, validation, and parsing of configuration for the
sync pipeline and the companion tooling. It ensures consistent settings across
regions and provides sensible defaults for optional values.

# Configuration Sources

Configuration is merged from three layers, later layers winning:

  - Built-in defaults (structs provider)
  - YAML config file (ratedstats.yaml, or CONFIG_PATH)
  - Environment variables (primary source in CI)

# Configuration Structure

The package organizes configuration into logical groups:

  - RegionConfig: which Battle.net region this run targets
  - BlizzardConfig: API credentials, token endpoint, rate caps, retry policy
  - SyncConfig: batch sizes, retry cadence, heartbeat cadence
  - StoreConfig: DuckDB shard directory and tuning
  - OutputConfig: Lua output directory and per-file byte budget
  - DiscoveryConfig: leaderboard discovery cache location and TTL
  - OpsConfig: optional operational HTTP listener
  - LoggingConfig: log level, format, caller annotation

# Environment Variables

Run Target (RegionConfig):
  - REGION: Region code, one of us, eu, kr, tw (default: eu)

Blizzard API (BlizzardConfig):
  - BLIZZARD_CLIENT_ID / BLIZZARD_CLIENT_SECRET: base credential pair
  - BLIZZARD_CLIENT_ID_US / _EU / _KR / _TW: per-region pairs, preferred
    over the base pair when both halves are present
  - BLIZZARD_CLIENT_SECRET_US / _EU / _KR / _TW: secrets for the above
  - CHAR_PVP_ACHIEVEMENTS_ID / _SECRET: reserve pair, used only after
    the first sustained throttle response
  - BLIZZARD_CREDENTIAL_SUFFIX: resolve BLIZZARD_CLIENT_ID_<SUFFIX>
    instead of the pairs above (CI matrix runs)
  - BLIZZARD_TOKEN_URL: OAuth token endpoint (default: https://us.battle.net/oauth/token)
  - BLIZZARD_REQUEST_TIMEOUT: per-request socket timeout (default: 5s)
  - BLIZZARD_MAX_RETRIES: timeout retry ceiling per request (default: 5)
  - BLIZZARD_HOURLY_CAP: hourly request allowance (default: 36000)
  - BLIZZARD_PER_SECOND_CAP: per-second allowance override (default: regional)

Sync Pipeline (SyncConfig):
  - SYNC_BATCH_SIZE: characters per batch window (default: 2500)
  - SYNC_SUB_BATCH_SIZE: characters in flight per sub-batch (default: 2500)
  - SYNC_RETRY_INTERVAL: floor between retry sweeps (default: 10s)
  - SYNC_HEARTBEAT_INTERVAL: progress log cadence (default: 10s)

Store (StoreConfig):
  - STORE_DIR: shard database directory (default: partial_outputs)
  - DUCKDB_MAX_MEMORY: DuckDB memory limit (default: 2GB)
  - DUCKDB_THREADS: DuckDB thread count (default: CPU count)

Output (OutputConfig):
  - OUTPUT_DIR: Lua table output directory (default: .)
  - OUTPUT_MAX_FILE_BYTES: per-file byte budget (default: 50MB)
  - OUTPUT_GUARD: prefix published files with a region conditional (default: false)

Discovery Cache (DiscoveryConfig):
  - DISCOVERY_DIR: cache directory (default: partial_outputs/discovery)
  - DISCOVERY_TTL: cache entry lifetime (default: 24h)

Operational Listener (OpsConfig):
  - OPS_ENABLED: expose /healthz, /metrics, /status (default: false)
  - OPS_ADDR: listen address (default: 127.0.0.1:9184)

Logging (LoggingConfig):
  - LOG_LEVEL: debug, info, warn, error (default: info)
  - LOG_FORMAT: json or console (default: json)
  - LOG_CALLER: annotate log lines with file:line (default: false)

# Usage Example

	import "github.com/liamnap/RatedStats-Achiev/internal/config"

	cfg, err := config.Load()
	if err != nil {
	    log.Fatalf("Failed to load config: %v", err)
	}

	fmt.Printf("Syncing region %s against %s\n", cfg.Region.Code, cfg.APIBase())

# Credential Resolution

ResolveCredentials applies a strict precedence so CI secrets behave
predictably:

 1. BLIZZARD_CREDENTIAL_SUFFIX, when set, names the only pair consulted;
    a missing pair is an error rather than a silent fallback.
 2. The per-region pair for the configured region, when both halves are set.
 3. The base BLIZZARD_CLIENT_ID / BLIZZARD_CLIENT_SECRET pair.

The CHAR_PVP_ACHIEVEMENTS pair never participates in startup resolution.
It is held back for the one-time credential rotation after the API first
answers with a sustained throttle.

# Validation

Validation combines struct tags (go-playground/validator) with cross-field
checks:

  - REGION must be one of us, eu, kr, tw
  - BLIZZARD_TOKEN_URL must be a valid URL
  - BLIZZARD_REQUEST_TIMEOUT within 1s..1m, SYNC_RETRY_INTERVAL within 1s..1h
  - SYNC_SUB_BATCH_SIZE must not exceed SYNC_BATCH_SIZE
  - OPS_ADDR must be a host:port when the listener is enabled
  - OUTPUT_MAX_FILE_BYTES must stay under the 100MB GitHub hard limit

# Defaults

  - REGION: eu (largest leaderboard population)
  - SYNC_BATCH_SIZE: 2500 (one CI shard per six-hour window)
  - BLIZZARD_HOURLY_CAP: 36000 (documented API allowance)
  - OUTPUT_MAX_FILE_BYTES: 50MB (files above GitHub's warning threshold
    get pushed into LFS, which the addon cannot load)
*/
package config
