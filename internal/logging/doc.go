// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

// Package logging provides centralized zerolog-based structured logging.
//
// The sync runner emits a continuous heartbeat plus per-identity fetch
// telemetry; this package gives every component one configured logger with
// structured fields instead of scattered prints.
//
// # Overview
//
// The package provides:
//   - Zero-allocation structured logging via zerolog
//   - JSON output format for CI runs (machine-parseable)
//   - Console output format for interactive runs (human-readable)
//   - Run-ID propagation through context so concurrent batch output is
//     attributable to its invocation
//   - A log-site throttle for high-frequency warning paths (429 storms)
//   - Credential redaction helpers
//
// # Quick Start
//
//	import "github.com/liamnap/RatedStats-Achiev/internal/logging"
//
//	// Initialize at application startup
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "console",
//	})
//
//	// Log messages with structured fields
//	logging.Info().Str("region", "eu").Int("batch", 3).Msg("Batch starting")
//	logging.Error().Err(err).Str("key", key).Msg("Fetch failed")
//
//	// Context-aware logging
//	ctx := logging.ContextWithRunID(ctx, logging.GenerateRunID())
//	logging.Ctx(ctx).Info().Msg("Processing")
//
// # Configuration
//
// Environment Variables (read by the config package, applied via Init):
//
//	LOG_LEVEL   - Minimum log level: trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - Output format: json, console (default: json)
//
// # Throttled Warnings
//
// Hot paths that can emit the same warning hundreds of times per sweep wrap
// the log site in a Throttle:
//
//	t := logging.NewThrottle(3, 10*time.Second)
//	...
//	t.Do(func() {
//	    logging.Warn().Str("url", url).Msg("Throttled by upstream")
//	})
//
// # Thread Safety
//
// All package-level functions are safe for concurrent use. Init and
// SetLogger take a write lock; log event constructors take a read lock.
package logging
