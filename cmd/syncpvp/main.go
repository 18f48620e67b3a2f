// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

// Package main is the entry point for the syncpvp batch runner.
//
// syncpvp fetches PvP achievement data for one Battle.net region and
// publishes it as Lua tables consumable by the RatedStats addon. A full
// region refresh is split across parallel CI jobs: N batch runs each fetch
// one window of the character universe into a DuckDB shard, then a single
// finalize run folds seed data and every shard into the final store,
// recomputes the alt-account clusters, and writes the region's Lua output.
//
// # Run Modes
//
//   - batch: fetch one identity window into partial_outputs/<region>_batch_<id>.duckdb
//     and write the matching <region>_batch_<id>.lua partial
//   - finalize: merge seed plus all shards, cluster, and publish db/<region>.lua
//   - list-identities: print the sorted identity universe to stdout, one key
//     per line, with summary counts on stderr (used to size the CI matrix)
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, an optional ratedstats.yaml, and
// built-in defaults. The environment names match the existing GitHub
// Actions workflows:
//
//	REGION                        region to sync (us, eu, kr, tw)
//	BLIZZARD_CLIENT_ID_EU         per-region credential pair
//	BLIZZARD_CLIENT_SECRET_EU
//	CHAR_PVP_ACHIEVEMENTS_ID      reserve pair, swapped in after the first 429
//	CHAR_PVP_ACHIEVEMENTS_SECRET
//	SYNC_BATCH_SIZE               identities per batch window
//	OPS_ENABLED / OPS_ADDR        optional health and metrics listener
//
// Flags override the environment for the values that vary per CI job, so a
// matrix job only needs -batch-id and -total-batches.
//
// # Example Usage
//
// One batch job out of eight:
//
//	export REGION=eu
//	export BLIZZARD_CLIENT_ID_EU=...
//	export BLIZZARD_CLIENT_SECRET_EU=...
//	./syncpvp -mode batch -batch-id 3 -total-batches 8
//
// The finalize job after all batches uploaded their shards:
//
//	./syncpvp -mode finalize -total-batches 8
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the run context. In-flight API calls finish or
// abort, the shard store closes cleanly, and the process exits non-zero so
// the CI job is marked failed rather than silently truncated.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/liamnap/RatedStats-Achiev/internal/blizzard"
	"github.com/liamnap/RatedStats-Achiev/internal/config"
	"github.com/liamnap/RatedStats-Achiev/internal/discovery"
	"github.com/liamnap/RatedStats-Achiev/internal/logging"
	"github.com/liamnap/RatedStats-Achiev/internal/ops"
	"github.com/liamnap/RatedStats-Achiev/internal/pipeline"
	"github.com/liamnap/RatedStats-Achiev/internal/ratelimit"
)

// Run modes accepted by the -mode flag.
const (
	modeBatch          = "batch"
	modeFinalize       = "finalize"
	modeListIdentities = "list-identities"
)

func main() {
	var (
		mode         string
		regionCode   string
		batchID      int
		totalBatches int
		offset       int
		limit        int
		credSuffix   string
	)

	flag.StringVar(&mode, "mode", modeBatch, "run mode: batch, finalize or list-identities")
	flag.StringVar(&regionCode, "region", "", "region code override (us, eu, kr, tw)")
	flag.IntVar(&batchID, "batch-id", 0, "zero-based batch index (mode=batch)")
	flag.IntVar(&totalBatches, "total-batches", 1, "total batch count for this run")
	flag.IntVar(&offset, "offset", 0, "explicit window offset, used with -limit")
	flag.IntVar(&limit, "limit", 0, "explicit window size; overrides -batch-id when positive")
	flag.StringVar(&credSuffix, "cred-suffix", "", "credential pair suffix override (e.g. EU)")
	flag.Parse()

	switch mode {
	case modeBatch, modeFinalize, modeListIdentities:
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown mode %q (want batch, finalize or list-identities)\n", mode)
		flag.Usage()
		os.Exit(2)
	}
	if batchID < 0 || totalBatches < 1 || offset < 0 || limit < 0 {
		fmt.Fprintln(os.Stderr, "Error: -batch-id and -offset must be >= 0, -total-batches >= 1, -limit >= 0")
		os.Exit(2)
	}

	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Flags win over the environment for the per-job values
	if regionCode != "" {
		cfg.Region.Code = strings.ToLower(regionCode)
	}
	if credSuffix != "" {
		cfg.Blizzard.CredentialSuffix = credSuffix
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("Invalid configuration after flag overrides")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	// Every log line of this run carries the same short run ID, so the
	// interleaved output of parallel CI jobs can be split per job.
	runID := logging.GenerateRunID()

	logging.Info().
		Str("run_id", runID).
		Str("region", cfg.Region.Code).
		Str("mode", mode).
		Int("batch_id", batchID).
		Int("total_batches", totalBatches).
		Msg("Starting PvP achievement sync")

	ctx, cancel := context.WithCancel(logging.ContextWithRunID(context.Background(), runID))
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	// Finalize replays committed shards and never talks to the API, so it
	// skips credentials, limiters and the discovery cache entirely.
	var (
		client   pipeline.APIClient
		limiters []*ratelimit.Limiter
		cache    *discovery.Cache
	)
	if mode != modeFinalize {
		clientID, clientSecret, err := cfg.ResolveCredentials()
		if err != nil {
			logging.Fatal().Err(err).Str("region", cfg.Region.Code).Msg("No API credentials configured")
		}

		tokens := blizzard.NewTokenSource(cfg.Blizzard.TokenURL, clientID, clientSecret, cfg.Blizzard.RequestTimeout)
		perSecond := ratelimit.New("per_second", cfg.PerSecondCap(), time.Second)
		perHour := ratelimit.New("hourly", cfg.Blizzard.HourlyCap, time.Hour)
		limiters = []*ratelimit.Limiter{perSecond, perHour}
		client = blizzard.NewClient(cfg, tokens, perSecond, perHour)

		cache, err = discovery.Open(cfg.Discovery.Dir)
		if err != nil {
			logging.Warn().Err(err).Str("dir", cfg.Discovery.Dir).
				Msg("Discovery cache unavailable, season metadata will be fetched live")
			cache = nil
		}
	}

	runner := pipeline.New(cfg, client, cache)

	var opsErrCh <-chan error
	if cfg.Ops.Enabled {
		sup := ops.NewSupervisor()
		sup.Add(ops.NewServer(cfg.Ops.Addr, ops.Info{Region: cfg.Region.Code, Mode: mode}, runner.Progress(), limiters...))
		opsErrCh = sup.ServeBackground(ctx)
	}

	start := time.Now()
	var runErr error
	switch mode {
	case modeBatch:
		runErr = runner.RunBatch(ctx, pipeline.BatchParams{
			BatchID:      batchID,
			TotalBatches: totalBatches,
			Offset:       offset,
			Limit:        limit,
		})
	case modeFinalize:
		runErr = runner.RunFinalize(ctx, totalBatches)
	case modeListIdentities:
		runErr = runner.RunListIdentities(ctx, os.Stdout, os.Stderr)
	}

	// Stop the ops listener and wait for the supervisor to drain before
	// deciding the exit status.
	cancel()
	if opsErrCh != nil {
		for err := range opsErrCh {
			if err != nil && !errors.Is(err, context.Canceled) {
				logging.Error().Err(err).Msg("Ops listener shutdown error")
			}
		}
	}

	if cache != nil {
		if err := cache.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close discovery cache")
		}
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logging.Warn().Str("mode", mode).Msg("Run interrupted before completion")
		} else {
			logging.Error().Err(runErr).Str("mode", mode).Msg("Run failed")
		}
		os.Exit(1)
	}

	logging.Info().
		Str("region", cfg.Region.Code).
		Str("mode", mode).
		Dur("elapsed", time.Since(start)).
		Msg("Run completed")
}
