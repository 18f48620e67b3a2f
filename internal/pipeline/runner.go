// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

/*
Run Modes

The runner exposes the three entry points the sync command dispatches on:

  - RunBatch: discover the identity universe, slice the deterministic window
    for this batch, fetch it, and leave the results in a per-batch shard plus
    a diagnostic partial table.
  - RunFinalize: no live fetches. Fold seed snapshots and every batch shard
    into the final store, recompute the cluster partition from scratch, and
    publish the region table.
  - RunListIdentities: print the discovered key universe for window planning.

Determinism

Batch windows slice a sorted key list, so runs with the same parameters
always address the same identities. Finalize merges shards in ascending
batch order and seeds before shards, so live rows win every per-record tie
against seeded ones.

Related Files

  - internal/pipeline/sweep.go - the fetch loop RunBatch drives
  - internal/store/shards.go - shard naming and enumeration
  - internal/cluster/cluster.go - the partition RunFinalize publishes
*/
package pipeline //nolint:staticcheck // File documentation, not package doc.

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/liamnap/RatedStats-Achiev/internal/blizzard"
	"github.com/liamnap/RatedStats-Achiev/internal/cluster"
	"github.com/liamnap/RatedStats-Achiev/internal/config"
	"github.com/liamnap/RatedStats-Achiev/internal/discovery"
	"github.com/liamnap/RatedStats-Achiev/internal/logging"
	"github.com/liamnap/RatedStats-Achiev/internal/luatable"
	"github.com/liamnap/RatedStats-Achiev/internal/metrics"
	"github.com/liamnap/RatedStats-Achiev/internal/models"
	"github.com/liamnap/RatedStats-Achiev/internal/store"
)

// APIClient is the surface of the Battle.net client the pipeline consumes.
// *blizzard.Client satisfies it; tests substitute scripted fakes.
type APIClient interface {
	profileFetcher
	CurrentSeasonID(ctx context.Context) (int, error)
	Brackets(ctx context.Context, seasonID int) ([]string, error)
	ResolveStaticNamespace(ctx context.Context) (string, error)
	LeaderboardCharacters(ctx context.Context, seasonID int, brackets []string) (map[int64]models.Identity, error)
	PvPAchievementIndex(ctx context.Context, staticNamespace string) (map[int]string, error)
}

var _ APIClient = (*blizzard.Client)(nil)

// Runner executes one run mode for one region. A Runner is built per process
// invocation; nothing in it survives across runs except what the discovery
// cache and the shard files persist.
type Runner struct {
	cfg         *config.Config
	client      APIClient
	cache       *discovery.Cache
	progress    *Progress
	concurrency int
}

// New builds a Runner. The cache may be nil, in which case every run
// discovers season metadata live. Finalize runs never touch the client, so a
// nil client is acceptable there.
func New(cfg *config.Config, client APIClient, cache *discovery.Cache) *Runner {
	return &Runner{
		cfg:         cfg,
		client:      client,
		cache:       cache,
		progress:    NewProgress(),
		concurrency: cfg.PerSecondCap(),
	}
}

// Progress exposes the shared run state for the ops status endpoint.
func (r *Runner) Progress() *Progress {
	return r.progress
}

// BatchParams selects the identity window a batch run processes. When Limit
// is positive the explicit Offset/Limit window wins; otherwise the window is
// batch BatchID of the configured batch size. TotalBatches only annotates
// the partial output header.
type BatchParams struct {
	BatchID      int
	TotalBatches int
	Offset       int
	Limit        int
}

func (r *Runner) selectWindow(keys []string, params BatchParams) []string {
	if params.Limit > 0 {
		return Window(keys, params.Offset, params.Limit)
	}
	return WindowForBatch(keys, params.BatchID, r.cfg.Sync.BatchSize)
}

// RunBatch fetches one identity window into its shard. The shard carries
// only live results; seed snapshots join at finalize time, where the merge
// precedence makes the two orders equivalent.
func (r *Runner) RunBatch(ctx context.Context, params BatchParams) error {
	start := time.Now()
	region := r.cfg.Region.Code

	ws, err := r.discover(ctx)
	if err != nil {
		return err
	}

	keys := sortedKeys(ws.identities)
	window := r.selectWindow(keys, params)
	logging.Ctx(ctx).Info().
		Str("region", region).
		Int("batch_id", params.BatchID).
		Int("universe", len(keys)).
		Int("window", len(window)).
		Msg("[BATCH] Identity window selected")

	st, err := store.Open(store.ShardPath(r.cfg.Store.Dir, region, params.BatchID), &r.cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore(st, "shard")

	// Every shard carries the full live membership set; finalize takes the
	// union, so root election works no matter which shards survive.
	if err := st.MarkLeaderboard(ctx, sortedKeys(ws.live)); err != nil {
		return err
	}

	if len(window) == 0 {
		logging.Ctx(ctx).Warn().
			Str("region", region).
			Int("batch_id", params.BatchID).
			Msg("[BATCH] Window past end of identity universe, shard left empty")
		return nil
	}

	idents := make([]models.Identity, 0, len(window))
	for _, key := range window {
		idents = append(idents, ws.identities[key])
	}

	sw := &sweeper{
		sync:        r.cfg.Sync,
		client:      r.client,
		store:       st,
		pvpIndex:    ws.pvpIndex,
		progress:    r.progress,
		concurrency: r.concurrency,
	}
	if err := sw.run(ctx, idents); err != nil {
		return err
	}

	entries, err := shardEntries(ctx, st)
	if err != nil {
		return err
	}
	partial, err := luatable.WritePartial(r.cfg.Store.Dir, region, params.BatchID, params.TotalBatches, entries)
	if err != nil {
		return err
	}

	metrics.RecordSyncComplete(time.Since(start))
	logging.Ctx(ctx).Info().
		Str("region", region).
		Int("batch_id", params.BatchID).
		Int("stored", len(entries)).
		Str("partial", partial).
		Dur("elapsed", time.Since(start)).
		Msg("[BATCH] Batch run complete")
	return nil
}

// RunFinalize merges seed data and all batch shards into the final store,
// recomputes the cluster partition, and publishes the region table. It
// performs no live fetches; everything it publishes was committed by batch
// runs or parsed from previous output.
func (r *Runner) RunFinalize(ctx context.Context, totalBatches int) error {
	start := time.Now()
	region := r.cfg.Region.Code

	seed, _, err := r.loadSeed()
	if err != nil {
		return err
	}

	shards, err := store.FindShards(r.cfg.Store.Dir, region)
	if err != nil {
		return err
	}
	if len(shards) == 0 && totalBatches > 1 {
		return fmt.Errorf("finalize for %s expected shards from %d batches under %s, found none", region, totalBatches, r.cfg.Store.Dir)
	}

	final, err := openFreshFinal(r.cfg, region)
	if err != nil {
		return err
	}
	defer closeStore(final, "final")

	// Seed first, shards second: live rows land on top of seeded ones and
	// win every per-record tie.
	if err := final.MergeSnapshots(ctx, seed); err != nil {
		return err
	}
	for _, shardPath := range shards {
		shard, err := store.Open(shardPath, &r.cfg.Store)
		if err != nil {
			return fmt.Errorf("open shard %s: %w", shardPath, err)
		}
		mergeErr := final.MergeExternal(ctx, shard)
		if cerr := shard.Close(); cerr != nil {
			logging.Ctx(ctx).Warn().Err(cerr).Str("shard", shardPath).Msg("[FINALIZE] Shard close failed")
		}
		if mergeErr != nil {
			return fmt.Errorf("merge shard %s: %w", shardPath, mergeErr)
		}
	}

	chars, lbCount, err := final.Counts(ctx)
	if err != nil {
		return err
	}
	if chars == 0 {
		return fmt.Errorf("finalize for %s has nothing to publish: no seed entries and no shard rows", region)
	}

	snapshots := make(map[string]*models.CharacterSnapshot, chars)
	if err := final.Iterate(ctx, func(key string, snap *models.CharacterSnapshot) error {
		snapshots[key] = snap
		return nil
	}); err != nil {
		return err
	}
	leaderboard, err := final.LeaderboardKeys(ctx)
	if err != nil {
		return err
	}

	clusters := cluster.Build(snapshots, leaderboard)

	entries := make([]luatable.Entry, 0, len(clusters))
	for _, cl := range clusters {
		snap := snapshots[cl.Root]
		entries = append(entries, luatable.Entry{
			Character:    cl.Root,
			Alts:         cl.Alts,
			GUID:         snap.GUID,
			Achievements: snap.Achievements,
		})
	}

	files, err := luatable.WriteRegion(r.cfg.Output.Dir, region, entries, luatable.Options{
		MaxFileBytes: r.cfg.Output.MaxFileBytes,
		Guard:        r.cfg.Output.Guard,
	})
	if err != nil {
		return err
	}

	metrics.RecordSyncComplete(time.Since(start))
	metrics.SyncLastSuccess.SetToCurrentTime()
	logging.Ctx(ctx).Info().
		Str("region", region).
		Int("shards", len(shards)).
		Int64("identities", chars).
		Int64("leaderboard_keys", lbCount).
		Int("clusters", len(clusters)).
		Int("files", len(files)).
		Dur("elapsed", time.Since(start)).
		Msg("[FINALIZE] Region published")
	return nil
}

// RunListIdentities prints the discovered key universe to stdout, one key
// per line in window order, and summary statistics to stderr. Combined with
// the windowing scheme this is enough to plan a batch matrix by hand.
func (r *Runner) RunListIdentities(ctx context.Context, stdout, stderr io.Writer) error {
	ws, err := r.discover(ctx)
	if err != nil {
		return err
	}

	keys := sortedKeys(ws.identities)
	for _, key := range keys {
		if _, err := fmt.Fprintln(stdout, key); err != nil {
			return err
		}
	}

	seedOnly := 0
	for key := range ws.seed {
		if _, ok := ws.live[key]; !ok {
			seedOnly++
		}
	}
	fmt.Fprintf(stderr, "region: %s\n", r.cfg.Region.Code)
	fmt.Fprintf(stderr, "total: %d\n", len(keys))
	fmt.Fprintf(stderr, "leaderboard: %d\n", len(ws.live))
	fmt.Fprintf(stderr, "seeded: %d\n", len(ws.seed))
	fmt.Fprintf(stderr, "seed-only: %d\n", seedOnly)
	fmt.Fprintf(stderr, "batches of %d: %d\n", r.cfg.Sync.BatchSize, batchCount(len(keys), r.cfg.Sync.BatchSize))
	return nil
}

// openFreshFinal removes any previous final database so every finalize
// builds from seed and shards alone, then opens a new one.
func openFreshFinal(cfg *config.Config, region string) (*store.Store, error) {
	path := store.FinalPath(cfg.Store.Dir, region)
	for _, stale := range []string{path, path + ".wal"} {
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove stale final store %s: %w", stale, err)
		}
	}
	return store.Open(path, &cfg.Store)
}

// shardEntries reads a shard back as partial-output entries.
func shardEntries(ctx context.Context, st *store.Store) ([]luatable.Entry, error) {
	var entries []luatable.Entry
	err := st.Iterate(ctx, func(key string, snap *models.CharacterSnapshot) error {
		entries = append(entries, luatable.Entry{
			Character:    key,
			GUID:         snap.GUID,
			Achievements: snap.Achievements,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func closeStore(s *store.Store, role string) {
	if err := s.Close(); err != nil {
		logging.Warn().Err(err).Str("store", role).Msg("[PIPELINE] Store close failed")
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func batchCount(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
