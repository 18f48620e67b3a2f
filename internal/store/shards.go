// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/liamnap/RatedStats-Achiev/internal/metrics"
)

// ShardPath returns the canonical shard database path for one batch of a
// region's sync run. Batch workers write here; the finalize pass globs the
// same pattern back up.
func ShardPath(dir, region string, batchID int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_batch_%d.duckdb", region, batchID))
}

// FinalPath returns the path of the consolidated database the finalize pass
// builds by folding every shard together.
func FinalPath(dir, region string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_final.duckdb", region))
}

// FindShards returns every shard database produced for region under dir,
// ordered by batch ID. Ordering is numeric, not lexicographic, so batch 2
// merges before batch 10 and the finalize output is reproducible.
func FindShards(dir, region string) ([]string, error) {
	pattern := filepath.Join(dir, fmt.Sprintf("%s_batch_*.duckdb", region))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob shards %s: %w", pattern, err)
	}

	type shard struct {
		path string
		id   int
	}
	shards := make([]shard, 0, len(matches))
	for _, path := range matches {
		id, ok := shardBatchID(path, region)
		if !ok {
			continue
		}
		shards = append(shards, shard{path: path, id: id})
	}
	sort.Slice(shards, func(i, j int) bool { return shards[i].id < shards[j].id })

	paths := make([]string, len(shards))
	for i, sh := range shards {
		paths[i] = sh.path
	}
	return paths, nil
}

// shardBatchID extracts the numeric batch ID from a shard filename.
func shardBatchID(path, region string) (int, bool) {
	base := filepath.Base(path)
	prefix := region + "_batch_"
	if !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, ".duckdb") {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(base, prefix), ".duckdb"))
	if err != nil {
		return 0, false
	}
	return id, true
}

// MarkLeaderboard records that each key appeared on a live leaderboard this
// run. Duplicate marks are harmless.
func (s *Store) MarkLeaderboard(ctx context.Context, keys []string) (err error) {
	if len(keys) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO leaderboard_keys (key) VALUES (?) ON CONFLICT (key) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare leaderboard insert: %w", err)
	}
	defer stmt.Close()

	for _, key := range keys {
		if _, err = stmt.ExecContext(ctx, key); err != nil {
			err = fmt.Errorf("mark leaderboard %s: %w", key, err)
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit leaderboard keys: %w", err)
	}

	metrics.RecordDBQuery("mark_leaderboard", "leaderboard_keys", time.Since(start), nil)
	return nil
}

// LeaderboardKeys returns the set of keys seen on live leaderboards.
func (s *Store) LeaderboardKeys(ctx context.Context) (map[string]struct{}, error) {
	start := time.Now()

	rows, err := s.db.QueryContext(ctx, `SELECT key FROM leaderboard_keys`)
	metrics.RecordDBQuery("leaderboard_keys", "leaderboard_keys", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard_keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan leaderboard key: %w", err)
		}
		keys[key] = struct{}{}
	}
	return keys, rows.Err()
}
