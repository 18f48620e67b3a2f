// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/liamnap/RatedStats-Achiev/internal/logging"
	"github.com/liamnap/RatedStats-Achiev/internal/metrics"
	"github.com/liamnap/RatedStats-Achiev/internal/models"
)

// mergedRow is one incoming snapshot staged for the merge transaction.
type mergedRow struct {
	key  string
	snap *models.CharacterSnapshot
}

// MergeExternal folds every snapshot from other into s using per-achievement
// timestamp precedence. Keys missing from s are inserted as-is; keys present
// on both sides get models.MergeAchievements applied per achievement ID, so
// a record with a known completion timestamp is never clobbered by one
// without. The operation is idempotent: merging a store into itself (or
// merging the same shard twice) changes nothing.
//
// Incoming rows are staged in memory before the write transaction opens,
// which keeps self-merge well defined and makes the whole merge atomic.
func (s *Store) MergeExternal(ctx context.Context, other *Store) error {
	start := time.Now()

	staged := make([]mergedRow, 0, 1024)
	if err := other.Iterate(ctx, func(key string, snap *models.CharacterSnapshot) error {
		staged = append(staged, mergedRow{key: key, snap: snap})
		return nil
	}); err != nil {
		return fmt.Errorf("read merge source %s: %w", other.Path(), err)
	}

	inserted, merged, err := s.mergeStaged(ctx, staged)
	if err != nil {
		return err
	}

	// Leaderboard membership travels with the snapshots; finalize elects
	// cluster roots from the union across all shards.
	lbKeys, err := other.LeaderboardKeys(ctx)
	if err != nil {
		return err
	}
	sortedLB := make([]string, 0, len(lbKeys))
	for key := range lbKeys {
		sortedLB = append(sortedLB, key)
	}
	sort.Strings(sortedLB)
	if err := s.MarkLeaderboard(ctx, sortedLB); err != nil {
		return err
	}

	metrics.RecordDBQuery("merge_external", "char_data", time.Since(start), nil)
	logging.Info().
		Str("source", other.Path()).
		Str("target", s.path).
		Int("inserted", inserted).
		Int("merged", merged).
		Int("leaderboard_keys", len(sortedLB)).
		Msg("[STORE] External shard merged")
	return nil
}

// MergeSnapshots folds an in-memory snapshot map into s under the same
// precedence rules as MergeExternal. Finalize uses this to fold previously
// published entries in before the shard databases, so live rows land on top
// of seeded ones and win every per-record tie.
func (s *Store) MergeSnapshots(ctx context.Context, snapshots map[string]*models.CharacterSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	start := time.Now()

	staged := make([]mergedRow, 0, len(snapshots))
	for key, snap := range snapshots {
		staged = append(staged, mergedRow{key: key, snap: snap})
	}
	sort.Slice(staged, func(i, j int) bool { return staged[i].key < staged[j].key })

	inserted, merged, err := s.mergeStaged(ctx, staged)
	if err != nil {
		return err
	}

	metrics.RecordDBQuery("merge_snapshots", "char_data", time.Since(start), nil)
	logging.Info().
		Str("target", s.path).
		Int("inserted", inserted).
		Int("merged", merged).
		Msg("[STORE] Snapshot set merged")
	return nil
}

// mergeStaged applies the staged rows inside one transaction. Rows must be
// fully staged before the call so reads of the pre-merge state stay
// consistent.
func (s *Store) mergeStaged(ctx context.Context, staged []mergedRow) (inserted, merged int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().
					Err(rbErr).
					AnErr("original_error", err).
					Msg("[STORE] Merge rollback failed")
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO char_data (key, guid, achievements) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET guid = excluded.guid, achievements = excluded.achievements`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare merge upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range staged {
		existing, getErr := s.Get(ctx, row.key)
		if getErr != nil {
			err = getErr
			return 0, 0, err
		}

		final := row.snap
		if existing != nil {
			final = &models.CharacterSnapshot{
				GUID:         resolveGUID(existing.GUID, row.snap.GUID),
				Achievements: models.MergeAchievements(existing.Achievements, row.snap.Achievements),
			}
			merged++
		} else {
			inserted++
		}

		blob, encErr := models.EncodeAchievements(final.Achievements)
		if encErr != nil {
			err = fmt.Errorf("encode achievements for %s: %w", row.key, encErr)
			return 0, 0, err
		}
		if _, err = stmt.ExecContext(ctx, row.key, final.GUID, string(blob)); err != nil {
			err = fmt.Errorf("merge upsert %s: %w", row.key, err)
			return 0, 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit merge: %w", err)
	}
	return inserted, merged, nil
}

// resolveGUID keeps the GUID already stored unless it is the zero
// placeholder left by seed rows whose GUID the published output predates.
func resolveGUID(existing, incoming int64) int64 {
	if existing != 0 {
		return existing
	}
	return incoming
}
