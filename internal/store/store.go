// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

/*
store.go - DuckDB Record Store

This file provides the Store struct wrapping one DuckDB shard database and
the snapshot CRUD operations used during live ingestion.

Tables:
  - char_data: one row per identity key with the numeric GUID and the
    achievements blob (JSON mapping of achievement ID to name/timestamp)
  - leaderboard_keys: identity keys seen on a live leaderboard this run,
    persisted so the finalize pass can elect cluster roots without
    re-fetching leaderboards

Write Strategy:
Single-writer per shard. Live ingestion commits through UpsertBatch at
sub-batch checkpoints, one transaction per checkpoint, so a mid-run crash
loses at most the current in-memory sub-batch and never corrupts committed
rows. Upsert fully replaces a snapshot; the precedence-based merge lives in
merge.go and applies only when combining shards.

Related Files:
  - merge.go: precedence merge for combining independently produced shards
  - shards.go: shard file naming, discovery, leaderboard key persistence
*/

//nolint:staticcheck // File documentation, not package doc
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/liamnap/RatedStats-Achiev/internal/config"
	"github.com/liamnap/RatedStats-Achiev/internal/logging"
	"github.com/liamnap/RatedStats-Achiev/internal/metrics"
	"github.com/liamnap/RatedStats-Achiev/internal/models"
)

// Store wraps one DuckDB shard database.
//
// Thread Safety: safe for concurrent readers; writes are serialized by the
// ingestion pipeline (single writer per shard by design).
type Store struct {
	db   *sql.DB
	path string
}

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// Open opens (or creates) the shard database at path.
func Open(path string, cfg *config.StoreConfig) (*Store, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "2GB"
	}

	// Ensure the parent directory exists so a fresh checkout can run batch 0
	// without manual setup.
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s", path, threads, maxMemory)
	db, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}

	s := &Store{db: db, path: path}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize store %s: %w", path, err)
	}

	logging.Debug().Str("path", path).Msg("[STORE] Shard opened")
	return s, nil
}

// Path returns the shard file path.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS char_data (
			key VARCHAR PRIMARY KEY,
			guid BIGINT NOT NULL,
			achievements VARCHAR NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS leaderboard_keys (
			key VARCHAR PRIMARY KEY
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// Upsert fully replaces the snapshot stored for key. Used during live
// ingestion where the freshly fetched snapshot is authoritative for the
// filtered achievement set at this moment.
func (s *Store) Upsert(ctx context.Context, key string, snap *models.CharacterSnapshot) error {
	start := time.Now()

	blob, err := models.EncodeAchievements(snap.Achievements)
	if err != nil {
		return fmt.Errorf("encode achievements for %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO char_data (key, guid, achievements) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET guid = excluded.guid, achievements = excluded.achievements`,
		key, snap.GUID, string(blob))
	metrics.RecordDBQuery("upsert", "char_data", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// UpsertBatch replaces the snapshots for every key in batch inside a single
// transaction. This is the checkpoint commit used by the pipeline after each
// sub-batch; either the whole sub-batch lands or none of it does.
func (s *Store) UpsertBatch(ctx context.Context, batch map[string]*models.CharacterSnapshot) (err error) {
	if len(batch) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().
					Err(rbErr).
					AnErr("original_error", err).
					Msg("[STORE] Transaction rollback failed")
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO char_data (key, guid, achievements) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET guid = excluded.guid, achievements = excluded.achievements`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	// Deterministic write order keeps shard files reproducible for
	// identical inputs.
	keys := make([]string, 0, len(batch))
	for key := range batch {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		snap := batch[key]
		blob, encErr := models.EncodeAchievements(snap.Achievements)
		if encErr != nil {
			err = fmt.Errorf("encode achievements for %s: %w", key, encErr)
			return err
		}
		if _, err = stmt.ExecContext(ctx, key, snap.GUID, string(blob)); err != nil {
			err = fmt.Errorf("upsert %s: %w", key, err)
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	metrics.RecordDBQuery("upsert_batch", "char_data", time.Since(start), nil)
	return nil
}

// Get returns the snapshot for key, or nil when the key is not stored.
func (s *Store) Get(ctx context.Context, key string) (*models.CharacterSnapshot, error) {
	start := time.Now()

	var guid int64
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT guid, achievements FROM char_data WHERE key = ?`, key).Scan(&guid, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	metrics.RecordDBQuery("get", "char_data", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	achievements, err := models.DecodeAchievements([]byte(blob))
	if err != nil {
		return nil, fmt.Errorf("decode achievements for %s: %w", key, err)
	}
	return &models.CharacterSnapshot{GUID: guid, Achievements: achievements}, nil
}

// Iterate streams every stored snapshot in ascending key order. Returning
// an error from fn stops the iteration and propagates the error.
func (s *Store) Iterate(ctx context.Context, fn func(key string, snap *models.CharacterSnapshot) error) error {
	start := time.Now()

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, guid, achievements FROM char_data ORDER BY key`)
	metrics.RecordDBQuery("iterate", "char_data", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("iterate char_data: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, blob string
		var guid int64
		if err := rows.Scan(&key, &guid, &blob); err != nil {
			return fmt.Errorf("scan char_data row: %w", err)
		}
		achievements, err := models.DecodeAchievements([]byte(blob))
		if err != nil {
			return fmt.Errorf("decode achievements for %s: %w", key, err)
		}
		if err := fn(key, &models.CharacterSnapshot{GUID: guid, Achievements: achievements}); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Counts reports the stored row counts and refreshes the store gauges.
func (s *Store) Counts(ctx context.Context) (chars, leaderboard int64, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT count(*) FROM char_data`).Scan(&chars); err != nil {
		return 0, 0, fmt.Errorf("count char_data: %w", err)
	}
	if err = s.db.QueryRowContext(ctx, `SELECT count(*) FROM leaderboard_keys`).Scan(&leaderboard); err != nil {
		return 0, 0, fmt.Errorf("count leaderboard_keys: %w", err)
	}

	metrics.StoreRows.WithLabelValues("char_data").Set(float64(chars))
	metrics.StoreRows.WithLabelValues("leaderboard_keys").Set(float64(leaderboard))
	return chars, leaderboard, nil
}
