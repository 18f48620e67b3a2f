// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

// Package store persists character achievement snapshots in per-batch DuckDB
// shard databases.
//
// Each batch worker owns exactly one shard file and is its only writer, so
// batches parallelize across CI jobs without any cross-process coordination.
// The finalize pass locates every shard for a region with FindShards and
// folds them into one consolidated database with MergeExternal, which applies
// per-achievement timestamp precedence instead of blind replacement: a record
// whose completion time is known always survives a merge with one whose time
// is unknown. MergeExternal is idempotent, so re-running a failed finalize is
// safe.
//
// Snapshots are stored as a key, a GUID and a JSON achievements blob (see
// models.EncodeAchievements). DuckDB rather than a key-value store because
// the finalize pass runs whole-table scans and cross-shard folds over
// hundreds of thousands of rows, and the columnar engine does that in-process
// with a bounded memory cap.
package store
