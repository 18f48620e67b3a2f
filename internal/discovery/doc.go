// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

// Package discovery caches the per-region leaderboard discovery results
// (current season ID, rated bracket list, resolved static namespace) in a
// BadgerDB with a TTL.
//
// Discovery costs a few dozen API calls per region. Batch runs for the same
// region execute back to back in CI, so re-deriving these values every shard
// would waste allowance on answers that change at most weekly. Entries
// expire through BadgerDB's native TTL; readers never see stale data and a
// mid-run season rollover can be handled by Invalidate.
package discovery
