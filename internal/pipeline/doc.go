// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

// Package pipeline orchestrates the achievement sync: working-set discovery,
// deterministic batch windowing, the throttling-aware fetch loop, and the
// finalize pass that merges shards, clusters identities, and publishes the
// region table.
//
// The pipeline holds no ambient state. Everything a run needs is constructed
// once and carried explicitly, so two runs with the same inputs produce the
// same shards and the same published output.
package pipeline
