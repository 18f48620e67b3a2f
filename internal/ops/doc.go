// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

// Package ops serves the optional operational HTTP listener: a liveness
// endpoint, the Prometheus scrape surface, and a JSON snapshot of the
// running sync (window progress, call rates, limiter balances).
//
// The listener is off by default. Batch runs are long enough that
// scrape-based monitoring pays for itself; short finalize or list runs
// skip the port entirely.
//
// Server implements suture.Service, so a crashed listener is restarted by
// the supervisor while the sync itself keeps running.
package ops
