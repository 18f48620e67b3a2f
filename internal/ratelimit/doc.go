// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

// Package ratelimit implements the token bucket that paces Blizzard API
// calls. The fetch client composes two instances per region: a per-second
// bucket sized to the regional cap and an hourly bucket for the long-window
// quota. Every outbound request acquires both before dialing.
package ratelimit
