// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

// Package luatable reads and writes the published region table format.
//
// The format is a Lua table literal the addon loads directly: one entry per
// player holding the root character key, its alt keys, the numeric GUID and
// flattened idN/nameN achievement pairs. This package is the only place
// that knows the grammar; the writer produces it (writer.go), the parser
// consumes it for seeding and diffing (parser.go), and files.go locates
// region files on disk, skipping git-LFS pointer stubs.
//
// Round-trip is intentionally lossy in one direction: completion timestamps
// are never serialized, so everything seeded back from a published file
// carries nil timestamps and yields to live data under the store's merge
// precedence.
package luatable
