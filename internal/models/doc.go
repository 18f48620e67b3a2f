// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

/*
Package models defines the data structures shared across the sync pipeline.

This package contains the character identity and achievement snapshot types
used by the Blizzard API client, the record store, the clustering engine, and
the Lua output writer. It has no dependencies on other internal packages and
serves as the single source of truth for record shapes.

Key Components:

  - Identity: character name, realm slug, and GUID
  - CharacterSnapshot: a character's PvP achievement map keyed by achievement ID
  - AchievementRecord: one achievement with its optional completion timestamp
  - FingerprintToken: (achievement ID, timestamp) pair used for alt clustering

Character Keys:

Characters are addressed everywhere by a lowercase "name-realm" key produced
by KeyOf. Realm slugs may themselves contain hyphens ("twisting-nether"), so
ParseKey splits on the first hyphen only: the name component can never contain
one, the realm component may.

Merge Semantics:

MergeAchievements combines two achievement maps under timestamp precedence: a
record with a completion timestamp always beats one without, and when both
sides carry timestamps the later one wins. IDs present on only one side are
kept. The merge never mutates its inputs.

Serialization:

Achievement maps are persisted as JSON blobs keyed by decimal achievement ID
strings. EncodeAchievements and DecodeAchievements own that format; nothing
else in the codebase touches the blob layout.

Thread Safety:

All models are plain data structures with no internal locking. They are safe
for concurrent reads; callers own write synchronization.

See Also:

  - internal/store: persists snapshots using the blob encoding
  - internal/cluster: consumes fingerprints for alt detection
  - internal/blizzard: produces snapshots from API responses
*/
package models
