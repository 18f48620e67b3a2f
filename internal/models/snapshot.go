// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package models

import "sort"

// AchievementRecord is one matched achievement held by a character.
//
// Name is the display string as returned by the vendor at fetch time and may
// change between fetches (it is locale-dependent and occasionally renamed);
// only the ID participates in identity. CompletedTimestamp is nil when the
// completion time is unknown, which is always the case for records seeded
// from previously published output.
type AchievementRecord struct {
	ID                 int
	Name               string
	CompletedTimestamp *int64
}

// CharacterSnapshot is the stored achievement state for one identity key at
// its last successful fetch or merge. Owned exclusively by the record store.
type CharacterSnapshot struct {
	GUID         int64
	Achievements map[int]AchievementRecord
}

// FingerprintToken is one (achievement ID, completion timestamp) pair.
// Two characters holding the same token completed the same achievement at
// the same instant, which in practice only happens for the same player.
type FingerprintToken struct {
	AchievementID int
	Timestamp     int64
}

// Fingerprint derives the similarity signature of a snapshot: the set of
// tokens for every achievement with a known completion timestamp.
//
// Records with a nil timestamp never contribute. Untimed matches are not
// reliable similarity evidence: seeded records all carry nil timestamps and
// would otherwise link every character that ever appeared in prior output.
func (s *CharacterSnapshot) Fingerprint() []FingerprintToken {
	if s == nil || len(s.Achievements) == 0 {
		return nil
	}
	tokens := make([]FingerprintToken, 0, len(s.Achievements))
	for _, rec := range s.Achievements {
		if rec.CompletedTimestamp == nil {
			continue
		}
		tokens = append(tokens, FingerprintToken{AchievementID: rec.ID, Timestamp: *rec.CompletedTimestamp})
	}
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].AchievementID != tokens[j].AchievementID {
			return tokens[i].AchievementID < tokens[j].AchievementID
		}
		return tokens[i].Timestamp < tokens[j].Timestamp
	})
	return tokens
}

// SortedAchievementIDs returns the snapshot's achievement IDs in ascending
// order, the order the output writer serializes them in.
func (s *CharacterSnapshot) SortedAchievementIDs() []int {
	ids := make([]int, 0, len(s.Achievements))
	for id := range s.Achievements {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// MergeAchievements resolves two achievement maps for the same identity
// without losing data. For an ID present on both sides the record with a
// known timestamp wins; when both sides carry timestamps the later one wins;
// when neither does the existing side is kept. IDs present on only one side
// are always kept.
//
// This precedence exists because seed data parsed from previously published
// output deliberately carries nil timestamps and must never clobber live API
// data that has real ones. The result is a fresh map; neither input is
// mutated.
func MergeAchievements(existing, incoming map[int]AchievementRecord) map[int]AchievementRecord {
	merged := make(map[int]AchievementRecord, len(existing)+len(incoming))
	for id, rec := range existing {
		merged[id] = rec
	}
	for id, in := range incoming {
		cur, ok := merged[id]
		if !ok {
			merged[id] = in
			continue
		}
		merged[id] = pickRecord(cur, in)
	}
	return merged
}

// pickRecord applies the timestamp precedence rule to one achievement ID.
func pickRecord(existing, incoming AchievementRecord) AchievementRecord {
	switch {
	case existing.CompletedTimestamp == nil && incoming.CompletedTimestamp != nil:
		return incoming
	case existing.CompletedTimestamp != nil && incoming.CompletedTimestamp == nil:
		return existing
	case existing.CompletedTimestamp != nil && incoming.CompletedTimestamp != nil:
		if *incoming.CompletedTimestamp > *existing.CompletedTimestamp {
			return incoming
		}
		return existing
	default:
		// Neither side has a timestamp; keep what we had.
		return existing
	}
}

// Int64Ptr returns a pointer to v. Convenience for building records with
// known timestamps.
func Int64Ptr(v int64) *int64 {
	return &v
}
