// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package blizzard

import (
	"context"
	"fmt"
	"strings"

	"github.com/liamnap/RatedStats-Achiev/internal/logging"
	"github.com/liamnap/RatedStats-Achiev/internal/models"
)

// achievementKeyword matches achievement names either exactly or by prefix.
// Prefix entries cover families that grow every season ("Gladiator: ..."),
// exact entries cover the fixed classic honor ranks.
type achievementKeyword struct {
	kind  string // "exact" or "prefix"
	value string
}

// pvpKeywords is the full selection table for PvP-relevant achievements.
// Names are matched against the en_US achievement index regardless of the
// run locale so the table works identically on all regions.
var pvpKeywords = []achievementKeyword{
	// Classic honor ranks
	{"exact", "Scout"},
	{"exact", "Private"},
	{"exact", "Grunt"},
	{"exact", "Corporal"},
	{"exact", "Sergeant"},
	{"exact", "Senior Sergeant"},
	{"exact", "Master Sergeant"},
	{"exact", "First Sergeant"},
	{"exact", "Sergeant Major"},
	{"exact", "Stone Guard"},
	{"exact", "Knight"},
	{"exact", "Blood Guard"},
	{"exact", "Knight-Lieutenant"},
	{"exact", "Legionnaire"},
	{"exact", "Knight-Captain"},
	{"exact", "Centurion"},
	{"exact", "Knight-Champion"},
	{"exact", "Champion"},
	{"exact", "Lieutenant Commander"},
	{"exact", "Lieutenant General"},
	{"exact", "Commander"},
	{"exact", "General"},
	{"exact", "Marshal"},
	{"exact", "Warlord"},
	{"exact", "Field Marshal"},
	{"exact", "High Warlord"},
	{"exact", "Grand Marshal"},

	// Rated season tiers
	{"prefix", "Combatant I"},
	{"prefix", "Combatant II"},
	{"prefix", "Challenger I"},
	{"prefix", "Challenger II"},
	{"prefix", "Rival I"},
	{"prefix", "Rival II"},
	{"prefix", "Duelist"},
	{"prefix", "Elite:"},
	{"prefix", "Gladiator:"},
	{"prefix", "Legend:"},

	// Special
	{"prefix", "Three's Company: 2700"},

	// Rank-one titles per expansion
	{"prefix", "Hero of the Horde"},
	{"prefix", "Hero of the Alliance"},
	{"prefix", "Primal Gladiator"},
	{"prefix", "Wild Gladiator"},
	{"prefix", "Warmongering Gladiator"},
	{"prefix", "Vindictive Gladiator"},
	{"prefix", "Fearless Gladiator"},
	{"prefix", "Cruel Gladiator"},
	{"prefix", "Ferocious Gladiator"},
	{"prefix", "Fierce Gladiator"},
	{"prefix", "Demonic Gladiator"},
	{"prefix", "Dread Gladiator"},
	{"prefix", "Sinister Gladiator"},
	{"prefix", "Notorious Gladiator"},
	{"prefix", "Corrupted Gladiator"},
	{"prefix", "Sinful Gladiator"},
	{"prefix", "Unchained Gladiator"},
	{"prefix", "Cosmic Gladiator"},
	{"prefix", "Eternal Gladiator"},
	{"prefix", "Crimson Gladiator"},
	{"prefix", "Obsidian Gladiator"},
	{"prefix", "Draconic Gladiator"},
	{"prefix", "Seasoned Gladiator"},
	{"prefix", "Forged Warlord:"},
	{"prefix", "Forged Marshal:"},
	{"prefix", "Forged Legend:"},
	{"prefix", "Forged Gladiator:"},
	{"prefix", "Prized Warlord:"},
	{"prefix", "Prized Marshal:"},
	{"prefix", "Prized Legend:"},
	{"prefix", "Prized Gladiator:"},
	{"prefix", "Astral Warlord:"},
	{"prefix", "Astral Marshal:"},
	{"prefix", "Astral Legend:"},
	{"prefix", "Astral Gladiator:"},
}

type achievementIndexResponse struct {
	Achievements []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"achievements"`
}

// AchievementsSummary is the decoded character achievements profile
// response, reduced to the fields the pipeline consumes.
type AchievementsSummary struct {
	Achievements []EarnedAchievement `json:"achievements"`
}

// EarnedAchievement is one entry of a character's achievements summary.
// CompletedTimestamp is nil for achievements earned before the vendor
// started recording completion times.
type EarnedAchievement struct {
	ID          int `json:"id"`
	Achievement struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"achievement"`
	CompletedTimestamp *int64 `json:"completed_timestamp"`
}

// PvPAchievementIndex fetches the full achievement index for the static
// namespace and reduces it to the PvP-relevant subset, keyed by achievement
// ID. The index URL is static, so repeat calls within a run hit the cache.
func (c *Client) PvPAchievementIndex(ctx context.Context, staticNamespace string) (map[int]string, error) {
	reqURL := fmt.Sprintf("%s/data/wow/achievement/index?namespace=%s&locale=en_US", c.apiBase, staticNamespace)

	var index achievementIndexResponse
	if err := c.FetchJSON(ctx, reqURL, &index); err != nil {
		return nil, fmt.Errorf("failed to fetch achievement index: %w", err)
	}

	matches := make(map[int]string)
	for _, ach := range index.Achievements {
		if MatchesKeyword(ach.Name) {
			matches[ach.ID] = ach.Name
		}
	}

	logging.Debug().
		Int("total_matches", len(matches)).
		Msg("[DISCOVERY] PvP keyword matches resolved")
	return matches, nil
}

// CharacterAchievements fetches the achievements summary for one character.
// Profile URLs are never cached; every call is a live read.
func (c *Client) CharacterAchievements(ctx context.Context, realm, name string) (*AchievementsSummary, error) {
	reqURL := fmt.Sprintf("%s/profile/wow/character/%s/%s/achievements?namespace=profile-%s&locale=%s",
		c.apiBase, strings.ToLower(realm), strings.ToLower(name), c.region, c.locale)

	var summary AchievementsSummary
	if err := c.FetchJSON(ctx, reqURL, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// PvPRecords filters an achievements summary down to the entries present in
// the PvP index, shaped as store records. The display name comes from the
// nested achievement reference, the timestamp stays nil when the summary
// omits it.
func PvPRecords(summary *AchievementsSummary, pvpIndex map[int]string) map[int]models.AchievementRecord {
	if summary == nil {
		return nil
	}
	records := make(map[int]models.AchievementRecord)
	for _, earned := range summary.Achievements {
		if _, ok := pvpIndex[earned.ID]; !ok {
			continue
		}
		records[earned.ID] = models.AchievementRecord{
			ID:                 earned.ID,
			Name:               earned.Achievement.Name,
			CompletedTimestamp: earned.CompletedTimestamp,
		}
	}
	return records
}

// MatchesKeyword reports whether an achievement name is selected by the
// keyword table. First match wins; exact entries are checked before prefix
// entries within the table order. The character checker applies the same
// table to its baseline so both sides of a diff see the same subset.
func MatchesKeyword(name string) bool {
	for _, kw := range pvpKeywords {
		switch kw.kind {
		case "exact":
			if name == kw.value {
				return true
			}
		case "prefix":
			if strings.HasPrefix(name, kw.value) {
				return true
			}
		}
	}
	return false
}
