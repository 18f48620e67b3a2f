// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

// Package checkchar compares one character's published achievements against
// a live API scan. It backs the checkchar diagnostic binary, which answers
// the question behind most bug reports: is the addon showing stale data, or
// did the sync genuinely miss an achievement?
//
// Both sides of the comparison pass through the same keyword table the sync
// pipeline uses, so a difference reported here is a difference the pipeline
// would have published.
package checkchar

import (
	"fmt"
	"sort"
	"strings"

	"github.com/liamnap/RatedStats-Achiev/internal/blizzard"
	"github.com/liamnap/RatedStats-Achiev/internal/luatable"
	"github.com/liamnap/RatedStats-Achiev/internal/models"
)

// BaselineRecords loads the published tables for region under dir and
// returns the keyword-filtered achievements of the entry whose character key
// matches key. Roots and alts both match on the character field only; alt
// membership lists are not searched. An absent region or character yields an
// empty map, the same as a character that was never published.
func BaselineRecords(dir, region, key string) (map[int]models.AchievementRecord, error) {
	entries, err := luatable.LoadRegion(dir, region)
	if err != nil {
		return nil, err
	}

	want := strings.ToLower(key)
	for i := range entries {
		if strings.ToLower(entries[i].Character) == want {
			return FilterKeywords(entries[i].Achievements), nil
		}
	}
	return map[int]models.AchievementRecord{}, nil
}

// FilterKeywords returns the subset of records whose names pass the PvP
// keyword table.
func FilterKeywords(records map[int]models.AchievementRecord) map[int]models.AchievementRecord {
	out := make(map[int]models.AchievementRecord, len(records))
	for id, rec := range records {
		if blizzard.MatchesKeyword(rec.Name) {
			out[id] = rec
		}
	}
	return out
}

// APIRecords reduces a live achievements summary to the keyword-filtered
// record map, keeping completion timestamps.
func APIRecords(summary *blizzard.AchievementsSummary) map[int]models.AchievementRecord {
	out := make(map[int]models.AchievementRecord)
	if summary == nil {
		return out
	}
	for _, earned := range summary.Achievements {
		name := earned.Achievement.Name
		if !blizzard.MatchesKeyword(name) {
			continue
		}
		out[earned.ID] = models.AchievementRecord{
			ID:                 earned.ID,
			Name:               name,
			CompletedTimestamp: earned.CompletedTimestamp,
		}
	}
	return out
}

// Report holds the three-way difference between the published baseline and
// a live API scan. Each bucket lists achievement IDs in ascending order.
type Report struct {
	// MissingInLua: earned according to the API, absent from the
	// published table. The usual "sync hasn't caught up yet" case.
	MissingInLua []int

	// MissingInAPI: published but absent from the live scan. Seen after
	// faction changes and on achievements the vendor retired.
	MissingInAPI []int

	// TimestampChanged: present on both sides under the same name with
	// two different completion timestamps. Baselines parsed from
	// published tables carry no timestamps, so this bucket only fills
	// when the baseline comes from a richer source.
	TimestampChanged []int
}

// Diff compares the baseline against a live scan.
func Diff(baseline, api map[int]models.AchievementRecord) Report {
	var rep Report
	for id := range api {
		if _, ok := baseline[id]; !ok {
			rep.MissingInLua = append(rep.MissingInLua, id)
		}
	}
	for id := range baseline {
		if _, ok := api[id]; !ok {
			rep.MissingInAPI = append(rep.MissingInAPI, id)
		}
	}
	for id, live := range api {
		base, ok := baseline[id]
		if !ok || base.Name != live.Name {
			continue
		}
		if base.CompletedTimestamp == nil || live.CompletedTimestamp == nil {
			continue
		}
		if *base.CompletedTimestamp != *live.CompletedTimestamp {
			rep.TimestampChanged = append(rep.TimestampChanged, id)
		}
	}

	sort.Ints(rep.MissingInLua)
	sort.Ints(rep.MissingInAPI)
	sort.Ints(rep.TimestampChanged)
	return rep
}

var snippetEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Snippet renders records as a pasteable row in the published table format,
// numbered from 1 in ascending achievement-ID order. The GUID is whatever
// the caller knows; zero when unknown, like a seeded row.
func Snippet(key string, guid int64, records map[int]models.AchievementRecord) string {
	parts := make([]string, 0, 2+2*len(records))
	parts = append(parts,
		`character="`+key+`"`,
		fmt.Sprintf("guid=%d", guid),
	)

	ids := SortedIDs(records)
	for i, id := range ids {
		parts = append(parts,
			fmt.Sprintf("id%d=%d", i+1, id),
			fmt.Sprintf(`name%d="%s"`, i+1, snippetEscaper.Replace(records[id].Name)),
		)
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// SortedIDs returns the record keys in ascending order, the iteration order
// every printed section uses.
func SortedIDs(records map[int]models.AchievementRecord) []int {
	ids := make([]int, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
