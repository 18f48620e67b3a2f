// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package checkchar

import (
	"reflect"
	"testing"

	"github.com/liamnap/RatedStats-Achiev/internal/blizzard"
	"github.com/liamnap/RatedStats-Achiev/internal/luatable"
	"github.com/liamnap/RatedStats-Achiev/internal/models"
)

func rec(id int, name string, ts *int64) models.AchievementRecord {
	return models.AchievementRecord{ID: id, Name: name, CompletedTimestamp: ts}
}

func recMap(records ...models.AchievementRecord) map[int]models.AchievementRecord {
	m := make(map[int]models.AchievementRecord, len(records))
	for _, r := range records {
		m[r.ID] = r
	}
	return m
}

func earnedEntry(id int, name string, ts *int64) blizzard.EarnedAchievement {
	e := blizzard.EarnedAchievement{ID: id, CompletedTimestamp: ts}
	e.Achievement.ID = id
	e.Achievement.Name = name
	return e
}

func TestBaselineRecords(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	entries := []luatable.Entry{
		{
			Character: "thrall-kazzak",
			Alts:      []string{"alt-kazzak"},
			GUID:      9,
			Achievements: recMap(
				rec(401, "Grand Marshal", nil),
				rec(999, "Leeroy Jenkins", nil),
			),
		},
		{
			Character:    "other-realm",
			GUID:         2,
			Achievements: recMap(rec(500, "Duelist", nil)),
		},
	}
	if _, err := luatable.WriteRegion(dir, "eu", entries, luatable.Options{}); err != nil {
		t.Fatalf("WriteRegion() error = %v", err)
	}

	// Mixed-case input matches the lowercased published key, and the
	// non-PvP achievement is filtered out of the baseline.
	got, err := BaselineRecords(dir, "eu", "Thrall-Kazzak")
	if err != nil {
		t.Fatalf("BaselineRecords() error = %v", err)
	}
	want := recMap(rec(401, "Grand Marshal", nil))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BaselineRecords() = %v, want %v", got, want)
	}
}

func TestBaselineRecordsCharacterAbsent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	entries := []luatable.Entry{
		{Character: "other-realm", GUID: 2, Achievements: recMap(rec(500, "Duelist", nil))},
	}
	if _, err := luatable.WriteRegion(dir, "eu", entries, luatable.Options{}); err != nil {
		t.Fatalf("WriteRegion() error = %v", err)
	}

	got, err := BaselineRecords(dir, "eu", "nobody-here")
	if err != nil {
		t.Fatalf("BaselineRecords() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("BaselineRecords() = %v, want empty", got)
	}
}

func TestBaselineRecordsNoRegionFiles(t *testing.T) {
	t.Parallel()

	got, err := BaselineRecords(t.TempDir(), "eu", "thrall-kazzak")
	if err != nil {
		t.Fatalf("BaselineRecords() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("BaselineRecords() = %v, want empty", got)
	}
}

func TestFilterKeywords(t *testing.T) {
	t.Parallel()

	in := recMap(
		rec(1, "Duelist", nil),
		rec(2, "Leeroy Jenkins", nil),
		rec(3, "Gladiator: Dragonflight Season 3", models.Int64Ptr(10)),
	)
	got := FilterKeywords(in)
	want := recMap(
		rec(1, "Duelist", nil),
		rec(3, "Gladiator: Dragonflight Season 3", models.Int64Ptr(10)),
	)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterKeywords() = %v, want %v", got, want)
	}
}

func TestAPIRecords(t *testing.T) {
	t.Parallel()

	summary := &blizzard.AchievementsSummary{
		Achievements: []blizzard.EarnedAchievement{
			earnedEntry(500, "Duelist", models.Int64Ptr(1700000000000)),
			earnedEntry(999, "Leeroy Jenkins", models.Int64Ptr(5)),
			earnedEntry(401, "Grand Marshal", nil),
		},
	}
	got := APIRecords(summary)
	want := recMap(
		rec(500, "Duelist", models.Int64Ptr(1700000000000)),
		rec(401, "Grand Marshal", nil),
	)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("APIRecords() = %v, want %v", got, want)
	}
}

func TestAPIRecordsNilSummary(t *testing.T) {
	t.Parallel()

	if got := APIRecords(nil); len(got) != 0 {
		t.Errorf("APIRecords(nil) = %v, want empty", got)
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	baseline := recMap(
		rec(1, "Duelist", nil),                        // only published
		rec(2, "Grand Marshal", models.Int64Ptr(100)), // timestamp moved
		rec(3, "Knight", models.Int64Ptr(50)),         // identical
		rec(5, "Challenger I: X", nil),                // no baseline timestamp
		rec(6, "Commander", models.Int64Ptr(10)),      // renamed upstream
	)
	api := recMap(
		rec(2, "Grand Marshal", models.Int64Ptr(200)),
		rec(3, "Knight", models.Int64Ptr(50)),
		rec(4, "Warlord", models.Int64Ptr(300)), // only live
		rec(5, "Challenger I: X", models.Int64Ptr(400)),
		rec(6, "General", models.Int64Ptr(20)),
	)

	got := Diff(baseline, api)
	want := Report{
		MissingInLua:     []int{4},
		MissingInAPI:     []int{1},
		TimestampChanged: []int{2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Diff() = %+v, want %+v", got, want)
	}
}

func TestDiffNoDifferences(t *testing.T) {
	t.Parallel()

	records := recMap(rec(1, "Duelist", models.Int64Ptr(100)))
	got := Diff(records, records)
	if len(got.MissingInLua) != 0 || len(got.MissingInAPI) != 0 || len(got.TimestampChanged) != 0 {
		t.Errorf("Diff() = %+v, want empty report", got)
	}
}

func TestDiffSortsBuckets(t *testing.T) {
	t.Parallel()

	api := recMap(
		rec(30, "Warlord", nil),
		rec(10, "Duelist", nil),
		rec(20, "Knight", nil),
	)
	got := Diff(map[int]models.AchievementRecord{}, api)
	if want := []int{10, 20, 30}; !reflect.DeepEqual(got.MissingInLua, want) {
		t.Errorf("MissingInLua = %v, want %v", got.MissingInLua, want)
	}
}

func TestSnippet(t *testing.T) {
	t.Parallel()

	records := recMap(
		rec(40396, `Say "Cheese"`, nil),
		rec(401, "Grand Marshal", models.Int64Ptr(123)),
	)
	got := Snippet("thrall-kazzak", 77, records)
	want := `{ character="thrall-kazzak", guid=77, id1=401, name1="Grand Marshal", id2=40396, name2="Say \"Cheese\"" }`
	if got != want {
		t.Errorf("Snippet() =\n%s\nwant\n%s", got, want)
	}
}

func TestSnippetNoAchievements(t *testing.T) {
	t.Parallel()

	got := Snippet("a-r", 0, nil)
	if want := `{ character="a-r", guid=0 }`; got != want {
		t.Errorf("Snippet() = %s, want %s", got, want)
	}
}

func TestSnippetRoundTripsThroughParser(t *testing.T) {
	t.Parallel()

	records := recMap(
		rec(401, "Grand Marshal", nil),
		rec(500, "Duelist", models.Int64Ptr(99)),
	)
	row := Snippet("thrall-kazzak", 42, records)
	entries, err := luatable.Parse([]byte("local achievements={\n" + row + ",\n}\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Parse() entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Character != "thrall-kazzak" || e.GUID != 42 {
		t.Errorf("entry = %q guid %d, want thrall-kazzak guid 42", e.Character, e.GUID)
	}
	if len(e.Achievements) != 2 || e.Achievements[401].Name != "Grand Marshal" {
		t.Errorf("achievements = %v", e.Achievements)
	}
}
