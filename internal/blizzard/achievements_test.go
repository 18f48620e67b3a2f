// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package blizzard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMatchesKeyword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		// Exact classic ranks
		{"Scout", true},
		{"Grand Marshal", true},
		{"High Warlord", true},
		{"Knight-Lieutenant", true},

		// Exact means exact
		{"Scouting Report", false},
		{"Grand Marshal of the Horde", false},

		// Season tier prefixes
		{"Combatant I: Dragonflight Season 4", true},
		{"Challenger II: The War Within Season 1", true},
		{"Duelist", true},
		{"Duelist: Battle for Azeroth Season 2", true},
		{"Elite: The War Within Season 2", true},
		{"Gladiator: Dragonflight Season 3", true},
		{"Legend: Shadowlands Season 3", true},

		// Bare tier names without the roman numeral are not tiers
		{"Combatant", false},
		{"Challenger", false},

		// Rank-one titles
		{"Sinful Gladiator: Shadowlands Season 1", true},
		{"Crimson Gladiator: Dragonflight Season 1", true},
		{"Hero of the Horde: Tyrannical", true},
		{"Forged Gladiator: The War Within Season 1", true},
		{"Prized Legend: The War Within Season 2", true},

		// Special
		{"Three's Company: 2700", true},
		{"Three's Company: 2200", false},

		// Unrelated achievements
		{"Arena Master", false},
		{"Leeroy Jenkins", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := MatchesKeyword(tt.name); got != tt.want {
				t.Errorf("MatchesKeyword(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestPvPAchievementIndex(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(nil))
	mux.HandleFunc("/data/wow/achievement/index", func(w http.ResponseWriter, r *http.Request) {
		if ns := r.URL.Query().Get("namespace"); ns != "static-11.2.0_62213-eu" {
			t.Errorf("namespace = %q, want the resolved static namespace", ns)
		}
		w.Write([]byte(`{"achievements": [
			{"id": 401, "name": "Grand Marshal"},
			{"id": 402, "name": "Leeroy Jenkins"},
			{"id": 403, "name": "Gladiator: Dragonflight Season 3"},
			{"id": 404, "name": "Level 10"}
		]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server, testConfig())

	index, err := client.PvPAchievementIndex(context.Background(), "static-11.2.0_62213-eu")
	if err != nil {
		t.Fatalf("PvPAchievementIndex() error = %v", err)
	}

	if len(index) != 2 {
		t.Fatalf("index has %d entries, want 2: %v", len(index), index)
	}
	if index[401] != "Grand Marshal" {
		t.Errorf("index[401] = %q", index[401])
	}
	if index[403] != "Gladiator: Dragonflight Season 3" {
		t.Errorf("index[403] = %q", index[403])
	}
}

func TestCharacterAchievementsLowercasesPath(t *testing.T) {
	var sawPath string
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(nil))
	mux.HandleFunc("/profile/wow/character/", func(w http.ResponseWriter, r *http.Request) {
		sawPath = r.URL.Path
		w.Write([]byte(`{"achievements": [
			{"id": 401, "achievement": {"id": 401, "name": "Grand Marshal"}, "completed_timestamp": 1700000000000}
		]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server, testConfig())

	summary, err := client.CharacterAchievements(context.Background(), "Twisting-Nether", "Brutto")
	if err != nil {
		t.Fatalf("CharacterAchievements() error = %v", err)
	}

	if sawPath != "/profile/wow/character/twisting-nether/brutto/achievements" {
		t.Errorf("request path = %q, want lowercased realm and name", sawPath)
	}
	if len(summary.Achievements) != 1 {
		t.Fatalf("got %d achievements, want 1", len(summary.Achievements))
	}
	earned := summary.Achievements[0]
	if earned.ID != 401 || earned.Achievement.Name != "Grand Marshal" {
		t.Errorf("earned = %+v", earned)
	}
	if earned.CompletedTimestamp == nil || *earned.CompletedTimestamp != 1700000000000 {
		t.Errorf("CompletedTimestamp = %v, want 1700000000000", earned.CompletedTimestamp)
	}
}

func TestPvPRecords(t *testing.T) {
	t.Parallel()

	ts := int64(1700000000000)
	summary := &AchievementsSummary{
		Achievements: []EarnedAchievement{
			{
				ID:                 401,
				CompletedTimestamp: &ts,
			},
			{
				ID: 403,
				// No timestamp recorded for this one.
			},
			{
				ID:                 999,
				CompletedTimestamp: &ts,
			},
		},
	}
	summary.Achievements[0].Achievement.ID = 401
	summary.Achievements[0].Achievement.Name = "Grand Marshal"
	summary.Achievements[1].Achievement.ID = 403
	summary.Achievements[1].Achievement.Name = "Gladiator: Dragonflight Season 3"
	summary.Achievements[2].Achievement.ID = 999
	summary.Achievements[2].Achievement.Name = "Leeroy Jenkins"

	index := map[int]string{
		401: "Grand Marshal",
		403: "Gladiator: Dragonflight Season 3",
	}

	records := PvPRecords(summary, index)

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 (999 not in index)", len(records))
	}

	gm := records[401]
	if gm.Name != "Grand Marshal" {
		t.Errorf("records[401].Name = %q", gm.Name)
	}
	if gm.CompletedTimestamp == nil || *gm.CompletedTimestamp != ts {
		t.Errorf("records[401].CompletedTimestamp = %v, want %d", gm.CompletedTimestamp, ts)
	}

	glad := records[403]
	if glad.CompletedTimestamp != nil {
		t.Errorf("records[403].CompletedTimestamp = %v, want nil preserved", glad.CompletedTimestamp)
	}
}

func TestPvPRecordsNilSummary(t *testing.T) {
	t.Parallel()

	if records := PvPRecords(nil, map[int]string{1: "x"}); records != nil {
		t.Errorf("PvPRecords(nil) = %v, want nil", records)
	}
}

func TestPvPRecordsEmptyResult(t *testing.T) {
	t.Parallel()

	summary := &AchievementsSummary{
		Achievements: []EarnedAchievement{{ID: 999}},
	}
	records := PvPRecords(summary, map[int]string{401: "Grand Marshal"})
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}
