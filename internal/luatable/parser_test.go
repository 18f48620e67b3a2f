// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package luatable

import (
	"reflect"
	"strings"
	"testing"
)

const publishedFixture = `-- File: RatedStats_Achiev/region_eu.lua
local achievements={
    { character="brutto-twisting-nether", alts={"bruttoalt-ragnaros","thirdchar-silvermoon"}, guid=123456, id1=401, name1="Grand Marshal", id2=40396, name2="Crimson Gladiator: Dragonflight Season 1" },
    { character="solo-kazzak", alts={}, guid=777, id1=2091, name1="Gladiator: Dragonflight Season 1" },
}

ACHIEVEMENTS_EU = achievements
`

func TestParsePublishedTable(t *testing.T) {
	t.Parallel()

	entries, err := Parse([]byte(publishedFixture))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}

	first := entries[0]
	if first.Character != "brutto-twisting-nether" {
		t.Errorf("Character = %q", first.Character)
	}
	if !reflect.DeepEqual(first.Alts, []string{"bruttoalt-ragnaros", "thirdchar-silvermoon"}) {
		t.Errorf("Alts = %v", first.Alts)
	}
	if first.GUID != 123456 {
		t.Errorf("GUID = %d", first.GUID)
	}
	if len(first.Achievements) != 2 {
		t.Fatalf("len(Achievements) = %d, want 2", len(first.Achievements))
	}
	rec, ok := first.Achievements[40396]
	if !ok {
		t.Fatal("achievement 40396 missing")
	}
	if rec.Name != "Crimson Gladiator: Dragonflight Season 1" {
		t.Errorf("name = %q", rec.Name)
	}
	if rec.CompletedTimestamp != nil {
		t.Error("parsed achievement has a timestamp; the format does not carry one")
	}

	second := entries[1]
	if second.Character != "solo-kazzak" || len(second.Alts) != 0 || second.GUID != 777 {
		t.Errorf("second entry = %+v", second)
	}
}

func TestParseToleratesGuardPrefix(t *testing.T) {
	t.Parallel()

	input := "if GetCurrentRegion and GetCurrentRegion() ~= 3 then return end\n" + publishedFixture
	entries, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("len(entries) = %d, want 2", len(entries))
	}
}

func TestParseToleratesComments(t *testing.T) {
	t.Parallel()

	input := `-- generated file
--[[ block
comment spanning lines ]]
local achievements={
    -- first player
    { character="a-r", alts={}, guid=1, id1=5, name1="Duelist" }, -- trailing
    --[[ between entries ]] { character="b-r", alts={}, guid=2 },
}
`
	entries, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("len(entries) = %d, want 2", len(entries))
	}
}

func TestParseEscapedQuotes(t *testing.T) {
	t.Parallel()

	input := `local achievements={
    { character="a-r", alts={}, guid=1, id1=5, name1="Say \"Hello\" twice", id2=6, name2="Back\\slash" },
}
`
	entries, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := entries[0].Achievements[5].Name; got != `Say "Hello" twice` {
		t.Errorf("name = %q", got)
	}
	if got := entries[0].Achievements[6].Name; got != `Back\slash` {
		t.Errorf("name = %q", got)
	}
}

func TestParsePartialFormat(t *testing.T) {
	t.Parallel()

	input := `-- Partial batch 2/4 for eu
local entries={
    { character="a-r", alts={}, guid=5, id1=9, name1="Duelist" },
}
`
	entries, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Character != "a-r" || entries[0].GUID != 5 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestParseLowercasesKeys(t *testing.T) {
	t.Parallel()

	input := `local achievements={
    { character="Brutto-Twisting-Nether", alts={"AltOne-Ragnaros"}, guid=1 },
}
`
	entries, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if entries[0].Character != "brutto-twisting-nether" {
		t.Errorf("Character = %q, want lowercased", entries[0].Character)
	}
	if entries[0].Alts[0] != "altone-ragnaros" {
		t.Errorf("Alts[0] = %q, want lowercased", entries[0].Alts[0])
	}
}

func TestParseSkipsUnknownFields(t *testing.T) {
	t.Parallel()

	input := `local achievements={
    { character="a-r", rating=2400, tags={"x",{nested=true},99}, active=true, note="free \"text\"", alts={}, guid=3, id1=5, name1="Duelist" },
}
`
	entries, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	e := entries[0]
	if e.GUID != 3 || len(e.Achievements) != 1 {
		t.Errorf("entry = %+v, unknown fields disturbed known ones", e)
	}
}

func TestParseNonSequentialPairIndices(t *testing.T) {
	t.Parallel()

	input := `local achievements={
    { character="a-r", alts={}, guid=1, id7=100, name7="Seventh", id2=200, name2="Second" },
}
`
	entries, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	ach := entries[0].Achievements
	if len(ach) != 2 {
		t.Fatalf("len(Achievements) = %d, want 2", len(ach))
	}
	if ach[100].Name != "Seventh" || ach[200].Name != "Second" {
		t.Errorf("achievements = %+v, pairing by suffix failed", ach)
	}
}

func TestParseDropsIncompletePairs(t *testing.T) {
	t.Parallel()

	input := `local achievements={
    { character="a-r", alts={}, guid=1, id1=100, name2="Orphan name" },
}
`
	entries, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(entries[0].Achievements) != 0 {
		t.Errorf("Achievements = %+v, want incomplete pairs dropped", entries[0].Achievements)
	}
}

func TestParseMissingCharacterFails(t *testing.T) {
	t.Parallel()

	input := `local achievements={
    { alts={}, guid=1, id1=5, name1="Duelist" },
}
`
	_, err := Parse([]byte(input))
	if err == nil {
		t.Fatal("Parse() error = nil, want missing character error")
	}
	if !strings.Contains(err.Error(), "character") {
		t.Errorf("error = %v, want mention of character field", err)
	}
}

func TestParseRejectsInputWithoutTable(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte("no tables here, just prose\n")); err == nil {
		t.Fatal("Parse() error = nil, want no-table error")
	}
}

func TestParseRejectsUnterminatedTable(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte("local achievements={\n    { character=\"a-b\", alts={}")); err == nil {
		t.Fatal("Parse() error = nil, want unterminated error")
	}
}

func TestEntrySnapshot(t *testing.T) {
	t.Parallel()

	entries, err := Parse([]byte(publishedFixture))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	snap := entries[0].Snapshot()
	if snap.GUID != 123456 {
		t.Errorf("GUID = %d", snap.GUID)
	}
	if len(snap.Achievements) != 2 {
		t.Errorf("len(Achievements) = %d", len(snap.Achievements))
	}
	if tokens := snap.Fingerprint(); len(tokens) != 0 {
		t.Errorf("Fingerprint() = %v, seeded snapshots must not produce tokens", tokens)
	}
}
