// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package models

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// blobRecord is the wire form of one achievement inside the achievements
// blob stored in the char_data table:
//
//	{"40396":{"name":"Crimson Gladiator: Dragonflight Season 1","ts":1672934893000}}
//
// Keys are decimal achievement IDs; "ts" is null for records without a known
// completion time. The format is shared with the original published data and
// must stay stable across runs, since merge_external compares blobs produced
// by independent runner versions.
type blobRecord struct {
	Name string `json:"name"`
	TS   *int64 `json:"ts"`
}

// EncodeAchievements serializes an achievement map to its blob form.
func EncodeAchievements(achievements map[int]AchievementRecord) ([]byte, error) {
	out := make(map[string]blobRecord, len(achievements))
	for id, rec := range achievements {
		out[strconv.Itoa(id)] = blobRecord{Name: rec.Name, TS: rec.CompletedTimestamp}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode achievements blob: %w", err)
	}
	return data, nil
}

// DecodeAchievements parses a blob back into an achievement map.
func DecodeAchievements(blob []byte) (map[int]AchievementRecord, error) {
	var raw map[string]blobRecord
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, fmt.Errorf("decode achievements blob: %w", err)
	}
	achievements := make(map[int]AchievementRecord, len(raw))
	for key, rec := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("decode achievements blob: bad achievement ID %q: %w", key, err)
		}
		achievements[id] = AchievementRecord{ID: id, Name: rec.Name, CompletedTimestamp: rec.TS}
	}
	return achievements, nil
}
