// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package models

import (
	"fmt"
	"strings"
)

// Identity is one character as discovered from a leaderboard page or seeded
// from previously published output. The GUID is the vendor-assigned numeric
// character ID and is stable across renames within a region.
type Identity struct {
	Name  string
	Realm string
	GUID  int64
}

// Key returns the stable store key for this identity:
// lowercase(name) + "-" + lowercase(realm slug).
//
// The key is globally unique within a region and is the primary key of the
// char_data table. Realm slugs may themselves contain hyphens
// (e.g. "twisting-nether"), so only the first hyphen separates name from
// realm when parsing.
func (id Identity) Key() string {
	return KeyOf(id.Name, id.Realm)
}

// KeyOf builds an identity key from a raw character name and realm slug.
func KeyOf(name, realm string) string {
	return strings.ToLower(name) + "-" + strings.ToLower(realm)
}

// ParseKey splits an identity key back into its name and realm parts.
// The split is on the first hyphen only; realm slugs keep their hyphens.
func ParseKey(key string) (name, realm string, err error) {
	i := strings.Index(key, "-")
	if i <= 0 || i == len(key)-1 {
		return "", "", fmt.Errorf("malformed identity key %q: want name-realm", key)
	}
	return key[:i], key[i+1:], nil
}
