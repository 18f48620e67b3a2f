// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package luatable

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/liamnap/RatedStats-Achiev/internal/logging"
)

// lfsPointerMaxSize bounds how large a git-LFS pointer stub can be. Real
// region tables are orders of magnitude bigger.
const lfsPointerMaxSize = 1024

// IsLFSPointer reports whether path holds a git-LFS pointer stub instead of
// real content. A checkout without LFS smudging leaves these behind; seeding
// from one would silently discard the whole prior generation.
func IsLFSPointer(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() > lfsPointerMaxSize {
		return false
	}
	head, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(string(head), "version https://git-lfs.github.com/spec") &&
		strings.Contains(string(head), "oid sha256:")
}

// FindRegionFiles returns every readable published table for region under
// dir, in loading order: the single file first, then historical hyphenated
// variants, then numbered parts. LFS pointer stubs and empty files are
// skipped.
func FindRegionFiles(dir, region string) ([]string, error) {
	r := strings.ToLower(region)
	candidates := []string{filepath.Join(dir, fmt.Sprintf("region_%s.lua", r))}

	hyphenated, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("region_%s-*.lua", r)))
	if err != nil {
		return nil, fmt.Errorf("glob hyphenated variants: %w", err)
	}
	sort.Strings(hyphenated)
	candidates = append(candidates, hyphenated...)

	parts, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("region_%s_part*.lua", r)))
	if err != nil {
		return nil, fmt.Errorf("glob parts: %w", err)
	}
	sortParts(parts, r)
	candidates = append(candidates, parts...)

	seen := make(map[string]struct{}, len(candidates))
	var out []string
	for _, path := range candidates {
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}

		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			continue
		}
		if IsLFSPointer(path) {
			logging.Warn().Str("path", path).Msg("[SEED] Skipping git-LFS pointer stub")
			continue
		}
		out = append(out, path)
	}
	return out, nil
}

// sortParts orders numbered part files by their numeric suffix so part2
// seeds before part10. Paths without a parseable suffix sort after the
// numbered ones, lexicographically.
func sortParts(paths []string, region string) {
	sort.SliceStable(paths, func(i, j int) bool {
		ni, iOK := partIndex(paths[i], region)
		nj, jOK := partIndex(paths[j], region)
		switch {
		case iOK && jOK:
			return ni < nj
		case iOK != jOK:
			return iOK
		default:
			return paths[i] < paths[j]
		}
	})
}

// partIndex extracts the numeric part suffix from a published table filename.
func partIndex(path, region string) (int, bool) {
	base := filepath.Base(path)
	prefix := fmt.Sprintf("region_%s_part", region)
	if !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, ".lua") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(base, prefix), ".lua"))
	if err != nil {
		return 0, false
	}
	return n, true
}

// LoadRegion parses every published table found for region under dir and
// concatenates their entries in file order. A missing region (no files) is
// not an error; it returns an empty slice, the state of a first-ever run.
func LoadRegion(dir, region string) ([]Entry, error) {
	paths, err := FindRegionFiles(dir, region)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		parsed, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		entries = append(entries, parsed...)
		logging.Debug().Str("path", path).Int("entries", len(parsed)).Msg("[SEED] Region file loaded")
	}
	return entries, nil
}
