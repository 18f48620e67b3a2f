// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

/*
writer.go - Region Table Writer

Serializes cluster rows into the published Lua table format consumed by the
addon:

	-- File: RatedStats_Achiev/region_eu.lua
	local achievements={
	    { character="root-realm", alts={"alt-realm"}, guid=123, id1=401, name1="Grand Marshal" },
	}

	ACHIEVEMENTS_EU = achievements

Byte Budget:
One file per region while it fits. When the serialized size exceeds the
budget the writer splits into region_<r>_partN.lua files, each a complete,
independently loadable table with its own ACHIEVEMENTS_<R>_PARTN variable.
Parts stay under GitHub's large-file threshold; a file pushed into LFS
reaches clients as a pointer stub the addon cannot load.

Atomicity:
Every file is written to a temp name in the target directory and renamed
into place, so a killed run never leaves a truncated table where a reader
expects a valid one. Stale artifacts from the previous generation (a single
file replaced by parts, or part numbers beyond the new count) are removed
after the new generation is fully in place.
*/

//nolint:staticcheck // File documentation, not package doc
package luatable

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/liamnap/RatedStats-Achiev/internal/logging"
	"github.com/liamnap/RatedStats-Achiev/internal/metrics"
)

// Options controls region table serialization.
type Options struct {
	// MaxFileBytes is the per-file byte budget; zero or negative means
	// no splitting.
	MaxFileBytes int64

	// Guard prefixes each file with a region conditional so a client
	// that loads every region's file keeps only its own.
	Guard bool
}

// regionGuardIDs maps region codes to the client's GetCurrentRegion()
// numbering.
var regionGuardIDs = map[string]int{"us": 1, "kr": 2, "eu": 3, "tw": 4}

// WriteRegion serializes entries as the published table for region under
// dir, splitting into numbered parts when the byte budget requires it.
// Returns the paths written, in part order.
func WriteRegion(dir, region string, entries []Entry, opts Options) ([]string, error) {
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create output directory %s: %w", dir, err)
		}
	}

	lines := make([]string, len(entries))
	var linesSize int64
	for i, e := range entries {
		lines[i] = formatEntry(e)
		linesSize += int64(len(lines[i]))
	}

	guard := ""
	if opts.Guard {
		guard = guardLine(region)
	}

	singleName := fmt.Sprintf("region_%s.lua", region)
	singleHeader := fileHeader(guard, singleName)
	singleFooter := fileFooter(regionVar(region))

	var paths []string
	var totalBytes int64

	singleSize := int64(len(singleHeader)) + linesSize + int64(len(singleFooter))
	if opts.MaxFileBytes <= 0 || singleSize <= opts.MaxFileBytes {
		path := filepath.Join(dir, singleName)
		if err := writeFileAtomic(path, singleHeader+strings.Join(lines, "")+singleFooter); err != nil {
			return nil, err
		}
		paths = append(paths, path)
		totalBytes = singleSize
	} else {
		var err error
		paths, totalBytes, err = writeParts(dir, region, guard, lines, opts.MaxFileBytes)
		if err != nil {
			return nil, err
		}
	}

	if err := removeStale(dir, region, len(paths) > 1, len(paths)); err != nil {
		return nil, err
	}

	metrics.RecordOutput(len(paths), len(entries), totalBytes)
	logging.Info().
		Str("region", region).
		Int("entries", len(entries)).
		Int("parts", len(paths)).
		Int64("bytes", totalBytes).
		Msg("[OUTPUT] Region table written")
	return paths, nil
}

// writeParts packs entry lines into sequentially numbered part files, each
// within the byte budget. An entry line larger than the budget on its own
// still gets a part to itself; dropping data is worse than one oversized
// file.
func writeParts(dir, region, guard string, lines []string, maxFileBytes int64) ([]string, int64, error) {
	var paths []string
	var totalBytes int64

	part := 1
	start := 0
	for start < len(lines) {
		name := fmt.Sprintf("region_%s_part%d.lua", region, part)
		header := fileHeader(guard, name)
		footer := fileFooter(fmt.Sprintf("%s_PART%d", regionVar(region), part))
		overhead := int64(len(header) + len(footer))

		size := overhead
		end := start
		for end < len(lines) {
			lineSize := int64(len(lines[end]))
			if end > start && size+lineSize > maxFileBytes {
				break
			}
			size += lineSize
			end++
		}
		if size > maxFileBytes {
			logging.Warn().
				Str("file", name).
				Int64("bytes", size).
				Int64("budget", maxFileBytes).
				Msg("[OUTPUT] Single entry exceeds byte budget")
		}

		path := filepath.Join(dir, name)
		if err := writeFileAtomic(path, header+strings.Join(lines[start:end], "")+footer); err != nil {
			return nil, 0, err
		}
		paths = append(paths, path)
		totalBytes += size
		start = end
		part++
	}
	return paths, totalBytes, nil
}

// WritePartial writes one batch window's rows as a partial table for
// debugging and cross-checking shard contents. Partials are never read back
// by the finalize pass; the shard databases carry the authoritative data.
func WritePartial(dir, region string, batchID, totalBatches int, entries []Entry) (string, error) {
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("create partial directory %s: %w", dir, err)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "-- Partial batch %d/%d for %s\nlocal entries={\n", batchID, totalBatches, region)
	for _, e := range entries {
		b.WriteString(formatEntry(e))
	}
	b.WriteString("}\n")

	path := filepath.Join(dir, fmt.Sprintf("%s_batch_%d.lua", region, batchID))
	if err := writeFileAtomic(path, b.String()); err != nil {
		return "", err
	}
	return path, nil
}

var nameEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// formatEntry renders one character row. Achievements are numbered from 1
// in ascending achievement-ID order; the idN/nameN pairing is what the
// parser reassembles.
func formatEntry(e Entry) string {
	quoted := make([]string, len(e.Alts))
	for i, alt := range e.Alts {
		quoted[i] = `"` + alt + `"`
	}

	// Keys may contain non-ASCII characters; plain quoting keeps them
	// byte-identical instead of escaping them into \u sequences.
	parts := make([]string, 0, 3+2*len(e.Achievements))
	parts = append(parts,
		`character="`+e.Character+`"`,
		"alts={"+strings.Join(quoted, ",")+"}",
		fmt.Sprintf("guid=%d", e.GUID),
	)

	ids := make([]int, 0, len(e.Achievements))
	for id := range e.Achievements {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for i, id := range ids {
		parts = append(parts,
			fmt.Sprintf("id%d=%d", i+1, id),
			fmt.Sprintf(`name%d="%s"`, i+1, nameEscaper.Replace(e.Achievements[id].Name)),
		)
	}
	return "    { " + strings.Join(parts, ", ") + " },\n"
}

func fileHeader(guard, name string) string {
	return guard + fmt.Sprintf("-- File: RatedStats_Achiev/%s\nlocal achievements={\n", name)
}

func fileFooter(varName string) string {
	return fmt.Sprintf("}\n\n%s = achievements\n", varName)
}

func regionVar(region string) string {
	return "ACHIEVEMENTS_" + strings.ToUpper(region)
}

// guardLine returns the region conditional, or nothing for an unknown
// region code.
func guardLine(region string) string {
	id, ok := regionGuardIDs[region]
	if !ok {
		return ""
	}
	return fmt.Sprintf("if GetCurrentRegion and GetCurrentRegion() ~= %d then return end\n", id)
}

// removeStale deletes leftover files from the previous generation once the
// new one is fully written: the single file when parts now exist, every
// part when a single file does, and part numbers beyond the new count.
func removeStale(dir, region string, wroteParts bool, partCount int) error {
	if wroteParts {
		single := filepath.Join(dir, fmt.Sprintf("region_%s.lua", region))
		if err := os.Remove(single); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale %s: %w", single, err)
		}
	}

	pattern := filepath.Join(dir, fmt.Sprintf("region_%s_part*.lua", region))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("glob stale parts %s: %w", pattern, err)
	}
	keep := 0
	if wroteParts {
		keep = partCount
	}
	for _, match := range matches {
		var n int
		base := filepath.Base(match)
		if _, err := fmt.Sscanf(base, "region_"+region+"_part%d.lua", &n); err != nil {
			continue
		}
		if n > keep {
			if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove stale %s: %w", match, err)
			}
		}
	}
	return nil
}

// writeFileAtomic writes content to a temp file in the target directory
// and renames it into place.
func writeFileAtomic(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s into place: %w", path, err)
	}
	return nil
}
