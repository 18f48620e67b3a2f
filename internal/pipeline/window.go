// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package pipeline

// Window returns the half-open slice keys[offset : offset+limit], clamped to
// the bounds of keys. A window starting at or past the end is empty; negative
// offsets and limits clamp to zero.
//
// Repeated invocations with the same sorted key list and the same parameters
// always address the same subset, and non-overlapping windows tile the key
// space exactly. Parallel workers rely on both properties.
func Window(keys []string, offset, limit int) []string {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if offset >= len(keys) {
		return nil
	}
	end := offset + limit
	if end > len(keys) {
		end = len(keys)
	}
	return keys[offset:end]
}

// WindowForBatch maps a batch index onto an explicit window: batch N covers
// keys[N*size : (N+1)*size]. Invalid indices and sizes yield an empty window.
func WindowForBatch(keys []string, batchID, batchSize int) []string {
	if batchID < 0 || batchSize <= 0 {
		return nil
	}
	return Window(keys, batchID*batchSize, batchSize)
}
