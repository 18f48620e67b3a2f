// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

// Package cluster groups character identities into players by fingerprint
// similarity.
//
// Two characters completing the same achievement at the same millisecond is
// strong evidence they are the same player logging account-wide progress, so
// identities sharing enough (achievement, timestamp) tokens are linked and
// the connected components of that link graph become the published clusters.
// Clusters are a pure function of the store contents; nothing here is
// persisted and every finalize pass recomputes the partition from scratch.
package cluster

import (
	"sort"

	"github.com/liamnap/RatedStats-Achiev/internal/logging"
	"github.com/liamnap/RatedStats-Achiev/internal/metrics"
	"github.com/liamnap/RatedStats-Achiev/internal/models"
)

const (
	// EdgeThreshold is how many timestamped achievements two identities
	// must share, at identical completion instants, before they are
	// linked as one player. Account-wide achievement propagation makes
	// genuine alts share dozens; unrelated characters essentially never
	// share five.
	EdgeThreshold = 5

	// maxTokenBucket discards any token held by more identities than
	// this. Mass-grant events (vendor backfills stamping thousands of
	// characters with one timestamp) would otherwise turn a single token
	// into millions of candidate pairs and weld strangers together.
	maxTokenBucket = 100
)

// Cluster is one player: the elected root identity plus every linked alt.
// Members holds the full sorted key set including the root.
type Cluster struct {
	Root    string
	Alts    []string
	Members []string
}

// pairKey is an unordered identity pair, stored with a < b.
type pairKey struct {
	a, b string
}

// Build partitions snapshots into clusters and elects a root per cluster.
//
// The root is the first member in ascending key order that appears in the
// leaderboard set; when no member does, the first member overall. Every
// identity lands in exactly one cluster, singletons included.
//
// DETERMINISM NOTE: all iteration that can affect output happens over
// sorted key slices, never raw map order. For a fixed input the returned
// partition, member order, and root election are identical across runs;
// clusters are ordered by their smallest member.
func Build(snapshots map[string]*models.CharacterSnapshot, leaderboard map[string]struct{}) []Cluster {
	keys := make([]string, 0, len(snapshots))
	for key := range snapshots {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	adjacency, edges := buildEdges(keys, snapshots)
	clusters := components(keys, adjacency, leaderboard)

	sizes := make([]int, len(clusters))
	for i, c := range clusters {
		sizes[i] = len(c.Members)
	}
	metrics.RecordClustering(len(clusters), edges, sizes)
	logging.Info().
		Int("identities", len(keys)).
		Int("edges", edges).
		Int("clusters", len(clusters)).
		Msg("[CLUSTER] Partition computed")

	return clusters
}

// buildEdges links every identity pair sharing at least EdgeThreshold
// fingerprint tokens. An inverted index over tokens keeps this near-linear
// in practice: only identities that actually share a token are ever paired,
// instead of comparing all snapshots against each other.
func buildEdges(keys []string, snapshots map[string]*models.CharacterSnapshot) (map[string][]string, int) {
	index := make(map[models.FingerprintToken][]string)
	for _, key := range keys {
		for _, token := range snapshots[key].Fingerprint() {
			index[token] = append(index[token], key)
		}
	}

	shared := make(map[pairKey]int)
	for _, bucket := range index {
		if len(bucket) < 2 || len(bucket) > maxTokenBucket {
			continue
		}
		// Buckets were filled in sorted key order, so i < j implies
		// bucket[i] < bucket[j] and the pair key is already normalized.
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				shared[pairKey{a: bucket[i], b: bucket[j]}]++
			}
		}
	}

	adjacency := make(map[string][]string)
	edges := 0
	for pair, count := range shared {
		if count < EdgeThreshold {
			continue
		}
		adjacency[pair.a] = append(adjacency[pair.a], pair.b)
		adjacency[pair.b] = append(adjacency[pair.b], pair.a)
		edges++
	}
	return adjacency, edges
}

// components walks the link graph with an explicit stack. Recursion would
// overflow on degenerate inputs where thousands of identities chain into
// one component.
func components(keys []string, adjacency map[string][]string, leaderboard map[string]struct{}) []Cluster {
	visited := make(map[string]struct{}, len(keys))
	clusters := make([]Cluster, 0, len(keys))

	for _, key := range keys {
		if _, seen := visited[key]; seen {
			continue
		}
		members := make([]string, 0, 1)
		stack := []string{key}
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, seen := visited[current]; seen {
				continue
			}
			visited[current] = struct{}{}
			members = append(members, current)
			for _, neighbor := range adjacency[current] {
				if _, seen := visited[neighbor]; !seen {
					stack = append(stack, neighbor)
				}
			}
		}
		sort.Strings(members)
		clusters = append(clusters, electRoot(members, leaderboard))
	}
	return clusters
}

// electRoot picks the cluster root and splits off the alt list.
func electRoot(members []string, leaderboard map[string]struct{}) Cluster {
	root := members[0]
	for _, member := range members {
		if _, ok := leaderboard[member]; ok {
			root = member
			break
		}
	}

	alts := make([]string, 0, len(members)-1)
	for _, member := range members {
		if member != root {
			alts = append(alts, member)
		}
	}
	return Cluster{Root: root, Alts: alts, Members: members}
}
