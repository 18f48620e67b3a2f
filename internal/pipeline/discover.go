// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/liamnap/RatedStats-Achiev/internal/blizzard"
	"github.com/liamnap/RatedStats-Achiev/internal/discovery"
	"github.com/liamnap/RatedStats-Achiev/internal/logging"
	"github.com/liamnap/RatedStats-Achiev/internal/luatable"
	"github.com/liamnap/RatedStats-Achiev/internal/models"
)

// workingSet is everything a batch run needs before the first profile fetch:
// the merged identity universe, the live leaderboard membership used for root
// election, seed snapshots parsed from previously published output, and the
// keyword-matched achievement index.
type workingSet struct {
	identities map[string]models.Identity
	live       map[string]models.Identity
	seed       map[string]*models.CharacterSnapshot
	pvpIndex   map[int]string
}

// discover assembles the working set: previously published identities
// (roots and their recorded alt lists) unioned with the identities currently
// on the leaderboard pages. Where both sides know a key, the seeded record
// wins, matching the precedence previously published data has always had.
func (r *Runner) discover(ctx context.Context) (*workingSet, error) {
	meta, fromCache, err := r.discoverMeta(ctx)
	if err != nil {
		return nil, err
	}

	byGUID, err := r.client.LeaderboardCharacters(ctx, meta.SeasonID, meta.Brackets)
	if err != nil && fromCache && isNotFound(err) {
		// A season rollover since the snapshot was cached makes the old
		// season ID answer 404. Drop the snapshot and discover live once.
		logging.Ctx(ctx).Warn().
			Int("season_id", meta.SeasonID).
			Msg("[DISCOVERY] Cached season rejected upstream, re-discovering")
		if r.cache != nil {
			if invErr := r.cache.Invalidate(r.cfg.Region.Code); invErr != nil {
				logging.Ctx(ctx).Warn().Err(invErr).Msg("[DISCOVERY] Snapshot invalidation failed")
			}
		}
		meta, _, err = r.discoverMeta(ctx)
		if err != nil {
			return nil, err
		}
		byGUID, err = r.client.LeaderboardCharacters(ctx, meta.SeasonID, meta.Brackets)
	}
	if err != nil {
		return nil, fmt.Errorf("leaderboard discovery: %w", err)
	}

	pvpIndex, err := r.client.PvPAchievementIndex(ctx, meta.StaticNamespace)
	if err != nil {
		return nil, fmt.Errorf("achievement index discovery: %w", err)
	}

	live := make(map[string]models.Identity, len(byGUID))
	for _, ident := range byGUID {
		live[ident.Key()] = ident
	}

	seedSnapshots, seedIdents, err := r.loadSeed()
	if err != nil {
		return nil, err
	}

	merged := make(map[string]models.Identity, len(live)+len(seedIdents))
	for key, ident := range live {
		merged[key] = ident
	}
	for key, ident := range seedIdents {
		merged[key] = ident
	}

	logging.Ctx(ctx).Info().
		Str("region", r.cfg.Region.Code).
		Int("season_id", meta.SeasonID).
		Int("leaderboard", len(live)).
		Int("seeded", len(seedIdents)).
		Int("universe", len(merged)).
		Int("pvp_achievements", len(pvpIndex)).
		Msg("[DISCOVERY] Working set assembled")

	return &workingSet{
		identities: merged,
		live:       live,
		seed:       seedSnapshots,
		pvpIndex:   pvpIndex,
	}, nil
}

// discoverMeta resolves the season ID, bracket list, and static namespace,
// consulting the cross-run cache first. The second return reports whether
// the values came from the cache.
func (r *Runner) discoverMeta(ctx context.Context) (*discovery.Snapshot, bool, error) {
	region := r.cfg.Region.Code

	if r.cache != nil {
		snap, ok, err := r.cache.Get(region)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("[DISCOVERY] Snapshot cache read failed")
		} else if ok {
			logging.Ctx(ctx).Debug().
				Str("region", region).
				Int("season_id", snap.SeasonID).
				Msg("[DISCOVERY] Snapshot cache hit")
			return snap, true, nil
		}
	}

	seasonID, err := r.client.CurrentSeasonID(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("season discovery: %w", err)
	}
	brackets, err := r.client.Brackets(ctx, seasonID)
	if err != nil {
		return nil, false, fmt.Errorf("bracket discovery: %w", err)
	}
	staticNS, err := r.client.ResolveStaticNamespace(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("namespace discovery: %w", err)
	}

	snap := &discovery.Snapshot{
		SeasonID:        seasonID,
		Brackets:        brackets,
		StaticNamespace: staticNS,
	}
	if r.cache != nil {
		if err := r.cache.Put(region, snap, r.cfg.Discovery.TTL); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("[DISCOVERY] Snapshot cache write failed")
		}
	}
	return snap, false, nil
}

// loadSeed parses the region's previously published output into store-ready
// snapshots and fetchable identities.
func (r *Runner) loadSeed() (map[string]*models.CharacterSnapshot, map[string]models.Identity, error) {
	entries, err := luatable.LoadRegion(r.cfg.Output.Dir, r.cfg.Region.Code)
	if err != nil {
		return nil, nil, fmt.Errorf("load published seed: %w", err)
	}
	snapshots, idents := seedFromEntries(entries)
	return snapshots, idents, nil
}

// seedFromEntries converts published entries into seed material. The
// achievements of an entry belong to its root character; alts enter with
// empty snapshots and a zero GUID so they stay in the store and the working
// set even when the live API no longer knows them. Their real data returns
// with the next successful fetch.
func seedFromEntries(entries []luatable.Entry) (map[string]*models.CharacterSnapshot, map[string]models.Identity) {
	snapshots := make(map[string]*models.CharacterSnapshot, len(entries))
	idents := make(map[string]models.Identity, len(entries))

	for i := range entries {
		entry := &entries[i]
		name, realm, err := models.ParseKey(entry.Character)
		if err != nil {
			logging.Warn().
				Str("key", entry.Character).
				Msg("[SEED] Skipping entry with malformed key")
			continue
		}

		// A root assignment replaces any placeholder laid down when the
		// same key appeared earlier in another entry's alt list.
		snapshots[entry.Character] = entry.Snapshot()
		idents[entry.Character] = models.Identity{Name: name, Realm: realm, GUID: entry.GUID}

		for _, alt := range entry.Alts {
			altName, altRealm, err := models.ParseKey(alt)
			if err != nil {
				logging.Warn().
					Str("key", alt).
					Str("root", entry.Character).
					Msg("[SEED] Skipping alt with malformed key")
				continue
			}
			if _, ok := snapshots[alt]; !ok {
				snapshots[alt] = &models.CharacterSnapshot{
					Achievements: map[int]models.AchievementRecord{},
				}
			}
			if _, ok := idents[alt]; !ok {
				idents[alt] = models.Identity{Name: altName, Realm: altRealm}
			}
		}
	}
	return snapshots, idents
}

func isNotFound(err error) bool {
	var fetchErr *blizzard.FetchError
	return errors.As(err, &fetchErr) && fetchErr.Status == http.StatusNotFound
}
