// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package blizzard

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/liamnap/RatedStats-Achiev/internal/logging"
	"github.com/liamnap/RatedStats-Achiev/internal/models"
)

// bracketPrefixes selects the rated leaderboards worth syncing. Everything
// else in the index (e.g. solo-battleground experiments on some regions) is
// skipped.
var bracketPrefixes = []string{"2v2", "3v3", "rbg", "shuffle-", "blitz-"}

type seasonIndexResponse struct {
	Seasons []struct {
		ID int `json:"id"`
	} `json:"seasons"`
}

type leaderboardIndexResponse struct {
	Leaderboards []struct {
		Key struct {
			Href string `json:"href"`
		} `json:"key"`
	} `json:"leaderboards"`
}

type leaderboardResponse struct {
	Entries []struct {
		Character struct {
			ID    int64  `json:"id"`
			Name  string `json:"name"`
			Realm struct {
				Slug string `json:"slug"`
			} `json:"realm"`
		} `json:"character"`
	} `json:"entries"`
}

// CurrentSeasonID returns the ID of the newest PvP season. The season index
// lists seasons in ascending order; the last entry is the current one.
func (c *Client) CurrentSeasonID(ctx context.Context) (int, error) {
	reqURL := fmt.Sprintf("%s/data/wow/pvp-season/index?namespace=dynamic-%s&locale=en_US", c.apiBase, c.region)

	var index seasonIndexResponse
	if err := c.FetchJSON(ctx, reqURL, &index); err != nil {
		return 0, fmt.Errorf("failed to fetch season index: %w", err)
	}
	if len(index.Seasons) == 0 {
		return 0, fmt.Errorf("season index for %s is empty", c.region)
	}
	return index.Seasons[len(index.Seasons)-1].ID, nil
}

// Brackets returns the rated bracket slugs available for a season, filtered
// to the prefixes this pipeline tracks (2v2, 3v3, rbg, shuffle-*, blitz-*).
//
// Bracket slugs are extracted from the last path segment of each
// leaderboard's key href rather than any display field, matching how the
// leaderboard URL is later assembled.
func (c *Client) Brackets(ctx context.Context, seasonID int) ([]string, error) {
	reqURL := fmt.Sprintf("%s/data/wow/pvp-season/%d/pvp-leaderboard/index?namespace=dynamic-%s&locale=%s",
		c.apiBase, seasonID, c.region, c.locale)

	var index leaderboardIndexResponse
	if err := c.FetchJSON(ctx, reqURL, &index); err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard index for season %d: %w", seasonID, err)
	}

	var brackets []string
	for _, lb := range index.Leaderboards {
		slug := bracketSlug(lb.Key.Href)
		if slug == "" {
			continue
		}
		for _, prefix := range bracketPrefixes {
			if strings.HasPrefix(slug, prefix) {
				brackets = append(brackets, slug)
				break
			}
		}
	}

	logging.Info().
		Int("season_id", seasonID).
		Strs("brackets", brackets).
		Msg("[DISCOVERY] Valid brackets resolved")
	return brackets, nil
}

// LeaderboardCharacters collects the distinct characters across all given
// brackets, keyed by character GUID. A character on several leaderboards
// appears once.
//
// A failed bracket fetch is logged and skipped so one missing leaderboard
// (regions occasionally publish partial indexes early in a season) does not
// abort discovery. When every bracket fails the first error propagates; that
// is how a season rollover (the old season's boards all answer 404) reaches
// the caller holding a stale cached season ID.
func (c *Client) LeaderboardCharacters(ctx context.Context, seasonID int, brackets []string) (map[int64]models.Identity, error) {
	seen := make(map[int64]models.Identity)

	var firstErr error
	failed := 0
	for _, bracket := range brackets {
		reqURL := fmt.Sprintf("%s/data/wow/pvp-season/%d/pvp-leaderboard/%s?namespace=dynamic-%s&locale=%s",
			c.apiBase, seasonID, bracket, c.region, c.locale)

		var board leaderboardResponse
		if err := c.FetchJSON(ctx, reqURL, &board); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if firstErr == nil {
				firstErr = err
			}
			failed++
			logging.Warn().
				Str("bracket", bracket).
				Err(err).
				Msg("[DISCOVERY] Failed leaderboard, skipping bracket")
			continue
		}

		for _, entry := range board.Entries {
			ch := entry.Character
			if ch.ID == 0 {
				continue
			}
			if _, dup := seen[ch.ID]; dup {
				continue
			}
			seen[ch.ID] = models.Identity{
				GUID:  ch.ID,
				Name:  ch.Name,
				Realm: ch.Realm.Slug,
			}
		}
	}

	if failed == len(brackets) && firstErr != nil {
		return nil, firstErr
	}
	return seen, nil
}

// bracketSlug extracts the bracket slug from a leaderboard key href, e.g.
// ".../pvp-leaderboard/3v3?namespace=..." yields "3v3".
func bracketSlug(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	path := strings.TrimRight(parsed.Path, "/")
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
