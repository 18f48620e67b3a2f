// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

// Package main is the checkchar diagnostic. It compares one character's
// entry in the published region tables against a fresh API scan and prints
// the baseline, the scan, the differences, and a pasteable replacement row.
//
// The tool is read-only: it never writes shards or region tables. It uses
// the reserve credential pair (CHAR_PVP_ACHIEVEMENTS_ID/SECRET) so an
// investigation can run while a sync holds the primary pair, and exits 2
// when that pair is not configured.
//
// Example:
//
//	export CHAR_PVP_ACHIEVEMENTS_ID=...
//	export CHAR_PVP_ACHIEVEMENTS_SECRET=...
//	./checkchar -region eu -character-realm Thrall-Kazzak
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/liamnap/RatedStats-Achiev/internal/blizzard"
	"github.com/liamnap/RatedStats-Achiev/internal/checkchar"
	"github.com/liamnap/RatedStats-Achiev/internal/config"
	"github.com/liamnap/RatedStats-Achiev/internal/logging"
	"github.com/liamnap/RatedStats-Achiev/internal/models"
	"github.com/liamnap/RatedStats-Achiev/internal/ratelimit"
)

func main() {
	var (
		regionCode string
		key        string
		guid       int64
	)
	flag.StringVar(&regionCode, "region", "", "region code: us, eu, kr, tw")
	flag.StringVar(&key, "character-realm", "", "character key, e.g. Thrall-Kazzak")
	flag.Int64Var(&guid, "guid", 0, "character GUID for the suggested row, if known")
	flag.Parse()

	if regionCode == "" || key == "" {
		fmt.Fprintln(os.Stderr, "Error: -region and -character-realm are required")
		flag.Usage()
		os.Exit(2)
	}

	key = strings.ToLower(key)
	name, realm, err := models.ParseKey(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	cfg.Region.Code = strings.ToLower(regionCode)
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("Invalid configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	clientID, clientSecret, ok := cfg.FallbackCredentials()
	if !ok {
		fmt.Fprintln(os.Stderr, "Error: missing CHAR_PVP_ACHIEVEMENTS_ID/CHAR_PVP_ACHIEVEMENTS_SECRET credentials")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens := blizzard.NewTokenSource(cfg.Blizzard.TokenURL, clientID, clientSecret, cfg.Blizzard.RequestTimeout)
	perSecond := ratelimit.New("per_second", cfg.PerSecondCap(), time.Second)
	perHour := ratelimit.New("hourly", cfg.Blizzard.HourlyCap, time.Hour)
	client := blizzard.NewClient(cfg, tokens, perSecond, perHour)

	baseline, err := checkchar.BaselineRecords(cfg.Output.Dir, cfg.Region.Code, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Lua Baseline ===")
	for _, id := range checkchar.SortedIDs(baseline) {
		fmt.Printf("%d\t%s\n", id, baseline[id].Name)
	}

	summary, err := client.CharacterAchievements(ctx, realm, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	api := checkchar.APIRecords(summary)

	fmt.Println("\n=== API Scan ===")
	for _, id := range checkchar.SortedIDs(api) {
		fmt.Printf("%d\t%s\t%s\n", id, api[id].Name, tsString(api[id].CompletedTimestamp))
	}

	rep := checkchar.Diff(baseline, api)
	fmt.Println("\n=== Differences ===")
	fmt.Println("Missing in Lua (API only):")
	for _, id := range rep.MissingInLua {
		fmt.Printf("%d\t%s\n", id, api[id].Name)
	}
	fmt.Println("\nMissing in API (Lua only):")
	for _, id := range rep.MissingInAPI {
		fmt.Printf("%d\t%s\n", id, baseline[id].Name)
	}
	fmt.Println("\nTimestamp changed:")
	for _, id := range rep.TimestampChanged {
		fmt.Printf("%d\t%s\tLuaTS=%s\tAPITS=%s\n", id, baseline[id].Name,
			tsString(baseline[id].CompletedTimestamp), tsString(api[id].CompletedTimestamp))
	}

	fmt.Println("\n=== Suggested Lua Code Snippet ===")
	fmt.Println(checkchar.Snippet(key, guid, api))
}

// tsString renders a completion timestamp, or null when the vendor never
// recorded one.
func tsString(ts *int64) string {
	if ts == nil {
		return "null"
	}
	return strconv.FormatInt(*ts, 10)
}
