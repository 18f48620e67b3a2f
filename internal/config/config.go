// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the root configuration for the sync runner and the checker.
//
// Precedence: environment variables > config file > defaults. Run-selection
// parameters (mode, batch index, offset/limit window) are CLI flags owned by
// the commands, not configuration; everything here describes the environment
// a run executes in.
type Config struct {
	Region    RegionConfig    `koanf:"region"`
	Blizzard  BlizzardConfig  `koanf:"blizzard"`
	Sync      SyncConfig      `koanf:"sync"`
	Store     StoreConfig     `koanf:"store"`
	Output    OutputConfig    `koanf:"output"`
	Discovery DiscoveryConfig `koanf:"discovery"`
	Ops       OpsConfig       `koanf:"ops"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// RegionConfig selects the Blizzard region shard to sync.
type RegionConfig struct {
	// Code is one of us, eu, kr, tw.
	Code string `koanf:"code" validate:"required,oneof=us eu kr tw"`
}

// BlizzardConfig holds API credentials and client behavior.
//
// Credential resolution order for a region (first complete pair wins):
//  1. suffix override pair (BLIZZARD_CLIENT_ID_<SUFFIX>), when CredentialSuffix is set
//  2. region pair (e.g. BLIZZARD_CLIENT_ID_EU for region eu)
//  3. base pair (BLIZZARD_CLIENT_ID)
//
// The fallback pair (CHAR_PVP_ACHIEVEMENTS_ID/SECRET) is never part of the
// initial resolution; the fetch client rotates to it once after the first
// upstream 429.
type BlizzardConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`

	ClientIDUS     string `koanf:"client_id_us"`
	ClientSecretUS string `koanf:"client_secret_us"`
	ClientIDEU     string `koanf:"client_id_eu"`
	ClientSecretEU string `koanf:"client_secret_eu"`
	ClientIDKR     string `koanf:"client_id_kr"`
	ClientSecretKR string `koanf:"client_secret_kr"`
	ClientIDTW     string `koanf:"client_id_tw"`
	ClientSecretTW string `koanf:"client_secret_tw"`

	FallbackClientID     string `koanf:"fallback_client_id"`
	FallbackClientSecret string `koanf:"fallback_client_secret"`

	// CredentialSuffix selects an explicit credential pair by env suffix,
	// e.g. "CI" reads BLIZZARD_CLIENT_ID_CI / BLIZZARD_CLIENT_SECRET_CI.
	CredentialSuffix string `koanf:"credential_suffix"`

	// TokenURL is the OAuth2 client-credentials endpoint. All regions
	// authenticate against the US endpoint.
	TokenURL string `koanf:"token_url" validate:"required,url"`

	// RequestTimeout bounds each API call at the socket level.
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"required"`

	// MaxRetries caps in-client retries after socket timeouts. 429/5xx are
	// not retried in the client; the pipeline re-queues those.
	MaxRetries int `koanf:"max_retries" validate:"min=1,max=10"`

	// HourlyCap is the long-window request quota per credential pair.
	HourlyCap int `koanf:"hourly_cap" validate:"min=1"`

	// PerSecondCap overrides the regional per-second cap when non-zero.
	// Zero selects the regional default (9 for us/eu, 100 for kr/tw).
	PerSecondCap int `koanf:"per_second_cap" validate:"min=0"`
}

// SyncConfig tunes the ingestion pipeline.
type SyncConfig struct {
	// BatchSize is the identity-window size sliced per batch run.
	BatchSize int `koanf:"batch_size" validate:"min=1"`

	// SubBatchSize bounds how many fetch tasks are scheduled at once
	// inside a sweep, independent of window size.
	SubBatchSize int `koanf:"sub_batch_size" validate:"min=1"`

	// RetryInterval is the base sleep between retry sweeps. The actual
	// sleep is max(RetryInterval, latest Retry-After hint).
	RetryInterval time.Duration `koanf:"retry_interval" validate:"required"`

	// HeartbeatInterval paces progress logging.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval" validate:"required"`
}

// StoreConfig configures the DuckDB record store.
type StoreConfig struct {
	// Dir holds the per-region, per-batch shard databases.
	Dir string `koanf:"dir" validate:"required"`

	// MaxMemory caps DuckDB memory usage, e.g. "2GB".
	MaxMemory string `koanf:"max_memory"`

	// Threads sets DuckDB worker threads; 0 means one per CPU core.
	Threads int `koanf:"threads" validate:"min=0"`
}

// OutputConfig configures the Lua output writer.
type OutputConfig struct {
	// Dir receives the published region_<r>.lua files.
	Dir string `koanf:"dir" validate:"required"`

	// MaxFileBytes is the byte budget per output part. Files above GitHub's
	// 50MB warning threshold get pushed into LFS, which the addon cannot
	// load, so parts must stay under it.
	MaxFileBytes int64 `koanf:"max_file_bytes" validate:"min=1024"`

	// Guard prefixes each published file with a region conditional so a
	// client loading every region file only keeps its own.
	Guard bool `koanf:"guard"`
}

// DiscoveryConfig configures the cross-run discovery cache (season ID,
// bracket list, static namespace).
type DiscoveryConfig struct {
	// Dir is the badger database directory.
	Dir string `koanf:"dir" validate:"required"`

	// TTL bounds how long discovered values are trusted before a live
	// re-lookup.
	TTL time.Duration `koanf:"ttl" validate:"required"`
}

// OpsConfig configures the optional HTTP listener for health and metrics.
// Batch runs are long enough that scrape-based monitoring is worthwhile;
// short runs leave it disabled.
type OpsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr" validate:"required"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// regionLocales maps region codes to the locale used on all API calls.
var regionLocales = map[string]string{
	"us": "en_US",
	"eu": "en_GB",
	"kr": "ko_KR",
	"tw": "zh_TW",
}

// regionPerSecondCaps maps region codes to the sustainable per-second call
// cap. The us/eu API shards throttle aggressively; kr/tw tolerate the
// documented 100/s.
var regionPerSecondCaps = map[string]int{
	"us": 9,
	"eu": 9,
	"kr": 100,
	"tw": 100,
}

// Locale returns the locale string for the configured region.
func (c *Config) Locale() string {
	if l, ok := regionLocales[c.Region.Code]; ok {
		return l
	}
	return "en_US"
}

// APIBase returns the regional API origin, e.g. "https://eu.api.blizzard.com".
func (c *Config) APIBase() string {
	return fmt.Sprintf("https://%s.api.blizzard.com", c.Region.Code)
}

// DynamicNamespace returns the dynamic namespace for the configured region.
func (c *Config) DynamicNamespace() string {
	return "dynamic-" + c.Region.Code
}

// ProfileNamespace returns the profile namespace for the configured region.
func (c *Config) ProfileNamespace() string {
	return "profile-" + c.Region.Code
}

// StaticNamespaceFallback returns the unversioned static namespace used when
// discovery of the versioned one fails.
func (c *Config) StaticNamespaceFallback() string {
	return "static-" + c.Region.Code
}

// PerSecondCap returns the effective short-window limiter capacity.
func (c *Config) PerSecondCap() int {
	if c.Blizzard.PerSecondCap > 0 {
		return c.Blizzard.PerSecondCap
	}
	if capacity, ok := regionPerSecondCaps[c.Region.Code]; ok {
		return capacity
	}
	return 9
}

// ResolveCredentials returns the client id/secret pair for the configured
// region, applying the resolution order documented on BlizzardConfig.
// It fails when no pair resolves; a run without credentials cannot do
// anything useful and must abort before touching the store.
func (c *Config) ResolveCredentials() (id, secret string, err error) {
	if s := c.Blizzard.CredentialSuffix; s != "" {
		s = strings.ToUpper(s)
		id = os.Getenv("BLIZZARD_CLIENT_ID_" + s)
		secret = os.Getenv("BLIZZARD_CLIENT_SECRET_" + s)
		if id == "" || secret == "" {
			return "", "", fmt.Errorf("credential suffix %q set but BLIZZARD_CLIENT_ID_%s/BLIZZARD_CLIENT_SECRET_%s are not both present", s, s, s)
		}
		return id, secret, nil
	}

	var regionID, regionSecret string
	switch c.Region.Code {
	case "us":
		regionID, regionSecret = c.Blizzard.ClientIDUS, c.Blizzard.ClientSecretUS
	case "eu":
		regionID, regionSecret = c.Blizzard.ClientIDEU, c.Blizzard.ClientSecretEU
	case "kr":
		regionID, regionSecret = c.Blizzard.ClientIDKR, c.Blizzard.ClientSecretKR
	case "tw":
		regionID, regionSecret = c.Blizzard.ClientIDTW, c.Blizzard.ClientSecretTW
	}
	if regionID != "" && regionSecret != "" {
		return regionID, regionSecret, nil
	}

	if c.Blizzard.ClientID != "" && c.Blizzard.ClientSecret != "" {
		return c.Blizzard.ClientID, c.Blizzard.ClientSecret, nil
	}

	return "", "", fmt.Errorf("no credentials for region %q: set BLIZZARD_CLIENT_ID_%s/BLIZZARD_CLIENT_SECRET_%s or the base BLIZZARD_CLIENT_ID/BLIZZARD_CLIENT_SECRET pair", c.Region.Code, strings.ToUpper(c.Region.Code), strings.ToUpper(c.Region.Code))
}

// FallbackCredentials returns the rotation pair and whether it is configured.
func (c *Config) FallbackCredentials() (id, secret string, ok bool) {
	if c.Blizzard.FallbackClientID != "" && c.Blizzard.FallbackClientSecret != "" {
		return c.Blizzard.FallbackClientID, c.Blizzard.FallbackClientSecret, true
	}
	return "", "", false
}

// defaultConfig returns a Config with all defaults applied.
// These are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Region: RegionConfig{
			Code: "eu",
		},
		Blizzard: BlizzardConfig{
			TokenURL:       "https://us.battle.net/oauth/token",
			RequestTimeout: 5 * time.Second,
			MaxRetries:     5,
			HourlyCap:      36000,
			PerSecondCap:   0, // regional default
		},
		Sync: SyncConfig{
			BatchSize:         2500,
			SubBatchSize:      2500,
			RetryInterval:     10 * time.Second,
			HeartbeatInterval: 10 * time.Second,
		},
		Store: StoreConfig{
			Dir:       "partial_outputs",
			MaxMemory: "2GB",
			Threads:   0, // one per CPU core
		},
		Output: OutputConfig{
			Dir:          ".",
			MaxFileBytes: 50 << 20,
		},
		Discovery: DiscoveryConfig{
			Dir: "partial_outputs/discovery",
			TTL: 24 * time.Hour,
		},
		Ops: OpsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9184",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
