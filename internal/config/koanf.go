// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"ratedstats.yaml",
	"ratedstats.yml",
	"/etc/ratedstats/config.yaml",
	"/etc/ratedstats/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values matching production behavior
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
//
// The env layer keeps the original CI variable names (REGION,
// BLIZZARD_CLIENT_ID_EU, CHAR_PVP_ACHIEVEMENTS_ID, ...) so existing GitHub
// Actions workflows keep working unchanged.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Only mapped variables are loaded; everything else in the environment is
// ignored so unrelated variables cannot pollute the config.
//
// Examples:
//   - REGION -> region.code
//   - BLIZZARD_CLIENT_ID_EU -> blizzard.client_id_eu
//   - CHAR_PVP_ACHIEVEMENTS_ID -> blizzard.fallback_client_id
//   - SYNC_BATCH_SIZE -> sync.batch_size
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Region
		"region": "region.code",

		// Blizzard credentials (CI variable names preserved)
		"blizzard_client_id":        "blizzard.client_id",
		"blizzard_client_secret":    "blizzard.client_secret",
		"blizzard_client_id_us":     "blizzard.client_id_us",
		"blizzard_client_secret_us": "blizzard.client_secret_us",
		"blizzard_client_id_eu":     "blizzard.client_id_eu",
		"blizzard_client_secret_eu": "blizzard.client_secret_eu",
		"blizzard_client_id_kr":     "blizzard.client_id_kr",
		"blizzard_client_secret_kr": "blizzard.client_secret_kr",
		"blizzard_client_id_tw":     "blizzard.client_id_tw",
		"blizzard_client_secret_tw": "blizzard.client_secret_tw",

		// Fallback pair used for one-time rotation after the first 429
		"char_pvp_achievements_id":     "blizzard.fallback_client_id",
		"char_pvp_achievements_secret": "blizzard.fallback_client_secret",

		"blizzard_credential_suffix": "blizzard.credential_suffix",
		"blizzard_token_url":         "blizzard.token_url",
		"blizzard_request_timeout":   "blizzard.request_timeout",
		"blizzard_max_retries":       "blizzard.max_retries",
		"blizzard_hourly_cap":        "blizzard.hourly_cap",
		"blizzard_per_second_cap":    "blizzard.per_second_cap",

		// Pipeline
		"sync_batch_size":         "sync.batch_size",
		"sync_sub_batch_size":     "sync.sub_batch_size",
		"sync_retry_interval":     "sync.retry_interval",
		"sync_heartbeat_interval": "sync.heartbeat_interval",

		// Store
		"store_dir":         "store.dir",
		"duckdb_max_memory": "store.max_memory",
		"duckdb_threads":    "store.threads",

		// Output
		"output_dir":            "output.dir",
		"output_max_file_bytes": "output.max_file_bytes",
		"output_guard":          "output.guard",

		// Discovery cache
		"discovery_dir": "discovery.dir",
		"discovery_ttl": "discovery.ttl",

		// Ops listener
		"ops_enabled": "ops.enabled",
		"ops_addr":    "ops.addr",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	return ""
}
