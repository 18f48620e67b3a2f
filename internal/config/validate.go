// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package config

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// singleton validator instance; caches struct metadata across calls.
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the configuration for structural and semantic errors.
// Struct tags cover the per-field rules; cross-field constraints that tags
// cannot express are checked by hand below.
func (c *Config) Validate() error {
	if err := validatorInstance().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid %s: failed %q constraint (value %v)", first.Namespace(), first.Tag(), first.Value())
		}
		return err
	}

	checks := []func() error{
		c.validateTimeouts,
		c.validateBatchSizes,
		c.validateOpsAddr,
		c.validateOutputBudget,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// validateTimeouts bounds the durations tags cannot range-check.
func (c *Config) validateTimeouts() error {
	if c.Blizzard.RequestTimeout < time.Second || c.Blizzard.RequestTimeout > time.Minute {
		return fmt.Errorf("BLIZZARD_REQUEST_TIMEOUT must be between 1s and 1m, got %s", c.Blizzard.RequestTimeout)
	}
	if c.Sync.RetryInterval < time.Second || c.Sync.RetryInterval > time.Hour {
		return fmt.Errorf("SYNC_RETRY_INTERVAL must be between 1s and 1h, got %s", c.Sync.RetryInterval)
	}
	if c.Sync.HeartbeatInterval < time.Second || c.Sync.HeartbeatInterval > 10*time.Minute {
		return fmt.Errorf("SYNC_HEARTBEAT_INTERVAL must be between 1s and 10m, got %s", c.Sync.HeartbeatInterval)
	}
	if c.Discovery.TTL < time.Minute {
		return fmt.Errorf("DISCOVERY_TTL must be at least 1m, got %s", c.Discovery.TTL)
	}
	return nil
}

// validateBatchSizes keeps the fan-out bounded relative to the window.
func (c *Config) validateBatchSizes() error {
	if c.Sync.BatchSize > 100000 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be at most 100000, got %d", c.Sync.BatchSize)
	}
	if c.Sync.SubBatchSize > c.Sync.BatchSize {
		return fmt.Errorf("SYNC_SUB_BATCH_SIZE (%d) must not exceed SYNC_BATCH_SIZE (%d)", c.Sync.SubBatchSize, c.Sync.BatchSize)
	}
	return nil
}

// validateOpsAddr requires a parseable host:port when the listener is on.
func (c *Config) validateOpsAddr() error {
	if !c.Ops.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Ops.Addr); err != nil {
		return fmt.Errorf("OPS_ADDR is not a valid host:port: %w", err)
	}
	return nil
}

// validateOutputBudget keeps parts loadable by the addon. A single entry can
// run to a few KB; a budget below that would split every entry into its own
// part and still overflow.
func (c *Config) validateOutputBudget() error {
	const maxBudget = 100 << 20 // GitHub hard limit
	if c.Output.MaxFileBytes > maxBudget {
		return fmt.Errorf("OUTPUT_MAX_FILE_BYTES must be at most %d (GitHub rejects larger files), got %d", int64(maxBudget), c.Output.MaxFileBytes)
	}
	return nil
}
