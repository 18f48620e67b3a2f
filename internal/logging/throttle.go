// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package logging

import (
	"time"

	"golang.org/x/time/rate"
)

// Throttle limits how often a repetitive log site fires. During a throttling
// burst the fetch layer can see hundreds of 429 responses per sweep; logging
// each one drowns the heartbeat. A Throttle lets the first few through and
// then at most one per interval.
//
// Safe for concurrent use.
type Throttle struct {
	s rate.Sometimes
}

// NewThrottle creates a Throttle that logs the first burst occurrences
// unconditionally and then at most one call per interval.
func NewThrottle(burst int, interval time.Duration) *Throttle {
	return &Throttle{s: rate.Sometimes{First: burst, Interval: interval}}
}

// Do runs fn if the throttle admits this occurrence.
//
//	t.Do(func() {
//	    logging.Warn().Str("url", url).Msg("Throttled by upstream")
//	})
func (t *Throttle) Do(fn func()) {
	t.s.Do(fn)
}
