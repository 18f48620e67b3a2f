// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package blizzard

import (
	"errors"
	"fmt"
	"time"
)

// ErrRateLimited is the sentinel for throttling responses (HTTP 429 and 5xx).
// Callers match it with errors.Is; the wrapped RateLimitedError carries the
// status code and any Retry-After hint.
var ErrRateLimited = errors.New("rate limited by upstream")

// RateLimitedError reports an upstream throttling response. The fetch client
// never retries these internally. The caller re-queues the work and consults
// RetryAfter when scheduling the next sweep.
type RateLimitedError struct {
	Status     int
	URL        string
	RetryAfter time.Duration // zero when the response carried no usable hint
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("upstream throttled (HTTP %d, retry after %s): %s", e.Status, e.RetryAfter, e.URL)
	}
	return fmt.Sprintf("upstream throttled (HTTP %d): %s", e.Status, e.URL)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// FetchError reports a non-retryable failure for a single URL: an unexpected
// status code, a decode failure, or exhausted timeout retries.
type FetchError struct {
	URL    string
	Status int    // zero when the failure happened below HTTP
	Body   string // truncated response excerpt, empty when unavailable
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("fetch failed for %s (HTTP %d): %s", e.URL, e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("fetch failed for %s (HTTP %d)", e.URL, e.Status)
	default:
		return fmt.Sprintf("fetch failed for %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
