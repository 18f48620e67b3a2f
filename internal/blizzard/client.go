// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

/*
client.go - Core Battle.net API Client

This file provides the Client struct and the fetch protocol shared by every
Game Data and Profile API call.

Client Features:
  - Bearer authentication via a cached, rotatable token source
  - Dual token-bucket admission (per-second and hourly) before every request
  - Unbounded in-process cache for static/idempotent URLs
  - Typed RateLimitedError for HTTP 429/5xx with Retry-After capture
  - One-time credential rotation on the first sustained throttle
  - Internal retries with exponential backoff for socket timeouts only
  - JSON response parsing with goccy/go-json

Fetch Protocol (per URL):
 1. Static URLs (anything that is not a character profile call) are served
    from the cache when present. Profile URLs are never cached because their
    content changes as players earn achievements.
 2. Both rate limiters are acquired, per-second first.
 3. HTTP 200 decodes into the caller's struct and populates the cache.
 4. HTTP 429 and 5xx return RateLimitedError without internal retries. The
    caller re-queues the character and sleeps on the Retry-After hint.
 5. Socket timeouts retry internally with 2^attempt second backoff up to the
    configured attempt cap.
 6. Any other status is a fatal FetchError for that URL.

Related Files:
  - auth.go: OAuth token source with circuit breaker and rotation
  - leaderboard.go: season, bracket, and leaderboard entry calls
  - achievements.go: achievement index filtering and profile summaries
  - namespace.go: static namespace discovery
*/

package blizzard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/liamnap/RatedStats-Achiev/internal/config"
	"github.com/liamnap/RatedStats-Achiev/internal/logging"
	"github.com/liamnap/RatedStats-Achiev/internal/metrics"
	"github.com/liamnap/RatedStats-Achiev/internal/ratelimit"
)

// Client handles communication with the Battle.net Game Data and Profile
// APIs for a single region.
//
// Thread Safety: Safe for concurrent use. The URL cache and the Retry-After
// hint are guarded by their own locks; everything else is immutable after
// construction.
type Client struct {
	region     string
	apiBase    string
	locale     string
	httpClient *http.Client
	tokens     *TokenSource
	perSecond  *ratelimit.Limiter
	perHour    *ratelimit.Limiter
	maxRetries int
	retryBase  time.Duration // base unit for timeout backoff

	cacheMu  sync.RWMutex
	urlCache map[string][]byte

	hintMu          sync.Mutex
	retryAfterUntil time.Time

	rotateOnce     sync.Once
	fallbackID     string
	fallbackSecret string
	hasFallback    bool

	// throttleLog caps the 429 warning volume during a throttle storm.
	// Every occurrence is still counted in metrics.
	throttleLog *logging.Throttle
}

// NewClient creates an API client for the configured region.
//
// The per-request socket timeout comes from cfg.Blizzard.RequestTimeout.
// Credential rotation uses the reserve pair when cfg carries one; without a
// reserve pair the client simply never rotates.
func NewClient(cfg *config.Config, tokens *TokenSource, perSecond, perHour *ratelimit.Limiter) *Client {
	fallbackID, fallbackSecret, hasFallback := cfg.FallbackCredentials()

	return &Client{
		region:     cfg.Region.Code,
		apiBase:    cfg.APIBase(),
		locale:     cfg.Locale(),
		httpClient: &http.Client{Timeout: cfg.Blizzard.RequestTimeout},
		tokens:     tokens,
		perSecond:  perSecond,
		perHour:    perHour,
		maxRetries: cfg.Blizzard.MaxRetries,
		retryBase:  time.Second,

		urlCache: make(map[string][]byte),

		fallbackID:     fallbackID,
		fallbackSecret: fallbackSecret,
		hasFallback:    hasFallback,

		throttleLog: logging.NewThrottle(3, 30*time.Second),
	}
}

// Region returns the region code this client serves.
func (c *Client) Region() string {
	return c.region
}

// RetryAfterHint returns the remaining time on the largest Retry-After hint
// observed so far, or zero when no hint is pending. Hints expire on their
// own, so a burst from ten minutes ago no longer delays the next sweep.
func (c *Client) RetryAfterHint() time.Duration {
	c.hintMu.Lock()
	defer c.hintMu.Unlock()
	if remaining := time.Until(c.retryAfterUntil); remaining > 0 {
		return remaining
	}
	return 0
}

// FetchJSON performs a GET against url and decodes the response into result.
//
// Static URLs are served from the in-process cache when possible. On a cache
// miss both rate limiters are acquired before the network call. Throttling
// responses surface as RateLimitedError; socket timeouts are retried
// internally; any other failure is a FetchError.
func (c *Client) FetchJSON(ctx context.Context, url string, result interface{}) error {
	cacheable := isCacheable(url)

	if cacheable {
		if body, ok := c.cachedBody(url); ok {
			metrics.CacheHits.WithLabelValues("url").Inc()
			return decodeBody(url, body, result)
		}
		metrics.CacheMisses.WithLabelValues("url").Inc()
	}

	if err := c.acquireLimiters(ctx); err != nil {
		return err
	}

	body, err := c.doWithTimeoutRetries(ctx, url)
	if err != nil {
		return err
	}

	if cacheable {
		c.storeBody(url, body)
	}
	return decodeBody(url, body, result)
}

// acquireLimiters blocks until both buckets admit one call, per-second
// first. Wait durations and remaining tokens feed the limiter metrics.
func (c *Client) acquireLimiters(ctx context.Context) error {
	for _, limiter := range []*ratelimit.Limiter{c.perSecond, c.perHour} {
		start := time.Now()
		if err := limiter.Acquire(ctx); err != nil {
			return err
		}
		metrics.RecordLimiterWait(limiter.Name(), time.Since(start), limiter.Tokens())
	}
	return nil
}

// doWithTimeoutRetries performs the request, retrying socket timeouts with
// exponential backoff (2s, 4s, 8s, ...). All other outcomes pass through on
// the first attempt.
func (c *Client) doWithTimeoutRetries(ctx context.Context, url string) ([]byte, error) {
	kind := classifyURL(url)

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		body, err := c.doOnce(ctx, url, kind)
		if err == nil {
			return body, nil
		}

		if !isTimeout(err) || ctx.Err() != nil {
			return nil, err
		}

		metrics.FetchTimeoutRetries.WithLabelValues(c.region).Inc()
		logging.Warn().
			Str("region", c.region).
			Str("url", url).
			Int("attempt", attempt).
			Msg("[FETCH] Socket timeout, backing off")

		// 2^attempt base units: 2s, 4s, 8s, 16s, 32s in production
		delay := time.Duration(1<<uint(attempt)) * c.retryBase
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	metrics.RecordFetch(c.region, kind, "fatal", 0)
	return nil, &FetchError{
		URL: url,
		Err: fmt.Errorf("request timed out after %d attempts", c.maxRetries),
	}
}

// doOnce performs a single HTTP round trip and maps the status code onto the
// fetch protocol outcomes.
func (c *Client) doOnce(ctx context.Context, url, kind string) ([]byte, error) {
	start := time.Now()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			metrics.RecordFetch(c.region, kind, "timeout", time.Since(start))
			return nil, err
		}
		metrics.RecordFetch(c.region, kind, "fatal", time.Since(start))
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			metrics.RecordFetch(c.region, kind, "fatal", time.Since(start))
			return nil, &FetchError{URL: url, Err: fmt.Errorf("failed to read response body: %w", err)}
		}
		metrics.RecordFetch(c.region, kind, "ok", time.Since(start))
		return body, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.RecordFetch(c.region, kind, "throttled", time.Since(start))
		return nil, c.throttled(resp, url, true)

	case resp.StatusCode >= 500 && resp.StatusCode < 600:
		metrics.RecordFetch(c.region, kind, "throttled", time.Since(start))
		return nil, c.throttled(resp, url, false)

	default:
		body := readBodyForError(resp.Body)
		metrics.RecordFetch(c.region, kind, "fatal", time.Since(start))
		return nil, &FetchError{
			URL:    url,
			Status: resp.StatusCode,
			Body:   string(body),
		}
	}
}

// throttled builds the RateLimitedError for a 429/5xx response, records the
// Retry-After hint, and on the first genuine 429 rotates to the reserve
// credential pair when one is configured.
func (c *Client) throttled(resp *http.Response, url string, rotate bool) error {
	metrics.RecordThrottled(c.region, strconv.Itoa(resp.StatusCode))

	hint, _ := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	c.noteRetryAfter(hint)

	if rotate && c.hasFallback {
		c.rotateOnce.Do(func() {
			c.tokens.Rotate(c.fallbackID, c.fallbackSecret)
		})
	}

	status := resp.StatusCode
	c.throttleLog.Do(func() {
		logging.Warn().
			Str("region", c.region).
			Int("status", status).
			Dur("retry_after", hint).
			Msg("[FETCH] Upstream throttling, re-queueing for next sweep")
	})

	return &RateLimitedError{Status: status, URL: url, RetryAfter: hint}
}

// noteRetryAfter folds a hint into the pending deadline. The largest hint in
// a burst wins: a later request advising 30s never shortens an earlier 120s.
func (c *Client) noteRetryAfter(hint time.Duration) {
	if hint <= 0 {
		return
	}
	deadline := time.Now().Add(hint)
	c.hintMu.Lock()
	if deadline.After(c.retryAfterUntil) {
		c.retryAfterUntil = deadline
	}
	c.hintMu.Unlock()
}

func (c *Client) cachedBody(url string) ([]byte, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	body, ok := c.urlCache[url]
	return body, ok
}

func (c *Client) storeBody(url string, body []byte) {
	c.cacheMu.Lock()
	c.urlCache[url] = body
	size := len(c.urlCache)
	c.cacheMu.Unlock()
	metrics.CacheSize.WithLabelValues("url").Set(float64(size))
}

// isCacheable reports whether a URL may be served from the in-process cache.
// Character profile responses change between calls and token requests carry
// credentials, so neither is ever cached.
func isCacheable(url string) bool {
	return !strings.Contains(url, "profile/wow/character") && !strings.Contains(url, "oauth")
}

// classifyURL buckets a URL for the fetch metrics.
func classifyURL(url string) string {
	switch {
	case strings.Contains(url, "profile/wow/character"):
		return "profile"
	case strings.Contains(url, "namespace=static"):
		return "static"
	default:
		return "dynamic"
	}
}

// decodeBody unmarshals a response body, wrapping failures as FetchError so
// a malformed payload is attributed to its URL.
func decodeBody(url string, body []byte, result interface{}) error {
	if err := json.Unmarshal(body, result); err != nil {
		return &FetchError{URL: url, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// isTimeout reports whether err is a socket-level timeout. Context
// cancellation from the caller is not a timeout; doWithTimeoutRetries checks
// ctx.Err() separately so a cancelled run stops instead of backing off.
func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// parseRetryAfter interprets a Retry-After header value as a forward-looking
// duration. Both forms from RFC 9110 are accepted: an integer second count
// and an HTTP-date. Dates in the past and unparseable values report false.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		if remaining := at.Sub(now); remaining > 0 {
			return remaining, true
		}
	}
	return 0, false
}
