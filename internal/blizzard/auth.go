// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package blizzard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/liamnap/RatedStats-Achiev/internal/logging"
	"github.com/liamnap/RatedStats-Achiev/internal/metrics"
)

// tokenExpiryMargin is subtracted from the advertised token lifetime so a
// token is refreshed before the upstream actually rejects it.
const tokenExpiryMargin = 60 * time.Second

// TokenSource obtains and caches OAuth client-credentials tokens for the
// Battle.net API. Token requests always go to the configured token endpoint
// (the us.battle.net authority serves all regions) and bypass both rate
// limiters and the URL cache.
//
// DETERMINISM NOTE: The circuit breaker uses real time (via sony/gobreaker)
// for its interval and timeout calculations. This is intentional:
//   - The timing determines when to recover from auth outages, not data integrity
//   - Tests should point the source at a local test server, not mock the breaker
type TokenSource struct {
	tokenURL   string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[string]

	mu           sync.Mutex
	clientID     string
	clientSecret string
	token        string
	expiry       time.Time
}

// NewTokenSource creates a token source for the given credential pair.
// Circuit breaker configuration:
// - Max 1 request in half-open state (token fetches are serialized anyway)
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 3 consecutive failures
func NewTokenSource(tokenURL, clientID, clientSecret string, timeout time.Duration) *TokenSource {
	cbName := "oauth-token"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[AUTH] Circuit breaker state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &TokenSource{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: timeout},
		cb:           cb,
	}
}

// Token returns a valid bearer token, fetching a fresh one when the cached
// token is missing or within the expiry margin.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Now().Before(ts.expiry) {
		return ts.token, nil
	}
	return ts.refreshLocked(ctx)
}

// Rotate swaps the credential pair and invalidates the cached token. The next
// Token call authenticates with the new pair. Used once per run when the
// upstream starts throttling the primary pair.
func (ts *TokenSource) Rotate(clientID, clientSecret string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	logging.Warn().
		Str("old_client_id", logging.RedactClientID(ts.clientID)).
		Str("new_client_id", logging.RedactClientID(clientID)).
		Msg("[AUTH] Rotating to fallback credentials")

	ts.clientID = clientID
	ts.clientSecret = clientSecret
	ts.token = ""
	ts.expiry = time.Time{}
	metrics.CredentialRotations.Inc()
}

// refreshLocked fetches a new token. Caller must hold ts.mu.
func (ts *TokenSource) refreshLocked(ctx context.Context) (string, error) {
	token, err := ts.cb.Execute(func() (string, error) {
		return ts.fetchToken(ctx)
	})
	if err != nil {
		metrics.CircuitBreakerRequests.WithLabelValues("oauth-token", requestResult(err)).Inc()
		return "", fmt.Errorf("token refresh: %w", err)
	}
	metrics.CircuitBreakerRequests.WithLabelValues("oauth-token", "success").Inc()

	ts.token = token
	return token, nil
}

func (ts *TokenSource) fetchToken(ctx context.Context) (string, error) {
	start := time.Now()

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(ts.clientID, ts.clientSecret)

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		metrics.RecordFetch("", "oauth", "fatal", time.Since(start))
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		metrics.RecordFetch("", "oauth", "fatal", time.Since(start))
		return "", fmt.Errorf("token endpoint returned HTTP %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		metrics.RecordFetch("", "oauth", "fatal", time.Since(start))
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		metrics.RecordFetch("", "oauth", "fatal", time.Since(start))
		return "", fmt.Errorf("token endpoint returned empty access_token")
	}

	lifetime := time.Duration(payload.ExpiresIn) * time.Second
	if lifetime > tokenExpiryMargin {
		lifetime -= tokenExpiryMargin
	}
	ts.expiry = time.Now().Add(lifetime)

	metrics.RecordFetch("", "oauth", "ok", time.Since(start))
	logging.Debug().
		Str("client_id", logging.RedactClientID(ts.clientID)).
		Time("expiry", ts.expiry).
		Msg("[AUTH] Obtained access token")

	return payload.AccessToken, nil
}

func requestResult(err error) string {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "rejected"
	}
	return "failure"
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// maxErrorBodySize limits the response body read for error reporting. This
// prevents unbounded allocation when an error response is large.
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads the response body for error reporting (max 64KB).
// Returns the body content or a placeholder message if reading fails.
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}
