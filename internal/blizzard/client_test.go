// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package blizzard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/liamnap/RatedStats-Achiev/internal/config"
	"github.com/liamnap/RatedStats-Achiev/internal/ratelimit"
)

// testConfig returns a config suitable for fetch protocol tests: generous
// timeout, small retry cap, no fallback credentials unless a test sets them.
func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Region.Code = "eu"
	cfg.Blizzard.RequestTimeout = 2 * time.Second
	cfg.Blizzard.MaxRetries = 3
	return cfg
}

// newTestClient builds a Client whose API base and token endpoint both point
// at the given server. Limiter allowances are generous so tests exercise the
// fetch protocol rather than pacing.
func newTestClient(t *testing.T, server *httptest.Server, cfg *config.Config) *Client {
	t.Helper()

	tokens := NewTokenSource(server.URL+"/oauth/token", "test-id", "test-secret", 2*time.Second)
	perSecond := ratelimit.New("per-second-test", 1000, time.Second)
	perHour := ratelimit.New("per-hour-test", 1000, time.Second)

	c := NewClient(cfg, tokens, perSecond, perHour)
	c.apiBase = server.URL
	c.retryBase = time.Millisecond
	return c
}

// tokenHandler serves the OAuth endpoint of a fake API server and records
// which client IDs requested tokens.
func tokenHandler(clientIDs *[]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _, ok := r.BasicAuth()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if clientIDs != nil {
			*clientIDs = append(*clientIDs, id)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"token-for-` + id + `","expires_in":86400}`))
	}
}

func TestFetchJSONDecodesResponse(t *testing.T) {
	var sawAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(nil))
	mux.HandleFunc("/data/wow/thing", func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"id": 42, "name": "answer"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server, testConfig())

	var result struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := client.FetchJSON(context.Background(), server.URL+"/data/wow/thing", &result); err != nil {
		t.Fatalf("FetchJSON() error = %v", err)
	}

	if result.ID != 42 || result.Name != "answer" {
		t.Errorf("decoded = %+v, want {42 answer}", result)
	}
	if sawAuth != "Bearer token-for-test-id" {
		t.Errorf("Authorization = %q, want bearer token from the token source", sawAuth)
	}
}

func TestFetchJSONCachesStaticURLs(t *testing.T) {
	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(nil))
	mux.HandleFunc("/data/wow/achievement/index", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"achievements": []}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server, testConfig())
	url := server.URL + "/data/wow/achievement/index?namespace=static-eu"

	var first, second struct {
		Achievements []struct{} `json:"achievements"`
	}
	if err := client.FetchJSON(context.Background(), url, &first); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if err := client.FetchJSON(context.Background(), url, &second); err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("server hits = %d, want 1 (second call served from cache)", got)
	}
}

func TestFetchJSONNeverCachesProfileURLs(t *testing.T) {
	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(nil))
	mux.HandleFunc("/profile/wow/character/silvermoon/brutto/achievements", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"achievements": []}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server, testConfig())
	url := server.URL + "/profile/wow/character/silvermoon/brutto/achievements?namespace=profile-eu"

	var result AchievementsSummary
	for i := 0; i < 2; i++ {
		if err := client.FetchJSON(context.Background(), url, &result); err != nil {
			t.Fatalf("fetch %d: %v", i+1, err)
		}
	}

	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("server hits = %d, want 2 (profile URLs bypass the cache)", got)
	}
}

func TestFetchJSONRateLimited(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(nil))
	mux.HandleFunc("/data/wow/busy", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server, testConfig())

	var result struct{}
	err := client.FetchJSON(context.Background(), server.URL+"/data/wow/busy", &result)
	if err == nil {
		t.Fatal("expected error for HTTP 429")
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("errors.Is(err, ErrRateLimited) = false for %v", err)
	}

	var rle *RateLimitedError
	if !errors.As(err, &rle) {
		t.Fatalf("error %v is not a *RateLimitedError", err)
	}
	if rle.Status != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want 429", rle.Status)
	}
	if rle.RetryAfter != 120*time.Second {
		t.Errorf("RetryAfter = %s, want 2m0s", rle.RetryAfter)
	}

	hint := client.RetryAfterHint()
	if hint <= 119*time.Second || hint > 120*time.Second {
		t.Errorf("RetryAfterHint() = %s, want just under 2m", hint)
	}
}

func TestFetchJSONServerErrorIsThrottle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(nil))
	mux.HandleFunc("/data/wow/flaky", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server, testConfig())

	var result struct{}
	err := client.FetchJSON(context.Background(), server.URL+"/data/wow/flaky", &result)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("5xx should map to ErrRateLimited, got %v", err)
	}

	var rle *RateLimitedError
	if errors.As(err, &rle) && rle.Status != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want 503", rle.Status)
	}
}

func TestLargestRetryAfterHintWins(t *testing.T) {
	hints := []string{"60", "10"}
	var call int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(nil))
	mux.HandleFunc("/data/wow/busy", func(w http.ResponseWriter, r *http.Request) {
		idx := atomic.AddInt32(&call, 1) - 1
		w.Header().Set("Retry-After", hints[idx])
		w.WriteHeader(http.StatusTooManyRequests)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server, testConfig())

	var result struct{}
	for i := 0; i < 2; i++ {
		_ = client.FetchJSON(context.Background(), server.URL+"/data/wow/busy", &result)
	}

	// The second response advised only 10s. The earlier 60s hint must still
	// govern the next sweep.
	hint := client.RetryAfterHint()
	if hint <= 50*time.Second {
		t.Errorf("RetryAfterHint() = %s, want the 60s hint to survive the 10s one", hint)
	}
}

func TestCredentialRotationOnFirstThrottle(t *testing.T) {
	var tokenClients []string
	var dataCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(&tokenClients))
	mux.HandleFunc("/profile/wow/character/silvermoon/brutto/achievements", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&dataCalls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig()
	cfg.Blizzard.FallbackClientID = "fallback-id"
	cfg.Blizzard.FallbackClientSecret = "fallback-secret"
	client := newTestClient(t, server, cfg)

	var result struct{}
	url := server.URL + "/profile/wow/character/silvermoon/brutto/achievements"

	// First call throttles and triggers the one-time rotation.
	if err := client.FetchJSON(context.Background(), url, &result); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("first call: want ErrRateLimited, got %v", err)
	}
	// Second call throttles again; rotation must not repeat.
	if err := client.FetchJSON(context.Background(), url, &result); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("second call: want ErrRateLimited, got %v", err)
	}
	// Third call succeeds with the rotated pair.
	if err := client.FetchJSON(context.Background(), url, &result); err != nil {
		t.Fatalf("third call: %v", err)
	}

	if len(tokenClients) != 2 {
		t.Fatalf("token fetches = %d (%v), want 2: primary then fallback", len(tokenClients), tokenClients)
	}
	if tokenClients[0] != "test-id" || tokenClients[1] != "fallback-id" {
		t.Errorf("token clients = %v, want [test-id fallback-id]", tokenClients)
	}
}

func TestFetchJSONFatalStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(nil))
	mux.HandleFunc("/data/wow/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "Not Found"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server, testConfig())

	var result struct{}
	err := client.FetchJSON(context.Background(), server.URL+"/data/wow/missing", &result)
	if err == nil {
		t.Fatal("expected error for HTTP 404")
	}
	if errors.Is(err, ErrRateLimited) {
		t.Error("404 must not map to ErrRateLimited")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error %v is not a *FetchError", err)
	}
	if fe.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", fe.Status)
	}
}

func TestFetchJSONTimeoutRetries(t *testing.T) {
	var attempts int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(nil))
	mux.HandleFunc("/data/wow/slow", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			time.Sleep(300 * time.Millisecond) // beyond the client timeout
			return
		}
		w.Write([]byte(`{}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig()
	cfg.Blizzard.RequestTimeout = 100 * time.Millisecond
	client := newTestClient(t, server, cfg)

	var result struct{}
	if err := client.FetchJSON(context.Background(), server.URL+"/data/wow/slow", &result); err != nil {
		t.Fatalf("FetchJSON() error = %v, want success on third attempt", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestFetchJSONTimeoutExhausted(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(nil))
	mux.HandleFunc("/data/wow/dead", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig()
	cfg.Blizzard.RequestTimeout = 50 * time.Millisecond
	cfg.Blizzard.MaxRetries = 2
	client := newTestClient(t, server, cfg)

	var result struct{}
	err := client.FetchJSON(context.Background(), server.URL+"/data/wow/dead", &result)
	if err == nil {
		t.Fatal("expected error after exhausted timeout retries")
	}
	if errors.Is(err, ErrRateLimited) {
		t.Error("timeout exhaustion must not map to ErrRateLimited")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error %v is not a *FetchError", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Duration
		ok    bool
	}{
		{"empty", "", 0, false},
		{"integer seconds", "120", 120 * time.Second, true},
		{"padded integer", " 30 ", 30 * time.Second, true},
		{"zero seconds", "0", 0, true},
		{"negative seconds", "-5", 0, false},
		{"http date in future", now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second, true},
		{"http date in past", now.Add(-time.Hour).Format(http.TimeFormat), 0, false},
		{"garbage", "soon", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := parseRetryAfter(tt.value, now)
			if ok != tt.ok {
				t.Fatalf("parseRetryAfter(%q) ok = %v, want %v", tt.value, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("parseRetryAfter(%q) = %s, want %s", tt.value, got, tt.want)
			}
		})
	}
}

func TestIsCacheable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want bool
	}{
		{"https://eu.api.blizzard.com/data/wow/achievement/index?namespace=static-eu", true},
		{"https://eu.api.blizzard.com/data/wow/pvp-season/index?namespace=dynamic-eu", true},
		{"https://eu.api.blizzard.com/profile/wow/character/silvermoon/brutto/achievements", false},
		{"https://us.battle.net/oauth/token", false},
	}

	for _, tt := range tests {
		if got := isCacheable(tt.url); got != tt.want {
			t.Errorf("isCacheable(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestClassifyURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{"https://eu.api.blizzard.com/profile/wow/character/silvermoon/brutto/achievements?namespace=profile-eu", "profile"},
		{"https://eu.api.blizzard.com/data/wow/achievement/index?namespace=static-11.2.0_62213-eu", "static"},
		{"https://eu.api.blizzard.com/data/wow/pvp-season/index?namespace=dynamic-eu", "dynamic"},
	}

	for _, tt := range tests {
		if got := classifyURL(tt.url); got != tt.want {
			t.Errorf("classifyURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
