// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Limiter is a token bucket that admits at most capacity calls per period.
//
// Tokens are continuous-valued and refill at capacity/period tokens per
// second, capped at capacity. A fresh limiter starts full, so a burst of up
// to capacity calls is admitted immediately before refill pacing takes
// over. Acquisition is serialized by a mutex: only one goroutine computes
// or mutates the bucket at a time, and a caller that must wait for a token
// holds the mutex while it sleeps so later callers cannot double-spend
// fractional tokens. Waiters queue on the mutex; ordering between them is
// whatever the runtime provides, which is acceptable because admissions are
// interchangeable.
//
// DETERMINISM NOTE: the limiter uses real time. After a forced wait the
// bucket is pinned to exactly one token rather than recomputed from the
// measured sleep, so scheduler overshoot never over-credits the bucket.
type Limiter struct {
	mu       sync.Mutex
	name     string
	capacity float64
	fillRate float64 // tokens per second
	tokens   float64
	last     time.Time
}

// New creates a token bucket admitting maxCalls per period.
// The bucket starts full.
func New(name string, maxCalls int, period time.Duration) *Limiter {
	return &Limiter{
		name:     name,
		capacity: float64(maxCalls),
		fillRate: float64(maxCalls) / period.Seconds(),
		tokens:   float64(maxCalls),
		last:     time.Now(),
	}
}

// Acquire blocks until one admission token is available, then consumes it.
// It returns early with the context's error if ctx is cancelled while
// waiting. A cancelled wait consumes no token.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.last).Seconds()
	l.last = now
	l.tokens = math.Min(l.capacity, l.tokens+elapsed*l.fillRate)

	if l.tokens < 1 {
		wait := time.Duration((1 - l.tokens) / l.fillRate * float64(time.Second))
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		// Pin to exactly one token after a forced wait. time.Sleep can
		// overshoot; crediting the measured elapsed time here would let a
		// delayed wakeup mint extra tokens.
		l.last = time.Now()
		l.tokens = 1
	}

	l.tokens--
	return nil
}

// Name returns the label the limiter was created with.
func (l *Limiter) Name() string {
	return l.name
}

// Tokens reports the current token balance after applying any refill due.
// It is a point-in-time reading for status reporting; the balance may
// change as soon as the method returns.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.last).Seconds()
	l.last = now
	l.tokens = math.Min(l.capacity, l.tokens+elapsed*l.fillRate)
	return l.tokens
}

// Capacity returns the maximum burst size.
func (l *Limiter) Capacity() float64 {
	return l.capacity
}
