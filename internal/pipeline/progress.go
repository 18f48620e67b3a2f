// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package pipeline

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// etaUnknown is reported before the first identity completes, when there is
// no throughput sample to extrapolate from.
const etaUnknown = "–"

// Progress tracks per-run ingestion state shared between the sweep loop, the
// heartbeat logger, and the ops status endpoint. All methods are safe for
// concurrent use.
type Progress struct {
	mu        sync.Mutex
	startedAt time.Time
	total     int
	stored    int
	empty     int
	dropped   int
	retried   int
	sweeps    int
	bucket    int

	tracker rateTracker
}

// ProgressSnapshot is a point-in-time view of a run, shaped for the status
// endpoint and the heartbeat log line.
type ProgressSnapshot struct {
	Total          int     `json:"total"`
	Done           int     `json:"done"`
	Stored         int     `json:"stored"`
	Empty          int     `json:"empty"`
	Dropped        int     `json:"dropped"`
	Retried        int     `json:"retried"`
	Sweeps         int     `json:"sweeps"`
	RetryBucket    int     `json:"retry_bucket"`
	PercentDone    float64 `json:"percent_done"`
	CallsPerSecond float64 `json:"calls_per_second"`
	CallsAvg60     float64 `json:"calls_avg_60s"`
	Elapsed        string  `json:"elapsed"`
	ETA            string  `json:"eta"`
}

// NewProgress returns a Progress ready for Begin.
func NewProgress() *Progress {
	return &Progress{startedAt: time.Now()}
}

// Begin resets all counters for a new identity window.
func (p *Progress) Begin(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startedAt = time.Now()
	p.total = total
	p.stored, p.empty, p.dropped, p.retried = 0, 0, 0, 0
	p.sweeps, p.bucket = 0, 0
	p.tracker.reset()
}

// Observe records one identity outcome. Stored, empty, and dropped are
// terminal; retryable identities come back in a later sweep and reach a
// terminal outcome then.
func (p *Progress) Observe(o outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch o {
	case outcomeStored:
		p.stored++
	case outcomeEmpty:
		p.empty++
	case outcomeDropped:
		p.dropped++
	case outcomeRetryable:
		p.retried++
	case outcomeAborted:
	}
}

// RecordCall notes one completed API call for the rate windows. Calls are
// counted regardless of outcome; a throttled attempt still consumed quota.
func (p *Progress) RecordCall(now time.Time) {
	p.tracker.record(now)
}

// EndSweep closes out one pass over the working set.
func (p *Progress) EndSweep(bucketSize int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sweeps++
	p.bucket = bucketSize
}

// Snapshot returns the current view for the heartbeat and /status.
func (p *Progress) Snapshot() ProgressSnapshot {
	return p.snapshotAt(time.Now())
}

func (p *Progress) snapshotAt(now time.Time) ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	done := p.stored + p.empty + p.dropped
	elapsed := now.Sub(p.startedAt)

	snap := ProgressSnapshot{
		Total:       p.total,
		Done:        done,
		Stored:      p.stored,
		Empty:       p.empty,
		Dropped:     p.dropped,
		Retried:     p.retried,
		Sweeps:      p.sweeps,
		RetryBucket: p.bucket,
		Elapsed:     FormatDuration(elapsed),
		ETA:         etaUnknown,
	}
	if p.total > 0 {
		snap.PercentDone = round1(float64(done) / float64(p.total) * 100)
	}

	perSecond, minuteAverage := p.tracker.rates(now)
	snap.CallsPerSecond = round1(perSecond)
	snap.CallsAvg60 = round1(minuteAverage)

	switch {
	case p.total > 0 && done >= p.total:
		snap.ETA = "0s"
	case done > 0:
		remaining := p.total - done
		snap.ETA = FormatDuration(time.Duration(float64(elapsed) / float64(done) * float64(remaining)))
	}
	return snap
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// rateTracker keeps completion timestamps for the trailing minute so the
// heartbeat can report short- and medium-window call rates.
type rateTracker struct {
	mu    sync.Mutex
	times []time.Time
}

func (t *rateTracker) record(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.times = append(t.times, now)
	t.pruneLocked(now)
}

func (t *rateTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.times = t.times[:0]
}

// rates returns calls completed in the trailing second and the per-second
// average over the trailing minute. When the oldest retained sample is
// younger than a minute the average divides by that shorter span instead,
// so early heartbeats do not underreport throughput.
func (t *rateTracker) rates(now time.Time) (lastSecond, minuteAverage float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked(now)

	secondCutoff := now.Add(-time.Second)
	recent := 0
	for i := len(t.times) - 1; i >= 0; i-- {
		if t.times[i].Before(secondCutoff) {
			break
		}
		recent++
	}

	window := time.Minute
	if len(t.times) > 0 {
		if span := now.Sub(t.times[0]); span < window {
			window = span
		}
	}
	if window < time.Second {
		window = time.Second
	}
	return float64(recent), float64(len(t.times)) / window.Seconds()
}

func (t *rateTracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-time.Minute)
	drop := 0
	for drop < len(t.times) && t.times[drop].Before(cutoff) {
		drop++
	}
	if drop > 0 {
		t.times = append(t.times[:0], t.times[drop:]...)
	}
}

// durationUnits are the suffixes ETA and elapsed strings are printed with.
// Years use the 365.25-day average.
var durationUnits = []struct {
	suffix  string
	seconds int64
}{
	{"y", 31_557_600},
	{"w", 604_800},
	{"d", 86_400},
	{"h", 3_600},
	{"m", 60},
}

// FormatDuration renders a duration the way the heartbeat reports it:
// largest units first, zero-quantity units omitted, "4h 2m 7s" style.
// Non-positive durations collapse to "0s".
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs <= 0 {
		return "0s"
	}
	parts := make([]string, 0, len(durationUnits)+1)
	for _, unit := range durationUnits {
		if n := secs / unit.seconds; n > 0 {
			parts = append(parts, strconv.FormatInt(n, 10)+unit.suffix)
			secs -= n * unit.seconds
		}
	}
	if secs > 0 {
		parts = append(parts, strconv.FormatInt(secs, 10)+"s")
	}
	return strings.Join(parts, " ")
}
