// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package pipeline

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "0s"},
		{"negative", -5 * time.Second, "0s"},
		{"sub-second", 900 * time.Millisecond, "0s"},
		{"seconds only", 59 * time.Second, "59s"},
		{"exact minute omits seconds", time.Minute, "1m"},
		{"minute and second", 61 * time.Second, "1m 1s"},
		{"exact hour", time.Hour, "1h"},
		{"day hour minute second", 90061 * time.Second, "1d 1h 1m 1s"},
		{"exact week", 7 * 24 * time.Hour, "1w"},
		{"exact year", 31557600 * time.Second, "1y"},
		{"all units", 33041106 * time.Second, "1y 2w 3d 4h 5m 6s"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatDuration(tc.d); got != tc.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tc.d, got, tc.want)
			}
		})
	}
}

func TestProgressSnapshotCounts(t *testing.T) {
	t.Parallel()

	p := NewProgress()
	p.Begin(100)
	for i := 0; i < 30; i++ {
		p.Observe(outcomeStored)
	}
	for i := 0; i < 10; i++ {
		p.Observe(outcomeEmpty)
	}
	for i := 0; i < 10; i++ {
		p.Observe(outcomeDropped)
	}
	for i := 0; i < 5; i++ {
		p.Observe(outcomeRetryable)
	}
	p.EndSweep(5)

	snap := p.Snapshot()
	if snap.Total != 100 {
		t.Errorf("Total = %d, want 100", snap.Total)
	}
	if snap.Done != 50 {
		t.Errorf("Done = %d, want 50 (stored+empty+dropped)", snap.Done)
	}
	if snap.Stored != 30 || snap.Empty != 10 || snap.Dropped != 10 {
		t.Errorf("outcome counts = (%d, %d, %d), want (30, 10, 10)", snap.Stored, snap.Empty, snap.Dropped)
	}
	if snap.Retried != 5 {
		t.Errorf("Retried = %d, want 5", snap.Retried)
	}
	if snap.Sweeps != 1 || snap.RetryBucket != 5 {
		t.Errorf("sweep state = (%d, %d), want (1, 5)", snap.Sweeps, snap.RetryBucket)
	}
	if snap.PercentDone != 50.0 {
		t.Errorf("PercentDone = %v, want 50.0", snap.PercentDone)
	}
}

func TestProgressETA(t *testing.T) {
	t.Parallel()

	p := NewProgress()
	p.Begin(100)

	// Nothing completed yet: no throughput sample to extrapolate from.
	if snap := p.Snapshot(); snap.ETA != etaUnknown {
		t.Errorf("ETA before first completion = %q, want %q", snap.ETA, etaUnknown)
	}

	// Half done after ~100 seconds extrapolates to ~100 seconds remaining.
	for i := 0; i < 50; i++ {
		p.Observe(outcomeStored)
	}
	snap := p.snapshotAt(time.Now().Add(100 * time.Second))
	if snap.ETA != "1m 40s" {
		t.Errorf("ETA at half done = %q, want \"1m 40s\"", snap.ETA)
	}

	for i := 0; i < 50; i++ {
		p.Observe(outcomeEmpty)
	}
	if snap := p.Snapshot(); snap.ETA != "0s" {
		t.Errorf("ETA when complete = %q, want \"0s\"", snap.ETA)
	}
}

func TestProgressAbortedIsNotCounted(t *testing.T) {
	t.Parallel()

	p := NewProgress()
	p.Begin(10)
	p.Observe(outcomeAborted)

	snap := p.Snapshot()
	if snap.Done != 0 || snap.Retried != 0 {
		t.Errorf("aborted observation changed counters: %+v", snap)
	}
}

func TestProgressBeginResets(t *testing.T) {
	t.Parallel()

	p := NewProgress()
	p.Begin(10)
	p.Observe(outcomeStored)
	p.EndSweep(3)
	p.RecordCall(time.Now())

	p.Begin(20)
	snap := p.Snapshot()
	if snap.Total != 20 || snap.Done != 0 || snap.Sweeps != 0 || snap.RetryBucket != 0 {
		t.Errorf("Begin did not reset: %+v", snap)
	}
	if snap.CallsAvg60 != 0 {
		t.Errorf("CallsAvg60 = %v after reset, want 0", snap.CallsAvg60)
	}
}

func TestRateTrackerWindows(t *testing.T) {
	t.Parallel()

	var rt rateTracker
	base := time.Now()

	rt.record(base.Add(-70 * time.Second)) // outside both windows
	rt.record(base.Add(-30 * time.Second)) // minute window only
	rt.record(base.Add(-500 * time.Millisecond))
	rt.record(base)

	// The oldest retained sample is 30s old, so the average divides by
	// that span rather than a full minute.
	lastSecond, minuteAverage := rt.rates(base)
	if lastSecond != 2 {
		t.Errorf("lastSecond = %v, want 2", lastSecond)
	}
	if want := 3.0 / 30; minuteAverage != want {
		t.Errorf("minuteAverage = %v, want %v", minuteAverage, want)
	}
}

func TestRateTrackerFullMinuteWindow(t *testing.T) {
	t.Parallel()

	var rt rateTracker
	base := time.Now()
	for i := 5; i >= 0; i-- {
		rt.record(base.Add(time.Duration(-i*10) * time.Second))
	}

	// Oldest sample sits 50s back; ten seconds later the minute window is
	// saturated and the divisor stays at 60.
	_, minuteAverage := rt.rates(base.Add(10 * time.Second))
	if want := 6.0 / 60; minuteAverage != want {
		t.Errorf("minuteAverage = %v, want %v", minuteAverage, want)
	}
}

func TestRateTrackerYoungRunAverage(t *testing.T) {
	t.Parallel()

	var rt rateTracker
	base := time.Now()

	// Ten calls over the first five seconds of a run: a 2/s pace, which a
	// fixed minute divisor would report as 0.17/s.
	for i := 0; i < 10; i++ {
		rt.record(base.Add(time.Duration(i) * 500 * time.Millisecond))
	}

	_, minuteAverage := rt.rates(base.Add(5 * time.Second))
	if want := 10.0 / 5; minuteAverage != want {
		t.Errorf("minuteAverage = %v, want %v", minuteAverage, want)
	}

	// Sub-second spans clamp to one second so a burst right at startup
	// does not divide by a near-zero window.
	var burst rateTracker
	for i := 0; i < 4; i++ {
		burst.record(base.Add(time.Duration(i) * 100 * time.Millisecond))
	}
	_, minuteAverage = burst.rates(base.Add(300 * time.Millisecond))
	if want := 4.0; minuteAverage != want {
		t.Errorf("burst minuteAverage = %v, want %v", minuteAverage, want)
	}
}

func TestRateTrackerPrunes(t *testing.T) {
	t.Parallel()

	var rt rateTracker
	base := time.Now()
	for i := 0; i < 100; i++ {
		rt.record(base.Add(time.Duration(-i) * time.Second))
	}

	rt.rates(base.Add(2 * time.Minute))
	rt.mu.Lock()
	kept := len(rt.times)
	rt.mu.Unlock()
	if kept != 0 {
		t.Errorf("tracker kept %d stale samples, want 0", kept)
	}
}
