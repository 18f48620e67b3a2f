// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

/*
Sweep Loop

Drives one identity window through the per-identity state machine:

	Pending → Fetching → Stored | Empty | Retryable | Dropped

A sweep schedules the window in sub-batches, fans each sub-batch out to a
bounded worker pool, and commits matched results in one store transaction
per sub-batch. Identities the upstream throttled land in a retry bucket,
deduplicated by key; after the sweep the loop sleeps max(retry interval,
latest Retry-After hint) and runs the bucket again. There is no retry cap.
A persistently throttled identity stays in the bucket until it succeeds or
the run is cancelled; the loop itself never gives up on it.

Related Files

  - internal/pipeline/progress.go - counters the heartbeat reads
  - internal/blizzard/errors.go - error taxonomy classify consumes
*/
package pipeline //nolint:staticcheck // File documentation, not package doc.

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/liamnap/RatedStats-Achiev/internal/blizzard"
	"github.com/liamnap/RatedStats-Achiev/internal/config"
	"github.com/liamnap/RatedStats-Achiev/internal/logging"
	"github.com/liamnap/RatedStats-Achiev/internal/metrics"
	"github.com/liamnap/RatedStats-Achiev/internal/models"
	"github.com/liamnap/RatedStats-Achiev/internal/store"
)

// outcome is the terminal state of one identity within a single sweep.
type outcome int

const (
	outcomeStored outcome = iota
	outcomeEmpty
	outcomeRetryable
	outcomeDropped
	outcomeAborted // run cancelled mid-fetch; not an identity outcome
)

func (o outcome) String() string {
	switch o {
	case outcomeStored:
		return "stored"
	case outcomeEmpty:
		return "empty"
	case outcomeRetryable:
		return "retryable"
	case outcomeDropped:
		return "dropped"
	default:
		return "aborted"
	}
}

// profileFetcher is the slice of the API client the sweep loop needs: one
// profile call per identity plus the pacing hint for sweep delays.
type profileFetcher interface {
	CharacterAchievements(ctx context.Context, realm, name string) (*blizzard.AchievementsSummary, error)
	RetryAfterHint() time.Duration
}

// fetchResult carries one identity's fetch attempt back to the sweep loop.
// Results travel as values instead of raised errors so retry classification
// happens in exactly one place.
type fetchResult struct {
	ident   models.Identity
	records map[int]models.AchievementRecord
	err     error
}

// classify maps one fetch attempt onto the state machine.
func classify(res fetchResult) outcome {
	switch {
	case res.err == nil && len(res.records) > 0:
		return outcomeStored
	case res.err == nil:
		return outcomeEmpty
	case errors.Is(res.err, blizzard.ErrRateLimited):
		return outcomeRetryable
	case errors.Is(res.err, context.Canceled), errors.Is(res.err, context.DeadlineExceeded):
		return outcomeAborted
	default:
		return outcomeDropped
	}
}

// sweeper owns the fetch loop for one batch run. Constructed per window,
// never reused.
type sweeper struct {
	sync        config.SyncConfig
	client      profileFetcher
	store       *store.Store
	pvpIndex    map[int]string
	progress    *Progress
	concurrency int
}

// run drives sweeps over the window until every identity reaches a terminal
// outcome or the context is cancelled.
func (s *sweeper) run(ctx context.Context, idents []models.Identity) error {
	s.progress.Begin(len(idents))

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go s.heartbeatLoop(hbCtx)

	remaining := idents
	for len(remaining) > 0 {
		bucket, err := s.sweepOnce(ctx, remaining)
		if err != nil {
			return err
		}
		s.progress.EndSweep(len(bucket))
		metrics.RecordSweep(len(bucket))
		if len(bucket) == 0 {
			break
		}

		remaining = sortIdentities(bucket)
		delay := s.sync.RetryInterval
		if hint := s.client.RetryAfterHint(); hint > delay {
			delay = hint
		}
		logging.Ctx(ctx).Info().
			Int("bucket", len(remaining)).
			Dur("delay", delay).
			Msg("[SWEEP] Throttled identities requeued")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil
}

// sweepOnce processes the working set in sub-batches and returns the retry
// bucket for the next sweep. Each sub-batch commits as one transaction, so a
// crash loses at most the sub-batch in flight.
func (s *sweeper) sweepOnce(ctx context.Context, idents []models.Identity) (map[string]models.Identity, error) {
	bucket := make(map[string]models.Identity)

	size := s.sync.SubBatchSize
	if size <= 0 {
		size = len(idents)
	}
	for from := 0; from < len(idents); from += size {
		to := from + size
		if to > len(idents) {
			to = len(idents)
		}
		results := s.fetchSubBatch(ctx, idents[from:to])

		batch := make(map[string]*models.CharacterSnapshot)
		for _, res := range results {
			o := classify(res)
			switch o {
			case outcomeStored:
				batch[res.ident.Key()] = &models.CharacterSnapshot{
					GUID:         res.ident.GUID,
					Achievements: res.records,
				}
			case outcomeRetryable:
				// Deduplicated by key; a later failure replaces an
				// earlier one.
				bucket[res.ident.Key()] = res.ident
			case outcomeDropped:
				logging.Ctx(ctx).Debug().
					Str("key", res.ident.Key()).
					Err(res.err).
					Msg("[SWEEP] Identity dropped for this pass")
			case outcomeEmpty, outcomeAborted:
			}
			if o != outcomeAborted {
				s.progress.Observe(o)
				metrics.RecordOutcome(o.String())
			}
		}

		if len(batch) > 0 {
			if err := s.store.UpsertBatch(ctx, batch); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return bucket, nil
}

// fetchSubBatch fans one sub-batch out to bounded workers. The semaphore
// holds in-flight fetches at the limiter capacity, so a worker that owns a
// slot is either waiting on a token or on the network.
func (s *sweeper) fetchSubBatch(ctx context.Context, idents []models.Identity) []fetchResult {
	results := make([]fetchResult, len(idents))

	workers := s.concurrency
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, ident := range idents {
		select {
		case <-ctx.Done():
			for j := i; j < len(idents); j++ {
				results[j] = fetchResult{ident: idents[j], err: ctx.Err()}
			}
			wg.Wait()
			return results
		case sem <- struct{}{}:
			wg.Add(1)
			go func(i int, ident models.Identity) {
				defer func() {
					<-sem
					wg.Done()
				}()
				records, err := s.fetchOne(ctx, ident)
				results[i] = fetchResult{ident: ident, records: records, err: err}
				s.progress.RecordCall(time.Now())
			}(i, ident)
		}
	}

	wg.Wait()
	return results
}

// fetchOne fetches one character's achievement summary and filters it to the
// keyword-matched index.
func (s *sweeper) fetchOne(ctx context.Context, ident models.Identity) (map[int]models.AchievementRecord, error) {
	summary, err := s.client.CharacterAchievements(ctx, ident.Realm, ident.Name)
	if err != nil {
		return nil, err
	}
	return blizzard.PvPRecords(summary, s.pvpIndex), nil
}

// heartbeatLoop logs progress while the sweep loop works through the window.
func (s *sweeper) heartbeatLoop(ctx context.Context) {
	interval := s.sync.HeartbeatInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := s.progress.Snapshot()
			metrics.CallRate.Set(snap.CallsAvg60)
			logging.Ctx(ctx).Info().
				Int("done", snap.Done).
				Int("total", snap.Total).
				Float64("pct", snap.PercentDone).
				Float64("sec_rate", snap.CallsPerSecond).
				Float64("avg60", snap.CallsAvg60).
				Str("eta", snap.ETA).
				Msg("[HEARTBEAT] Window progress")
		}
	}
}

// sortIdentities flattens a retry bucket into a deterministic work list.
func sortIdentities(bucket map[string]models.Identity) []models.Identity {
	keys := make([]string, 0, len(bucket))
	for key := range bucket {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	idents := make([]models.Identity, 0, len(keys))
	for _, key := range keys {
		idents = append(idents, bucket[key])
	}
	return idents
}
