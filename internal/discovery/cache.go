// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package discovery

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/liamnap/RatedStats-Achiev/internal/logging"
	"github.com/liamnap/RatedStats-Achiev/internal/metrics"
)

// Key prefix for discovery snapshots in BadgerDB.
const snapshotKeyPrefix = "discovery:"

// Snapshot is the cached result of leaderboard discovery for one region:
// everything that is expensive to recompute but stable within a day.
//
// Season rollovers and weekly static-data bumps are the only reasons these
// values change, so a TTL of hours is safe. A run that starts after the TTL
// expired re-discovers and re-caches.
type Snapshot struct {
	SeasonID        int       `json:"season_id"`
	Brackets        []string  `json:"brackets"`
	StaticNamespace string    `json:"static_namespace"`
	CachedAt        time.Time `json:"cached_at"`
}

// Cache is a BadgerDB-backed discovery cache. Entries carry a BadgerDB TTL,
// so expiry is enforced by the store itself rather than by readers.
type Cache struct {
	db *badger.DB
}

// Open opens (or creates) the discovery cache at dir.
func Open(dir string) (*Cache, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open discovery cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// NewFromDB wraps an already-open BadgerDB. The caller keeps ownership of
// the database lifecycle.
func NewFromDB(db *badger.DB) *Cache {
	return &Cache{db: db}
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached snapshot for a region. The second return reports
// whether a live entry existed; an expired or missing entry is a miss, not
// an error.
func (c *Cache) Get(region string) (*Snapshot, bool, error) {
	var snap Snapshot

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotKeyPrefix + region))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		metrics.CacheMisses.WithLabelValues("discovery").Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get discovery snapshot for %s: %w", region, err)
	}

	metrics.CacheHits.WithLabelValues("discovery").Inc()
	return &snap, true, nil
}

// Put stores a snapshot for a region with the given TTL.
func (c *Cache) Put(region string, snap *Snapshot, ttl time.Duration) error {
	if snap.CachedAt.IsZero() {
		snap.CachedAt = time.Now()
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal discovery snapshot: %w", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(snapshotKeyPrefix+region), data).WithTTL(ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("store discovery snapshot for %s: %w", region, err)
	}

	logging.Debug().
		Str("region", region).
		Int("season_id", snap.SeasonID).
		Int("brackets", len(snap.Brackets)).
		Dur("ttl", ttl).
		Msg("[DISCOVERY] Snapshot cached")
	return nil
}

// Invalidate drops the cached snapshot for a region. Used when a cached
// season turns out to be stale mid-run (e.g. the leaderboard index starts
// answering 404 for the cached season ID).
func (c *Cache) Invalidate(region string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(snapshotKeyPrefix + region))
	})
	if err != nil {
		return fmt.Errorf("invalidate discovery snapshot for %s: %w", region, err)
	}
	return nil
}
