// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package discovery

import (
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// newTestCache creates an in-memory cache for testing.
func newTestCache(t *testing.T) *Cache {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("failed to open in-memory badger: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close badger: %v", err)
		}
	})

	return NewFromDB(db)
}

func TestPutAndGet(t *testing.T) {
	cache := newTestCache(t)

	snap := &Snapshot{
		SeasonID:        37,
		Brackets:        []string{"2v2", "3v3", "rbg"},
		StaticNamespace: "static-11.2.0_62213-eu",
	}
	if err := cache.Put("eu", snap, time.Hour); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok, err := cache.Get("eu")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want cached snapshot")
	}
	if got.SeasonID != 37 {
		t.Errorf("SeasonID = %d, want 37", got.SeasonID)
	}
	if len(got.Brackets) != 3 || got.Brackets[0] != "2v2" {
		t.Errorf("Brackets = %v", got.Brackets)
	}
	if got.StaticNamespace != "static-11.2.0_62213-eu" {
		t.Errorf("StaticNamespace = %q", got.StaticNamespace)
	}
	if got.CachedAt.IsZero() {
		t.Error("CachedAt not stamped by Put")
	}
}

func TestGetMissingRegion(t *testing.T) {
	cache := newTestCache(t)

	snap, ok, err := cache.Get("kr")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok || snap != nil {
		t.Errorf("Get() = (%v, %v), want miss without error", snap, ok)
	}
}

func TestRegionsAreIndependent(t *testing.T) {
	cache := newTestCache(t)

	if err := cache.Put("eu", &Snapshot{SeasonID: 37}, time.Hour); err != nil {
		t.Fatalf("Put(eu) error = %v", err)
	}
	if err := cache.Put("us", &Snapshot{SeasonID: 36}, time.Hour); err != nil {
		t.Fatalf("Put(us) error = %v", err)
	}

	eu, ok, _ := cache.Get("eu")
	if !ok || eu.SeasonID != 37 {
		t.Errorf("Get(eu) = (%+v, %v)", eu, ok)
	}
	us, ok, _ := cache.Get("us")
	if !ok || us.SeasonID != 36 {
		t.Errorf("Get(us) = (%+v, %v)", us, ok)
	}
}

func TestEntryExpires(t *testing.T) {
	cache := newTestCache(t)

	if err := cache.Put("eu", &Snapshot{SeasonID: 37}, 100*time.Millisecond); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// BadgerDB TTL resolution is one second; wait past the boundary.
	time.Sleep(1200 * time.Millisecond)

	_, ok, err := cache.Get("eu")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("expired entry still served")
	}
}

func TestInvalidate(t *testing.T) {
	cache := newTestCache(t)

	if err := cache.Put("eu", &Snapshot{SeasonID: 37}, time.Hour); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := cache.Invalidate("eu"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	_, ok, err := cache.Get("eu")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("invalidated entry still served")
	}
}

func TestInvalidateMissingRegionIsNoop(t *testing.T) {
	cache := newTestCache(t)

	if err := cache.Invalidate("tw"); err != nil {
		t.Errorf("Invalidate() on missing region: %v", err)
	}
}

func TestOverwriteReplacesSnapshot(t *testing.T) {
	cache := newTestCache(t)

	if err := cache.Put("eu", &Snapshot{SeasonID: 36, Brackets: []string{"2v2"}}, time.Hour); err != nil {
		t.Fatalf("first Put() error = %v", err)
	}
	if err := cache.Put("eu", &Snapshot{SeasonID: 37, Brackets: []string{"2v2", "3v3"}}, time.Hour); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}

	got, ok, _ := cache.Get("eu")
	if !ok {
		t.Fatal("snapshot missing after overwrite")
	}
	if got.SeasonID != 37 || len(got.Brackets) != 2 {
		t.Errorf("snapshot = %+v, want season 37 with 2 brackets", got)
	}
}
