package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	entries map[string]Entry
	getErr  error
	putErr  error
	puts    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: map[string]Entry{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (Entry, bool, error) {
	if f.getErr != nil {
		return Entry{}, false, f.getErr
	}
	entry, ok := f.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	entry.HitCount++
	entry.LastAccessedAt = time.Now()
	f.entries[key] = entry
	return entry, true, nil
}

func (f *fakeStore) Put(_ context.Context, entry Entry, _ time.Duration) error {
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	entry.HitCount = 0
	f.entries[entry.Key] = entry
	return nil
}

func (f *fakeStore) Stats(_ context.Context, database string) (Stats, error) {
	if f.getErr != nil {
		return Stats{}, f.getErr
	}
	stats := Stats{Database: database}
	for _, entry := range f.entries {
		if entry.Database != database {
			continue
		}
		stats.TotalCachedQueries++
		stats.TotalCacheHits += entry.HitCount
	}
	if stats.TotalCachedQueries > 0 {
		stats.AverageHitsPerQuery = float64(stats.TotalCacheHits) / float64(stats.TotalCachedQueries)
	}
	return stats, nil
}

func (f *fakeStore) HealthCheck(context.Context) error { return nil }
func (f *fakeStore) Close() error                      { return nil }

func TestClientDisabledWhenStoreIsNil(t *testing.T) {
	client := NewClient(nil, nil)
	if client.Enabled() {
		t.Fatal("Enabled() = true without a store")
	}
	if got := client.Get(context.Background(), "k"); got.State != LookupDisabled {
		t.Fatalf("Get state = %v, want disabled", got.State)
	}
	// Must not panic.
	client.Put(context.Background(), Entry{Key: "k"}, time.Hour)
	stats, err := client.Stats(context.Background(), "sales_db")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalCachedQueries != 0 || stats.AverageHitsPerQuery != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestClientHitAndMiss(t *testing.T) {
	store := newFakeStore()
	client := NewClient(store, nil)

	if got := client.Get(context.Background(), "missing"); got.State != LookupMiss {
		t.Fatalf("state = %v, want miss", got.State)
	}

	client.Put(context.Background(), Entry{Key: "k1", Database: "sales_db", SQL: "SELECT 1"}, time.Hour)
	got := client.Get(context.Background(), "k1")
	if got.State != LookupHit {
		t.Fatalf("state = %v, want hit", got.State)
	}
	if got.Entry.SQL != "SELECT 1" {
		t.Fatalf("SQL = %q", got.Entry.SQL)
	}
	if got.Entry.HitCount != 1 {
		t.Fatalf("HitCount = %d, want 1 after first get", got.Entry.HitCount)
	}
	if second := client.Get(context.Background(), "k1"); second.Entry.HitCount != 2 {
		t.Fatalf("HitCount = %d, want 2 after second get", second.Entry.HitCount)
	}
}

func TestClientDegradesStoreFailures(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	store.putErr = errors.New("connection refused")
	client := NewClient(store, nil)

	if got := client.Get(context.Background(), "k"); got.State != LookupUnavailable {
		t.Fatalf("state = %v, want unavailable", got.State)
	}
	// Put swallows the failure; the request path still proceeds.
	client.Put(context.Background(), Entry{Key: "k", Database: "sales_db"}, time.Hour)
	if store.puts != 1 {
		t.Fatalf("puts = %d", store.puts)
	}
	if _, err := client.Stats(context.Background(), "sales_db"); err == nil {
		t.Fatal("Stats() should surface the store error to its caller")
	}
}
