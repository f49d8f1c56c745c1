package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aishitdharwal/text2sql/internal/cache"
)

// These tests exercise a real Redis instance and skip when none is reachable.
func newTestStore(t *testing.T) (*Store, *goredis.Client) {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{
		Addr: "127.0.0.1:6379",
		DB:   9,
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush test db: %v", err)
	}
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})

	store, err := New(Config{Client: client, KeyPrefix: "test:"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return store, client
}

func testEntry(key, database, sql string) cache.Entry {
	return cache.Entry{
		Key:           key,
		Question:      "list all customers",
		Database:      database,
		SchemaVersion: "abcd1234abcd1234",
		SQL:           sql,
	}
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New() expected error without client")
	}
}

func TestPutThenGetIncrementsHitCount(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, testEntry("k1", "sales_db", "SELECT * FROM customers"), time.Hour); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	entry, found, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("Get() miss for freshly stored key")
	}
	if entry.SQL != "SELECT * FROM customers" {
		t.Fatalf("SQL = %q", entry.SQL)
	}
	if entry.HitCount != 1 {
		t.Fatalf("HitCount = %d, want 1 after first get", entry.HitCount)
	}

	entry, _, err = store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry.HitCount != 2 {
		t.Fatalf("HitCount = %d, want 2 after second get", entry.HitCount)
	}
}

func TestGetMissOnUnknownKey(t *testing.T) {
	store, _ := newTestStore(t)
	if _, found, err := store.Get(context.Background(), "never-stored"); err != nil || found {
		t.Fatalf("Get() = found=%v err=%v, want clean miss", found, err)
	}
}

func TestPutOverwritesAndResetsHitCount(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, testEntry("k1", "sales_db", "SELECT 1"), time.Hour); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, _, err := store.Get(ctx, "k1"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if err := store.Put(ctx, testEntry("k1", "sales_db", "SELECT 2"), time.Hour); err != nil {
		t.Fatalf("Put() overwrite error = %v", err)
	}

	entry, _, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry.SQL != "SELECT 2" {
		t.Fatalf("SQL = %q after overwrite", entry.SQL)
	}
	if entry.HitCount != 1 {
		t.Fatalf("HitCount = %d, want reset to 0 then incremented once", entry.HitCount)
	}
}

func TestExpiredEntryReadsAsMiss(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, testEntry("k1", "sales_db", "SELECT 1"), time.Second); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	time.Sleep(1500 * time.Millisecond)

	if _, found, err := store.Get(ctx, "k1"); err != nil || found {
		t.Fatalf("Get() = found=%v err=%v, want miss after expiry", found, err)
	}
}

func TestGetDropsHashMissingPayload(t *testing.T) {
	store, client := newTestStore(t)
	ctx := context.Background()

	// Shape left behind when an unguarded counter write recreated the hash
	// after its TTL fired: counters only, no SQL, no TTL.
	entryKey := store.entryKey("k1")
	if err := client.HSet(ctx, entryKey, fieldHitCount, 2, fieldLastAccessedAt, time.Now().Unix()).Err(); err != nil {
		t.Fatalf("seed damaged hash: %v", err)
	}

	if _, found, err := store.Get(ctx, "k1"); err != nil || found {
		t.Fatalf("Get() = found=%v err=%v, want miss on damaged hash", found, err)
	}
	exists, err := client.Exists(ctx, entryKey).Result()
	if err != nil {
		t.Fatalf("exists check: %v", err)
	}
	if exists != 0 {
		t.Fatal("damaged hash must be deleted, not left to serve future gets")
	}
}

func TestGetKeepsTTLArmed(t *testing.T) {
	store, client := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, testEntry("k1", "sales_db", "SELECT 1"), time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, _, err := store.Get(ctx, "k1"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	ttl, err := client.TTL(ctx, store.entryKey("k1")).Result()
	if err != nil {
		t.Fatalf("ttl check: %v", err)
	}
	if ttl <= 0 {
		t.Fatalf("TTL = %v after get, want the put-armed expiry intact", ttl)
	}
}

func TestStatsAggregatesPerDatabase(t *testing.T) {
	store, client := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, testEntry("k1", "sales_db", "SELECT 1"), time.Hour); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(ctx, testEntry("k2", "sales_db", "SELECT 2"), time.Hour); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(ctx, testEntry("k3", "marketing_db", "SELECT 3"), time.Hour); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, _, err := store.Get(ctx, "k1"); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}

	stats, err := store.Stats(ctx, "sales_db")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalCachedQueries != 2 {
		t.Fatalf("TotalCachedQueries = %d", stats.TotalCachedQueries)
	}
	if stats.TotalCacheHits != 3 {
		t.Fatalf("TotalCacheHits = %d", stats.TotalCacheHits)
	}
	if stats.AverageHitsPerQuery != 1.5 {
		t.Fatalf("AverageHitsPerQuery = %v", stats.AverageHitsPerQuery)
	}

	// Simulate native TTL reclaim and verify the dangling index member is pruned.
	if err := client.Del(ctx, store.entryKey("k2")).Err(); err != nil {
		t.Fatalf("del entry: %v", err)
	}
	stats, err = store.Stats(ctx, "sales_db")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalCachedQueries != 1 {
		t.Fatalf("TotalCachedQueries = %d after reclaim", stats.TotalCachedQueries)
	}
}

func TestStatsOnEmptyDatabase(t *testing.T) {
	store, _ := newTestStore(t)
	stats, err := store.Stats(context.Background(), "operations_db")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalCachedQueries != 0 || stats.TotalCacheHits != 0 || stats.AverageHitsPerQuery != 0 {
		t.Fatalf("stats = %+v, want zeros", stats)
	}
}
