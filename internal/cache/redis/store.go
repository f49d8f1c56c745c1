// Package redis implements the cache.Store contract on Redis. Entries live in
// hashes so the hit counter can be incremented atomically, expiry rides on the
// native key TTL, and a per-database set of keys stands in for a secondary
// index.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aishitdharwal/text2sql/internal/cache"
)

type Config struct {
	Client *redis.Client
	// KeyPrefix namespaces every key. Default: "text2sql:".
	KeyPrefix string
}

type Store struct {
	client    *redis.Client
	keyPrefix string
}

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "text2sql:"
	}
	return &Store{client: cfg.Client, keyPrefix: prefix}, nil
}

const (
	fieldQuestion       = "natural_language_query"
	fieldDatabase       = "database_name"
	fieldSchemaVersion  = "schema_version"
	fieldSQL            = "generated_sql"
	fieldHitCount       = "hit_count"
	fieldCreatedAt      = "created_at"
	fieldLastAccessedAt = "last_accessed_at"
	fieldExpiresAt      = "expires_at"
)

func (s *Store) entryKey(key string) string {
	return s.keyPrefix + "q:" + key
}

func (s *Store) indexKey(database string) string {
	return s.keyPrefix + "db:" + database
}

// getScript reads and increments in one atomic step. The existence check,
// counter bump, and read happen inside a single script invocation, so a key
// expiry can never interleave and let the counter write recreate the hash
// without its TTL.
var getScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return false
end
redis.call("HINCRBY", KEYS[1], ARGV[1], 1)
redis.call("HSET", KEYS[1], ARGV[2], ARGV[3])
return redis.call("HGETALL", KEYS[1])`)

// Get returns the entry with its hit count already incremented and its
// last-accessed time refreshed. An entry past its TTL reads as a miss.
func (s *Store) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	entryKey := s.entryKey(key)
	now := time.Now()

	raw, err := getScript.Run(ctx, s.client, []string{entryKey},
		fieldHitCount, fieldLastAccessedAt, now.Unix()).Result()
	if err == redis.Nil {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, fmt.Errorf("cache get %s: %w", entryKey, err)
	}

	fields, err := hashFields(raw)
	if err != nil {
		return cache.Entry{}, false, fmt.Errorf("cache get %s: %w", entryKey, err)
	}
	if fields[fieldSQL] == "" {
		// A hash without its payload is damaged, for example left behind by a
		// counter write that raced key expiry before reads were atomic. It
		// must never serve as a hit; drop it.
		_ = s.client.Del(ctx, entryKey).Err()
		return cache.Entry{}, false, nil
	}

	entry := decodeEntry(key, fields)
	entry.LastAccessedAt = now
	return entry, true, nil
}

// hashFields converts the script's flat HGETALL reply into a field map.
func hashFields(raw any) (map[string]string, error) {
	items, ok := raw.([]any)
	if !ok || len(items)%2 != 0 {
		return nil, fmt.Errorf("unexpected script reply of type %T", raw)
	}
	fields := make(map[string]string, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		name, nameOK := items[i].(string)
		value, valueOK := items[i+1].(string)
		if !nameOK || !valueOK {
			return nil, fmt.Errorf("unexpected script reply element at %d", i)
		}
		fields[name] = value
	}
	return fields, nil
}

// Put creates or overwrites the entry with a zero hit count and fresh
// timestamps, arms the native TTL, and registers the key in the database
// index set.
func (s *Store) Put(ctx context.Context, entry cache.Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("cache put %s: ttl must be positive", entry.Key)
	}
	entryKey := s.entryKey(entry.Key)
	now := time.Now()
	expiresAt := now.Add(ttl)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, entryKey)
	pipe.HSet(ctx, entryKey, map[string]any{
		fieldQuestion:       entry.Question,
		fieldDatabase:       entry.Database,
		fieldSchemaVersion:  entry.SchemaVersion,
		fieldSQL:            entry.SQL,
		fieldHitCount:       0,
		fieldCreatedAt:      now.Unix(),
		fieldLastAccessedAt: now.Unix(),
		fieldExpiresAt:      expiresAt.Unix(),
	})
	pipe.Expire(ctx, entryKey, ttl)
	pipe.SAdd(ctx, s.indexKey(entry.Database), entry.Key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache put %s: %w", entryKey, err)
	}
	return nil
}

// Stats aggregates live entries for one database via the index set. Index
// members whose entries have expired are pruned as they are discovered, so
// expired entries drop out of the totals once Redis has reclaimed them.
func (s *Store) Stats(ctx context.Context, database string) (cache.Stats, error) {
	indexKey := s.indexKey(database)
	members, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return cache.Stats{}, fmt.Errorf("cache stats %s: %w", indexKey, err)
	}

	stats := cache.Stats{Database: database}
	var dangling []any
	for _, member := range members {
		raw, err := s.client.HGet(ctx, s.entryKey(member), fieldHitCount).Result()
		if err == redis.Nil {
			dangling = append(dangling, member)
			continue
		}
		if err != nil {
			return cache.Stats{}, fmt.Errorf("cache stats %s: %w", indexKey, err)
		}
		hits, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return cache.Stats{}, fmt.Errorf("cache stats %s: malformed hit_count %q", indexKey, raw)
		}
		stats.TotalCachedQueries++
		stats.TotalCacheHits += hits
	}
	if len(dangling) > 0 {
		_ = s.client.SRem(ctx, indexKey, dangling...).Err()
	}
	if stats.TotalCachedQueries > 0 {
		stats.AverageHitsPerQuery = float64(stats.TotalCacheHits) / float64(stats.TotalCachedQueries)
	}
	return stats, nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping cache store: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func decodeEntry(key string, fields map[string]string) cache.Entry {
	entry := cache.Entry{
		Key:           key,
		Question:      fields[fieldQuestion],
		Database:      fields[fieldDatabase],
		SchemaVersion: fields[fieldSchemaVersion],
		SQL:           fields[fieldSQL],
	}
	if v, err := strconv.ParseInt(fields[fieldHitCount], 10, 64); err == nil {
		entry.HitCount = v
	}
	if v, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64); err == nil {
		entry.CreatedAt = time.Unix(v, 0)
	}
	if v, err := strconv.ParseInt(fields[fieldLastAccessedAt], 10, 64); err == nil {
		entry.LastAccessedAt = time.Unix(v, 0)
	}
	if v, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64); err == nil {
		entry.ExpiresAt = time.Unix(v, 0)
	}
	return entry
}
