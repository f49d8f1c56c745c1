// Package cache defines the schema-fingerprinted query cache: key derivation,
// the entry model, the durable store contract, and a client that degrades
// store failures to cache-miss behavior.
package cache

import (
	"context"
	"time"
)

type Entry struct {
	Key            string    `json:"cache_key"`
	Question       string    `json:"natural_language_query"`
	Database       string    `json:"database_name"`
	SchemaVersion  string    `json:"schema_version"`
	SQL            string    `json:"generated_sql"`
	HitCount       int64     `json:"hit_count"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type Stats struct {
	Database            string  `json:"database_name"`
	TotalCachedQueries  int64   `json:"total_cached_queries"`
	TotalCacheHits      int64   `json:"total_cache_hits"`
	AverageHitsPerQuery float64 `json:"average_hits_per_query"`
}

// Store is the durable key-value collaborator. Get returns the entry with the
// hit count already incremented; expired entries are never returned.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, entry Entry, ttl time.Duration) error
	Stats(ctx context.Context, database string) (Stats, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

type LookupState int

const (
	LookupMiss LookupState = iota
	LookupHit
	LookupDisabled
	LookupUnavailable
)

func (s LookupState) String() string {
	switch s {
	case LookupHit:
		return "hit"
	case LookupMiss:
		return "miss"
	case LookupDisabled:
		return "disabled"
	case LookupUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Lookup is the tagged outcome of a cache probe. Entry is only meaningful for
// LookupHit.
type Lookup struct {
	State LookupState
	Entry Entry
}
