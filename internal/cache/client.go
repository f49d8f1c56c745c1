package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/aishitdharwal/text2sql/internal/observability"
)

// Client wraps an optional Store and guarantees that a broken or absent cache
// never blocks the request path: store failures surface as LookupUnavailable
// on get and as a logged no-op on put.
type Client struct {
	store  Store
	logger *slog.Logger
}

// NewClient builds a cache client. A nil store means caching is disabled and
// every probe reports LookupDisabled.
func NewClient(store Store, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{store: store, logger: logger}
}

func (c *Client) Enabled() bool {
	return c.store != nil
}

func (c *Client) Get(ctx context.Context, key string) Lookup {
	lookup := c.probe(ctx, key)
	observability.ObserveCacheLookup(lookup.State.String())
	return lookup
}

func (c *Client) probe(ctx context.Context, key string) Lookup {
	if c.store == nil {
		return Lookup{State: LookupDisabled}
	}
	entry, found, err := c.store.Get(ctx, key)
	if err != nil {
		observability.IncrementCacheStoreError()
		c.logger.WarnContext(ctx, "cache lookup degraded to miss",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("cache_key", shortKey(key)),
			slog.Any("error", err),
		)
		return Lookup{State: LookupUnavailable}
	}
	if !found {
		return Lookup{State: LookupMiss}
	}
	return Lookup{State: LookupHit, Entry: entry}
}

// Put stores a freshly generated statement. Failures are logged and swallowed;
// the generated SQL has already been produced and must still reach the caller.
func (c *Client) Put(ctx context.Context, entry Entry, ttl time.Duration) {
	if c.store == nil {
		return
	}
	if err := c.store.Put(ctx, entry, ttl); err != nil {
		observability.IncrementCacheStoreError()
		c.logger.WarnContext(ctx, "cache store failed, entry dropped",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("cache_key", shortKey(entry.Key)),
			slog.String("database_name", entry.Database),
			slog.Any("error", err),
		)
		return
	}
	c.logger.InfoContext(ctx, "cache stored",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("cache_key", shortKey(entry.Key)),
		slog.String("database_name", entry.Database),
		slog.String("schema_version", entry.SchemaVersion),
	)
}

func (c *Client) Stats(ctx context.Context, database string) (Stats, error) {
	if c.store == nil {
		return Stats{Database: database}, nil
	}
	stats, err := c.store.Stats(ctx, database)
	if err != nil {
		observability.IncrementCacheStoreError()
		c.logger.WarnContext(ctx, "cache stats unavailable",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("database_name", database),
			slog.Any("error", err),
		)
		return Stats{Database: database}, err
	}
	return stats, nil
}

// HealthCheck probes the backing store. A disabled cache is always healthy.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.store.HealthCheck(ctx)
}

func shortKey(key string) string {
	if len(key) > 16 {
		return key[:16]
	}
	return key
}
