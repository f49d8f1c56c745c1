// Package query orchestrates the text-to-SQL pipeline: schema introspection,
// cache lookup keyed by schema fingerprint, generation on miss, and
// pass-through execution on the session's exclusive connection.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aishitdharwal/text2sql/internal/cache"
	"github.com/aishitdharwal/text2sql/internal/observability"
	"github.com/aishitdharwal/text2sql/internal/schema"
	"github.com/aishitdharwal/text2sql/internal/session"
	"github.com/aishitdharwal/text2sql/internal/sqlgen"
	"github.com/aishitdharwal/text2sql/internal/tenantdb"
)

var (
	ErrEmptyQuestion = errors.New("query: question is empty")
	ErrUnknownTable  = errors.New("query: table not found")
	ErrInvalidRating = errors.New("query: rating must be \"up\" or \"down\"")
)

// GenerateResult is the outcome of a generation request.
type GenerateResult struct {
	SQL             string `json:"generated_sql"`
	Database        string `json:"database_name"`
	SchemaVersion   string `json:"schema_version"`
	CacheKey        string `json:"cache_key"`
	ServedFromCache bool   `json:"served_from_cache"`
	HitCount        int64  `json:"hit_count,omitempty"`
}

// Service wires session resolution, caching, and generation together.
type Service struct {
	registry  *session.Registry
	cache     *cache.Client
	generator sqlgen.Generator
	ttl       time.Duration
	logger    *slog.Logger

	// coalesces concurrent generations for the same cache key so a burst of
	// identical questions pays for one model call.
	inflight singleflight.Group
}

func NewService(registry *session.Registry, cacheClient *cache.Client, generator sqlgen.Generator, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		registry:  registry,
		cache:     cacheClient,
		generator: generator,
		ttl:       ttl,
		logger:    logger,
	}
}

// Generate answers a natural-language question with a SQL statement, serving
// from the cache when the schema fingerprint still matches.
func (s *Service) Generate(ctx context.Context, sessionID, question string) (GenerateResult, error) {
	if strings.TrimSpace(question) == "" {
		return GenerateResult{}, ErrEmptyQuestion
	}
	sess, err := s.registry.Resolve(sessionID)
	if err != nil {
		return GenerateResult{}, err
	}

	var snapshot schema.Snapshot
	err = sess.Do(ctx, func(conn *tenantdb.Conn) error {
		var snapErr error
		snapshot, snapErr = conn.Snapshot(ctx)
		return snapErr
	})
	if err != nil {
		return GenerateResult{}, fmt.Errorf("introspect %s: %w", sess.Database, err)
	}

	version := schema.Fingerprint(snapshot)
	key := cache.DeriveKey(question, sess.Database, version)
	result := GenerateResult{
		Database:      sess.Database,
		SchemaVersion: version,
		CacheKey:      key,
	}

	lookup := s.cache.Get(ctx, key)
	if lookup.State == cache.LookupHit {
		result.SQL = lookup.Entry.SQL
		result.ServedFromCache = true
		result.HitCount = lookup.Entry.HitCount
		return result, nil
	}

	generated, err, _ := s.inflight.Do(key, func() (any, error) {
		started := time.Now()
		sqlText, genErr := s.generator.GenerateSQL(ctx, sqlgen.Request{
			Question: question,
			Database: sess.Database,
			Schema:   snapshot,
		})
		observability.ObserveGeneration(time.Since(started), genErr)
		if genErr != nil {
			return "", genErr
		}
		now := time.Now().UTC()
		s.cache.Put(ctx, cache.Entry{
			Key:            key,
			Question:       cache.NormalizeQuestion(question),
			Database:       sess.Database,
			SchemaVersion:  version,
			SQL:            sqlText,
			CreatedAt:      now,
			LastAccessedAt: now,
			ExpiresAt:      now.Add(s.ttl),
		}, s.ttl)
		return sqlText, nil
	})
	if err != nil {
		return GenerateResult{}, fmt.Errorf("generate sql for %s: %w", sess.Database, err)
	}

	result.SQL = generated.(string)
	s.logger.Info("sql generated",
		"session_id", sessionID,
		"database", sess.Database,
		"schema_version", version,
		"cache_state", lookup.State.String(),
	)
	return result, nil
}

// Execute runs an arbitrary SQL statement on the session's connection.
func (s *Service) Execute(ctx context.Context, sessionID, sqlText string) (tenantdb.ExecResult, error) {
	sess, err := s.registry.Resolve(sessionID)
	if err != nil {
		return tenantdb.ExecResult{}, err
	}
	var result tenantdb.ExecResult
	err = sess.Do(ctx, func(conn *tenantdb.Conn) error {
		var execErr error
		result, execErr = conn.Execute(ctx, sqlText)
		return execErr
	})
	return result, err
}

// ListTables reports the tables visible to the session's database, with
// comments where present.
func (s *Service) ListTables(ctx context.Context, sessionID string) ([]tenantdb.TableInfo, error) {
	sess, err := s.registry.Resolve(sessionID)
	if err != nil {
		return nil, err
	}
	var tables []tenantdb.TableInfo
	err = sess.Do(ctx, func(conn *tenantdb.Conn) error {
		var listErr error
		tables, listErr = conn.ListTables(ctx)
		return listErr
	})
	return tables, err
}

// GetSchema returns the full snapshot, or a single table's slice of it when
// table is non-empty.
func (s *Service) GetSchema(ctx context.Context, sessionID, table string) (schema.Snapshot, error) {
	sess, err := s.registry.Resolve(sessionID)
	if err != nil {
		return nil, err
	}
	var snapshot schema.Snapshot
	err = sess.Do(ctx, func(conn *tenantdb.Conn) error {
		var snapErr error
		snapshot, snapErr = conn.Snapshot(ctx)
		return snapErr
	})
	if err != nil {
		return nil, err
	}
	if table == "" {
		return snapshot, nil
	}
	entry, ok := snapshot[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return schema.Snapshot{table: entry}, nil
}

// SubmitFeedback records a thumbs rating for a generated statement in the
// tenant's own database.
func (s *Service) SubmitFeedback(ctx context.Context, sessionID string, feedback tenantdb.Feedback) error {
	if feedback.Rating != "up" && feedback.Rating != "down" {
		return ErrInvalidRating
	}
	sess, err := s.registry.Resolve(sessionID)
	if err != nil {
		return err
	}
	return sess.Do(ctx, func(conn *tenantdb.Conn) error {
		return conn.InsertFeedback(ctx, feedback)
	})
}

// CacheStats reports cache aggregates scoped to the session's database.
func (s *Service) CacheStats(ctx context.Context, sessionID string) (cache.Stats, error) {
	sess, err := s.registry.Resolve(sessionID)
	if err != nil {
		return cache.Stats{}, err
	}
	return s.cache.Stats(ctx, sess.Database)
}
