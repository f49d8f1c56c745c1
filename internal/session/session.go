// Package session manages authenticated tenant sessions, each owning an
// exclusive database connection for its lifetime.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aishitdharwal/text2sql/internal/observability"
	"github.com/aishitdharwal/text2sql/internal/tenant"
	"github.com/aishitdharwal/text2sql/internal/tenantdb"
)

var (
	// ErrInvalidCredentials covers both unknown tenants and wrong secrets
	// so callers cannot distinguish the two.
	ErrInvalidCredentials = errors.New("session: invalid tenant credentials")

	ErrNotAuthenticated = errors.New("session: not authenticated")
)

// ConnOpener opens a tenant database connection. Overridable in tests.
type ConnOpener func(ctx context.Context, database string) (*tenantdb.Conn, error)

// Session is one authenticated tenant binding with its exclusive connection.
// Conn use is serialized through Do.
type Session struct {
	ID        string
	Tenant    string
	Database  string
	CreatedAt time.Time

	mu     sync.Mutex
	conn   *tenantdb.Conn
	closed bool
}

// Do runs fn with the session's connection, holding the per-session lock so
// concurrent requests on one session never share the connection mid-flight.
// A caller that resolved the session just before a concurrent logout finds it
// closed here and gets ErrNotAuthenticated, never a closed connection.
func (s *Session) Do(ctx context.Context, fn func(conn *tenantdb.Conn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotAuthenticated
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s.conn)
}

// Registry tracks live sessions keyed by session ID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	directory tenant.Directory
	open      ConnOpener
	logger    *slog.Logger
}

func NewRegistry(directory tenant.Directory, open ConnOpener, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		sessions:  make(map[string]*Session),
		directory: directory,
		open:      open,
		logger:    logger,
	}
}

// Authenticate validates tenant credentials and, on success, opens an
// exclusive connection to the tenant's database and registers a new session.
func (r *Registry) Authenticate(ctx context.Context, name, secret string) (*Session, error) {
	creds, ok := r.directory.Lookup(name)
	if !ok {
		r.logger.Warn("authentication failed", "reason", "unknown tenant", "tenant", name)
		return nil, ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(creds.Secret), []byte(secret)) != 1 {
		r.logger.Warn("authentication failed", "reason", "secret mismatch", "tenant", name)
		return nil, ErrInvalidCredentials
	}

	conn, err := r.open(ctx, creds.Database)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:        uuid.NewString(),
		Tenant:    name,
		Database:  creds.Database,
		CreatedAt: time.Now().UTC(),
		conn:      conn,
	}

	r.mu.Lock()
	r.sessions[sess.ID] = sess
	count := len(r.sessions)
	r.mu.Unlock()
	observability.SetActiveSessions(count)

	r.logger.Info("session opened", "session_id", sess.ID, "tenant", name, "database", creds.Database)
	return sess, nil
}

// Resolve returns the live session for an ID.
func (r *Registry) Resolve(id string) (*Session, error) {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotAuthenticated
	}
	return sess, nil
}

// End closes a session's connection and removes it. Ending an unknown or
// already-ended session is a no-op and reports false.
func (r *Registry) End(id string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	count := len(r.sessions)
	r.mu.Unlock()
	if !ok {
		return false
	}
	observability.SetActiveSessions(count)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.closed = true
	if err := sess.conn.Close(); err != nil {
		r.logger.Warn("session connection close failed", "session_id", id, "error", err)
	}
	r.logger.Info("session closed", "session_id", id, "tenant", sess.Tenant)
	return true
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown drains every live session, closing their connections. Close
// failures are logged, not returned, so shutdown always completes.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	drained := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	observability.SetActiveSessions(0)

	for id, sess := range drained {
		sess.mu.Lock()
		sess.closed = true
		if err := sess.conn.Close(); err != nil {
			r.logger.Warn("session connection close failed during shutdown", "session_id", id, "error", err)
		}
		sess.mu.Unlock()
	}
	if len(drained) > 0 {
		r.logger.Info("session registry drained", "sessions", len(drained))
	}
}
