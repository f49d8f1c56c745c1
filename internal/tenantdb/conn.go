// Package tenantdb owns the per-session connection to a tenant's Postgres
// database: schema introspection, pass-through query execution, and feedback
// persistence.
package tenantdb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	SSLMode        string
	ConnectTimeout time.Duration
}

// Conn wraps exactly one database connection. The pool is pinned to a single
// conn so the session truly owns it.
type Conn struct {
	db       *sql.DB
	database string
}

func Open(ctx context.Context, cfg Config) (*Conn, error) {
	if cfg.Database == "" {
		return nil, fmt.Errorf("database name is required")
	}
	db, err := sql.Open("pgx", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("open tenant db %s: %w", cfg.Database, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping tenant db %s: %w", cfg.Database, err)
	}

	return &Conn{db: db, database: cfg.Database}, nil
}

// NewConn wraps an existing handle; used by tests.
func NewConn(db *sql.DB, database string) *Conn {
	return &Conn{db: db, database: database}
}

func (c *Conn) Database() string {
	return c.database
}

func (c *Conn) HealthCheck(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping tenant db %s: %w", c.database, err)
	}
	return nil
}

func (c *Conn) Close() error {
	return c.db.Close()
}

func dsn(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port <= 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   host + ":" + strconv.Itoa(port),
		Path:   "/" + cfg.Database,
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	u.RawQuery = q.Encode()
	return u.String()
}
