package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bryan-buckman/todod/internal/errs"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL backend behind a pool.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Default pool bounds per dialect, used when Config leaves them at zero.
const (
	DefaultMaxOpenConnsSQLite   = 4
	DefaultMaxOpenConnsPostgres = 25
	DefaultMaxIdleConnsPostgres = 5
)

const pingTimeout = 10 * time.Second

const memoryDSN = "file::memory:?cache=shared"

// Config captures pool settings derived from application config.
type Config struct {
	// URL is a postgres:// connection string or an SQLite file path,
	// optionally prefixed with sqlite:// or file:.
	URL string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// AcquireTimeout bounds how long Acquire waits for a free connection.
	AcquireTimeout time.Duration

	// BusyTimeout configures sqlite busy timeout via PRAGMA busy_timeout.
	BusyTimeout time.Duration
}

// Pool wraps a bounded *sqlx.DB.
type Pool struct {
	db             *sqlx.DB
	dialect        Dialect
	acquireTimeout time.Duration
	log            zerolog.Logger

	// pin keeps a shared-cache in-memory database alive; SQLite drops it
	// when its last connection closes.
	pin *sql.Conn
}

// Ensure Pool implements Store interface.
var _ Store = (*Pool)(nil)

// ParseURL splits a DATABASE_URL into its dialect and driver DSN.
func ParseURL(raw string, busyTimeout time.Duration) (Dialect, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", errors.New("empty database url")
	}
	if strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://") {
		return DialectPostgres, raw, nil
	}
	path := strings.TrimPrefix(raw, "sqlite://")
	path = strings.TrimPrefix(path, "file:")
	if path == "" {
		return "", "", fmt.Errorf("database url %q has no file path", raw)
	}
	return DialectSQLite, buildSQLiteDSN(path, busyTimeout), nil
}

func buildSQLiteDSN(path string, busyTimeout time.Duration) string {
	if path == ":memory:" {
		return fmt.Sprintf("%s&_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)",
			memoryDSN, busyTimeout.Milliseconds())
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("file:%s%s_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)",
		path, sep, busyTimeout.Milliseconds())
}

// Open creates the pool named by cfg.URL, pings it, and applies migrations.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (*Pool, error) {
	dialect, dsn, err := ParseURL(cfg.URL, cfg.BusyTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	var db *sqlx.DB
	switch dialect {
	case DialectPostgres:
		db, err = openPostgres(dsn, &cfg)
	default:
		db, err = openSQLite(dsn, &cfg)
	}
	if err != nil {
		return nil, err
	}
	memory := strings.HasPrefix(dsn, memoryDSN)
	if memory {
		// The pinned connection takes one slot and must never be recycled.
		cfg.MaxOpenConns++
		cfg.ConnMaxLifetime = 0
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	var pin *sql.Conn
	if memory {
		if pin, err = db.Conn(pctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("pin in-memory database: %w", err)
		}
	}

	acquireTimeout := cfg.AcquireTimeout
	if acquireTimeout <= 0 {
		acquireTimeout = 5 * time.Second
	}
	p := &Pool{
		db:             db,
		dialect:        dialect,
		acquireTimeout: acquireTimeout,
		log:            log.With().Str("component", "database").Str("dialect", string(dialect)).Logger(),
		pin:            pin,
	}
	if err := p.Migrate(ctx); err != nil {
		p.closeAll()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	p.log.Info().
		Int("max_open_conns", cfg.MaxOpenConns).
		Dur("acquire_timeout", acquireTimeout).
		Bool("in_memory", memory).
		Msg("connected to the database")
	return p, nil
}

func openSQLite(dsn string, cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = DefaultMaxOpenConnsSQLite
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = cfg.MaxOpenConns
	}
	return db, nil
}

// Acquire checks out a connection, waiting at most the acquire timeout.
func (p *Pool) Acquire(ctx context.Context) (*sqlx.Conn, error) {
	const op = "database: acquire"
	actx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()
	conn, err := p.db.Connx(actx)
	if err == nil {
		return conn, nil
	}
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, errs.E(op, errs.KindPool, fmt.Errorf("%w after %s", ErrPoolExhausted, p.acquireTimeout))
	}
	return nil, errs.E(op, errs.KindPool, fmt.Errorf("%w: %w", ErrConnectFailed, err))
}

// Dialect returns the pool's SQL dialect.
func (p *Pool) Dialect() Dialect {
	return p.dialect
}

// DatabaseType returns the database backend name.
func (p *Pool) DatabaseType() string {
	if p.dialect == DialectPostgres {
		return "PostgreSQL"
	}
	return "SQLite"
}

// SupportsHighConcurrency returns true for PostgreSQL.
func (p *Pool) SupportsHighConcurrency() bool {
	return p.dialect == DialectPostgres
}

// Ping verifies a connection can be reached.
func (p *Pool) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Stats reports database/sql pool statistics.
func (p *Pool) Stats() sql.DBStats {
	return p.db.Stats()
}

// Capacity is the number of connections Acquire can hand out at once.
func (p *Pool) Capacity() int {
	n := p.db.Stats().MaxOpenConnections
	if p.pin != nil {
		n--
	}
	return n
}

// DB exposes the underlying handle for collectors.
func (p *Pool) DB() *sql.DB {
	return p.db.DB
}

// Close closes every pooled connection.
func (p *Pool) Close() error {
	p.log.Info().Msg("closing database connection pool")
	return p.closeAll()
}

func (p *Pool) closeAll() error {
	var pinErr error
	if p.pin != nil {
		pinErr = p.pin.Close()
		p.pin = nil
	}
	return errors.Join(pinErr, p.db.Close())
}
