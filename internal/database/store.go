// Package database provides the bounded connection pool for the todo service.
package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrPoolExhausted means no connection was released within the acquire timeout.
	ErrPoolExhausted = errors.New("connection pool exhausted")
	// ErrConnectFailed means the pool could not open or hand out a connection.
	ErrConnectFailed = errors.New("connect failed")
)

// Store defines the pool operations the rest of the service relies on.
// Both SQLite and PostgreSQL pools satisfy this interface.
type Store interface {
	// Acquire checks out a connection for exclusive use. The caller must Close it.
	// Failures are *errs.Error values of kind errs.KindPool.
	Acquire(ctx context.Context) (*sqlx.Conn, error)

	// Dialect reports which SQL flavour statements must be written in.
	Dialect() Dialect

	// DatabaseType returns the name of the database backend ("SQLite" or "PostgreSQL").
	DatabaseType() string

	// SupportsHighConcurrency returns true if the database can handle
	// many concurrent write operations (e.g., PostgreSQL).
	// SQLite returns false due to write locking limitations.
	SupportsHighConcurrency() bool

	Ping(ctx context.Context) error
	Stats() sql.DBStats
	Close() error
}
