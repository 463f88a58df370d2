// Package database owns the request-scoped session machinery: the driver
// boundary to the concrete database, the per-request Session handle, and the
// indirection proxy business code depends on.
package database

import (
	"context"
	"database/sql"
)

// Resource kinds registered with the container registry.
const (
	KindPostgres = "postgres.pool"
	KindRedis    = "redis.client"
	KindSession  = "db.session"
)

// Querier is the query surface shared by the Session handle and the proxy.
// Storage code depends on this interface and never on a concrete session.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Tx is one live transaction owned by exactly one Session.
type Tx interface {
	Querier
	Commit() error
	Rollback() error
}

// PoolStats exposes connection accounting for tests and health reporting.
type PoolStats struct {
	InUse int
	Idle  int
}

// Driver is the boundary to the concrete database collaborator. It supplies
// begin/commit/rollback/close primitives; everything above it is driver-agnostic.
type Driver interface {
	Begin(ctx context.Context) (Tx, error)
	Stats() PoolStats
	Close() error
}
