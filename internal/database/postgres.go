package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/rootedapp/portal/internal/config"
)

// SQLDriver implements Driver over a sqlx connection pool. The pool itself is
// the process-wide singleton; each Begin hands out one pooled connection
// wrapped in a transaction.
type SQLDriver struct {
	db *sqlx.DB
}

var _ Driver = (*SQLDriver)(nil)

// NewPostgresDriver connects to PostgreSQL and configures the pool.
func NewPostgresDriver(cfg config.DatabaseConfig) (*SQLDriver, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &SQLDriver{db: db}, nil
}

// NewSQLDriver wraps an existing handle; used by tests and the CLI.
func NewSQLDriver(db *sqlx.DB) *SQLDriver {
	return &SQLDriver{db: db}
}

// DB exposes the raw pool for migrations.
func (d *SQLDriver) DB() *sqlx.DB { return d.db }

// Begin starts a transaction on a pooled connection.
func (d *SQLDriver) Begin(ctx context.Context) (Tx, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}

// Stats reports pool usage.
func (d *SQLDriver) Stats() PoolStats {
	s := d.db.Stats()
	return PoolStats{InUse: s.InUse, Idle: s.Idle}
}

// Close shuts the pool down.
func (d *SQLDriver) Close() error {
	return d.db.Close()
}
