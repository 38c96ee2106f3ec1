// Package postgres implements the PostgreSQL persistence layer for the
// gamification service. One row per student holds the whole aggregate, so
// every engine mutation is a single-row transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrPoolClosed is returned on use after Close.
	ErrPoolClosed = errors.New("postgres: connection pool is closed")

	// ErrMigrationFailed wraps any failure while applying migrations.
	ErrMigrationFailed = errors.New("postgres: migration failed")
)

// ─────────────────────────────────────────────────────────────────────────────
// Connection
// ─────────────────────────────────────────────────────────────────────────────

// Connection wraps a pgx pool. Repositories go through the Querier methods so
// the same code path serves both pooled calls and transactions.
type Connection struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

// NewConnectionFromURL opens a pool from a postgres:// URL and verifies it
// with a ping. URL query parameters win over the pool defaults applied here.
func NewConnectionFromURL(ctx context.Context, databaseURL string) (*Connection, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to parse database URL: %w", err)
	}

	if poolCfg.MaxConns == 0 {
		poolCfg.MaxConns = 10
	}
	if poolCfg.MinConns == 0 {
		poolCfg.MinConns = 2
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}

	return &Connection{pool: pool}, nil
}

// Ping verifies the pool can reach the database.
func (c *Connection) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrPoolClosed
	}
	return c.pool.Ping(ctx)
}

// Close releases the pool. Safe to call more than once.
func (c *Connection) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.pool.Close()
	}
}

// Pool exposes the underlying pool for code that needs pgx directly.
func (c *Connection) Pool() *pgxpool.Pool {
	return c.pool
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries and transactions
// ─────────────────────────────────────────────────────────────────────────────

// Querier is the query surface shared by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (c *Connection) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if c.closed.Load() {
		return pgconn.CommandTag{}, ErrPoolClosed
	}
	return c.pool.Exec(ctx, sql, args...)
}

func (c *Connection) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if c.closed.Load() {
		return nil, ErrPoolClosed
	}
	return c.pool.Query(ctx, sql, args...)
}

func (c *Connection) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return c.pool.QueryRow(ctx, sql, args...)
}

// WithTx runs fn inside a read-committed transaction, committing on nil and
// rolling back otherwise. A panic in fn rolls back and re-panics.
func (c *Connection) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	if c.closed.Load() {
		return ErrPoolClosed
	}

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("postgres: failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: failed to commit transaction: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Migrations
// ─────────────────────────────────────────────────────────────────────────────

// Migration is one versioned schema change.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// Migrator applies the embedded migrations in version order, recording each
// in schema_migrations. Both binaries migrate on boot; the version check
// makes a second boot a no-op.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a Migrator over the embedded migration set.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations()}
}

// Migrate applies every pending migration, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	const ensure = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`
	if _, err := m.conn.Exec(ctx, ensure); err != nil {
		return fmt.Errorf("%w: creating schema_migrations: %v", ErrMigrationFailed, err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if applied[mig.Version] {
			continue
		}
		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for version %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
				mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d (%s): %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
	}

	return nil
}

// Rollback reverts the newest applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}

	last := 0
	for v := range applied {
		if v > last {
			last = v
		}
	}
	if last == 0 {
		return nil
	}

	var target *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			target = &m.migrations[i]
			break
		}
	}
	if target == nil || target.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for version %d", ErrMigrationFailed, last)
	}

	return m.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, target.DownSQL); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, last)
		return err
	})
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.conn.Query(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("%w: reading schema_migrations: %v", ErrMigrationFailed, err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%w: scanning schema_migrations: %v", ErrMigrationFailed, err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Error helpers
// ─────────────────────────────────────────────────────────────────────────────

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
