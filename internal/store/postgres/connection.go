package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lazypower/grove/internal/tree"
)

// dbtx is satisfied by *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TableNames holds prefixed table names, so several environments can share
// one database.
type TableNames struct {
	Nodes      string
	Objects    string
	ObjectRefs string
	Attributes string
}

// NewTableNames creates table names with the given prefix.
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Nodes:      fmt.Sprintf("%stree_nodes", prefix),
		Objects:    fmt.Sprintf("%sobjects", prefix),
		ObjectRefs: fmt.Sprintf("%sobject_refs", prefix),
		Attributes: fmt.Sprintf("%snode_attributes", prefix),
	}
}

// CreateConnectionPool parses databaseURL, opens a pool and pings it.
//
// Port 6543 is taken to be a transaction-mode PgBouncer, which cannot hold
// prepared statements; statement descriptions are cached instead unless the
// URL already picked a default_query_exec_mode.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// DB is a nested-set backend on PostgreSQL.
type DB struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

var _ tree.Backend = (*DB)(nil)

// Open connects to databaseURL and migrates the prefixed schema.
func Open(ctx context.Context, databaseURL, prefix string, logger *slog.Logger) (*DB, error) {
	pool, err := CreateConnectionPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	db := New(pool, NewTableNames(prefix), logger)
	if err := db.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// New wraps an existing pool. The schema is not touched.
func New(pool *pgxpool.Pool, tables *TableNames, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.Default()
	}
	return &DB{pool: pool, tables: tables, logger: logger}
}

// Tables returns the table names in use.
func (db *DB) Tables() *TableNames { return db.tables }

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close releases the pool.
func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

// Atomically runs fn inside a transaction that first takes a
// transaction-scoped advisory lock keyed by treeID. Moves in different trees
// proceed in parallel; moves in the same tree queue on the lock.
func (db *DB) Atomically(ctx context.Context, treeID int64, fn func(context.Context, tree.Accessor) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tree %d: %w", treeID, err)
	}

	// Rollback after a commit is a no-op returning ErrTxClosed.
	defer func() {
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			db.logger.Warn("rollback failed", "tree_id", treeID, "error", err)
		}
	}()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", treeID); err != nil {
		return fmt.Errorf("lock tree %d: %w", treeID, err)
	}

	if err := fn(ctx, &accessor{q: tx, tables: db.tables}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tree %d: %w", treeID, err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
