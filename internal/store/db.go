package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lazypower/grove/internal/tree"
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection to the grove SQLite database.
type DB struct {
	*sql.DB
	Path string
}

var _ tree.Backend = (*DB)(nil)

// DefaultDBPath returns the default database path: ~/.grove/grove.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".grove", "grove.db"), nil
}

var pragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
	"busy_timeout(5000)",
}

// Open opens (or creates) the SQLite database at the given path,
// configures pragmas on every pooled connection, and runs migrations.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	dsn := "file:" + path + "?"
	for i, p := range pragmas {
		if i > 0 {
			dsn += "&"
		}
		dsn += "_pragma=" + p
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db := &DB{DB: sqlDB, Path: path}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// OpenMemory opens an in-memory SQLite database for testing. The pool is
// pinned to one connection, since each connection would see its own database.
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB, Path: ":memory:"}
	for _, p := range pragmas {
		if _, err := db.Exec("PRAGMA " + pragmaStatement(p)); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// pragmaStatement turns the DSN form "name(value)" into "name=value".
func pragmaStatement(p string) string {
	name, value, ok := strings.Cut(p, "(")
	if !ok || !strings.HasSuffix(value, ")") {
		return p
	}
	return name + "=" + strings.TrimSuffix(value, ")")
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Atomically runs fn on a dedicated connection inside BEGIN IMMEDIATE, which
// takes SQLite's write lock up front so no other writer can interleave with
// the range updates. SQLite locks the whole file; treeID only labels errors.
func (db *DB) Atomically(ctx context.Context, treeID int64, fn func(context.Context, tree.Accessor) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection for tree %d: %w", treeID, err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("begin tree %d: %w", treeID, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// The caller's context may be what failed, so roll back without it.
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK"); err != nil {
			slog.Warn("rollback failed", "tree_id", treeID, "error", err)
		}
	}()

	if err := fn(ctx, &accessor{q: conn}); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit tree %d: %w", treeID, err)
	}
	committed = true
	return nil
}
