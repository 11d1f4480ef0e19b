package postgres

import (
	"context"
	"fmt"
)

// Migrate creates the prefixed tables and view if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	t := db.tables
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id        BIGINT PRIMARY KEY,
				tree_id   BIGINT NOT NULL,
				parent_id BIGINT NOT NULL DEFAULT 0,
				lft       BIGINT NOT NULL,
				rgt       BIGINT NOT NULL,
				depth     INTEGER NOT NULL,
				CHECK (lft < rgt)
			)`, t.Nodes),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_lft_idx ON %[1]s (tree_id, lft)`, t.Nodes),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_rgt_idx ON %[1]s (tree_id, rgt)`, t.Nodes),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_parent_idx ON %[1]s (tree_id, parent_id)`, t.Nodes),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				obj_id     BIGINT PRIMARY KEY,
				type       TEXT NOT NULL,
				title      TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL
			)`, t.Objects),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				ref_id BIGINT PRIMARY KEY,
				obj_id BIGINT NOT NULL REFERENCES %s (obj_id) ON DELETE CASCADE
			)`, t.ObjectRefs, t.Objects),
		fmt.Sprintf(`
			CREATE OR REPLACE VIEW %s AS
			SELECT r.ref_id AS id, o.obj_id, o.type, o.title, o.created_at
			FROM %s r
			JOIN %s o ON o.obj_id = r.obj_id`, t.Attributes, t.ObjectRefs, t.Objects),
	}

	for _, stmt := range statements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
