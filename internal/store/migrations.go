package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "tree_nodes: nested-set forest",
		SQL: `
CREATE TABLE tree_nodes (
    id         INTEGER PRIMARY KEY,
    tree_id    INTEGER NOT NULL,
    parent_id  INTEGER NOT NULL DEFAULT 0,
    lft        INTEGER NOT NULL,
    rgt        INTEGER NOT NULL,
    depth      INTEGER NOT NULL,

    CHECK (lft < rgt)
);

CREATE INDEX idx_tree_nodes_lft    ON tree_nodes(tree_id, lft);
CREATE INDEX idx_tree_nodes_rgt    ON tree_nodes(tree_id, rgt);
CREATE INDEX idx_tree_nodes_parent ON tree_nodes(tree_id, parent_id);
`,
	},
	{
		Version:     2,
		Description: "objects: typed objects and their tree references",
		SQL: `
CREATE TABLE objects (
    obj_id     INTEGER PRIMARY KEY,
    type       TEXT NOT NULL,
    title      TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL -- unix seconds, UTC
);

CREATE INDEX idx_objects_type ON objects(type);

CREATE TABLE object_refs (
    ref_id  INTEGER PRIMARY KEY,
    obj_id  INTEGER NOT NULL,

    FOREIGN KEY (obj_id) REFERENCES objects(obj_id) ON DELETE CASCADE
);

CREATE INDEX idx_object_refs_obj ON object_refs(obj_id);
`,
	},
	{
		Version:     3,
		Description: "node_attributes: attributes joined by tree node id",
		SQL: `
CREATE VIEW node_attributes AS
SELECT r.ref_id AS id, o.obj_id, o.type, o.title, o.created_at
FROM object_refs r
JOIN objects o ON o.obj_id = r.obj_id;
`,
	},
}

// migrate brings the schema up to the last entry of migrations. Each step
// runs in its own transaction together with its schema_versions row.
func (db *DB) migrate() error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		)
	`); err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	current, err := db.SchemaVersion()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := db.apply(m); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) apply(m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
		m.Version, m.Description,
	); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	return tx.Commit()
}

// SchemaVersion returns the highest applied migration, or 0 on a fresh
// database.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
