package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lazypower/grove/internal/tree"
)

// Object is a typed object referenced from the tree. RefID is the tree node
// id; ObjID defaults to RefID when zero.
type Object struct {
	RefID     int64
	ObjID     int64
	Type      string
	Title     string
	CreatedAt time.Time
}

// InsertObjects stores objects and their references in one transaction.
// Objects shared by several references are inserted once.
func (db *DB) InsertObjects(ctx context.Context, objs ...Object) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert objects: %w", err)
	}
	defer tx.Rollback()

	for _, o := range objs {
		objID := o.ObjID
		if objID == 0 {
			objID = o.RefID
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO objects (obj_id, type, title, created_at)
			VALUES (?, ?, ?, ?)
		`, objID, o.Type, o.Title, o.CreatedAt.Unix()); err != nil {
			return fmt.Errorf("insert object %d: %w", objID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO object_refs (ref_id, obj_id) VALUES (?, ?)",
			o.RefID, objID); err != nil {
			return fmt.Errorf("insert ref %d: %w", o.RefID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit objects: %w", err)
	}
	return nil
}

// InsertNodes stores nodes with their boundaries as given. Callers are
// responsible for a valid encoding; see tree.Number.
func (db *DB) InsertNodes(ctx context.Context, nodes ...tree.Node) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert nodes: %w", err)
	}
	defer tx.Rollback()

	for _, n := range nodes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tree_nodes (id, tree_id, parent_id, lft, rgt, depth)
			VALUES (?, ?, ?, ?, ?, ?)
		`, n.ID, n.TreeID, n.ParentID, n.Lft, n.Rgt, n.Depth); err != nil {
			return fmt.Errorf("insert node %d: %w", n.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit nodes: %w", err)
	}
	return nil
}
