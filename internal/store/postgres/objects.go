package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lazypower/grove/internal/store"
	"github.com/lazypower/grove/internal/tree"
)

// InsertObjects stores objects and their references in one transaction.
func (db *DB) InsertObjects(ctx context.Context, objs ...store.Object) error {
	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		objects := fmt.Sprintf(`
			INSERT INTO %s (obj_id, type, title, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (obj_id) DO NOTHING
		`, db.tables.Objects)
		refs := fmt.Sprintf(`INSERT INTO %s (ref_id, obj_id) VALUES ($1, $2)`, db.tables.ObjectRefs)

		for _, o := range objs {
			objID := o.ObjID
			if objID == 0 {
				objID = o.RefID
			}
			if _, err := tx.Exec(ctx, objects, objID, o.Type, o.Title, o.CreatedAt.UTC()); err != nil {
				return fmt.Errorf("insert object %d: %w", objID, err)
			}
			if _, err := tx.Exec(ctx, refs, o.RefID, objID); err != nil {
				return fmt.Errorf("insert ref %d: %w", o.RefID, err)
			}
		}
		return nil
	})
}

// InsertNodes bulk-loads nodes with their boundaries as given.
func (db *DB) InsertNodes(ctx context.Context, nodes ...tree.Node) error {
	rows := make([][]any, len(nodes))
	for i, n := range nodes {
		rows[i] = []any{n.ID, n.TreeID, n.ParentID, n.Lft, n.Rgt, n.Depth}
	}
	_, err := db.pool.CopyFrom(ctx,
		pgx.Identifier{db.tables.Nodes},
		[]string{"id", "tree_id", "parent_id", "lft", "rgt", "depth"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("insert nodes: %w", err)
	}
	return nil
}
