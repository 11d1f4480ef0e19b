package postgres

import (
	"context"
	"fmt"

	"github.com/lazypower/grove/internal/tree"
)

type accessor struct {
	q      dbtx
	tables *TableNames
}

var _ tree.Accessor = (*accessor)(nil)

// Locate returns a node of treeID by id.
func (db *DB) Locate(ctx context.Context, treeID, id int64) (tree.Node, error) {
	return (&accessor{q: db.pool, tables: db.tables}).Locate(ctx, treeID, id)
}

// Nodes returns all nodes of treeID ordered by lft.
func (db *DB) Nodes(ctx context.Context, treeID int64) ([]tree.Node, error) {
	return (&accessor{q: db.pool, tables: db.tables}).Nodes(ctx, treeID)
}

func (a *accessor) Locate(ctx context.Context, treeID, id int64) (tree.Node, error) {
	query := fmt.Sprintf(`
		SELECT id, tree_id, parent_id, lft, rgt, depth
		FROM %s
		WHERE id = $1 AND tree_id = $2
	`, a.tables.Nodes)

	var n tree.Node
	err := a.q.QueryRow(ctx, query, id, treeID).Scan(&n.ID, &n.TreeID, &n.ParentID, &n.Lft, &n.Rgt, &n.Depth)
	if isNoRows(err) {
		return tree.Node{}, tree.NotFound(treeID, id)
	}
	if err != nil {
		return tree.Node{}, fmt.Errorf("locate node %d: %w", id, err)
	}
	return n, nil
}

func (a *accessor) Nodes(ctx context.Context, treeID int64) ([]tree.Node, error) {
	query := fmt.Sprintf(`
		SELECT id, tree_id, parent_id, lft, rgt, depth
		FROM %s
		WHERE tree_id = $1
		ORDER BY lft
	`, a.tables.Nodes)

	rows, err := a.q.Query(ctx, query, treeID)
	if err != nil {
		return nil, fmt.Errorf("list tree %d: %w", treeID, err)
	}
	defer rows.Close()

	var nodes []tree.Node
	for rows.Next() {
		var n tree.Node
		if err := rows.Scan(&n.ID, &n.TreeID, &n.ParentID, &n.Lft, &n.Rgt, &n.Depth); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (a *accessor) Spread(ctx context.Context, treeID int64, s tree.Spread) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %[1]s SET
			lft = CASE WHEN lft %[2]s $1 THEN lft + $3 ELSE lft END,
			rgt = CASE WHEN rgt %[3]s $2 THEN rgt + $3 ELSE rgt END
		WHERE tree_id = $4 AND (lft %[2]s $1 OR rgt %[3]s $2)
	`, a.tables.Nodes, s.Lft.Op(), s.Rgt.Op())

	tag, err := a.q.Exec(ctx, query, s.Lft.Pivot, s.Rgt.Pivot, s.Delta, treeID)
	if err != nil {
		return 0, fmt.Errorf("spread tree %d: %w", treeID, err)
	}
	return tag.RowsAffected(), nil
}

func (a *accessor) Translate(ctx context.Context, treeID int64, t tree.Translate) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET
			parent_id = CASE WHEN id = $1 AND parent_id = $2 THEN $3 ELSE parent_id END,
			lft = lft + $4,
			rgt = rgt + $4,
			depth = depth + $5
		WHERE tree_id = $6 AND lft >= $7 AND rgt <= $8
	`, a.tables.Nodes)

	tag, err := a.q.Exec(ctx, query,
		t.Root, t.OldParent, t.NewParent,
		t.Delta, t.DepthDelta,
		treeID, t.From, t.To)
	if err != nil {
		return 0, fmt.Errorf("translate tree %d: %w", treeID, err)
	}
	return tag.RowsAffected(), nil
}
