package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lazypower/grove/internal/tree"
)

// querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// accessor runs nested-set reads and range updates on a querier.
type accessor struct {
	q querier
}

var _ tree.Accessor = (*accessor)(nil)

// Locate returns a node of treeID by id.
func (db *DB) Locate(ctx context.Context, treeID, id int64) (tree.Node, error) {
	return (&accessor{q: db.DB}).Locate(ctx, treeID, id)
}

// Nodes returns all nodes of treeID ordered by lft.
func (db *DB) Nodes(ctx context.Context, treeID int64) ([]tree.Node, error) {
	return (&accessor{q: db.DB}).Nodes(ctx, treeID)
}

func (a *accessor) Locate(ctx context.Context, treeID, id int64) (tree.Node, error) {
	var n tree.Node
	err := a.q.QueryRowContext(ctx, `
		SELECT id, tree_id, parent_id, lft, rgt, depth
		FROM tree_nodes WHERE id = ? AND tree_id = ?
	`, id, treeID).Scan(&n.ID, &n.TreeID, &n.ParentID, &n.Lft, &n.Rgt, &n.Depth)
	if errors.Is(err, sql.ErrNoRows) {
		return tree.Node{}, tree.NotFound(treeID, id)
	}
	if err != nil {
		return tree.Node{}, fmt.Errorf("locate node %d: %w", id, err)
	}
	return n, nil
}

func (a *accessor) Nodes(ctx context.Context, treeID int64) ([]tree.Node, error) {
	rows, err := a.q.QueryContext(ctx, `
		SELECT id, tree_id, parent_id, lft, rgt, depth
		FROM tree_nodes WHERE tree_id = ?
		ORDER BY lft
	`, treeID)
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

// Spread shifts lft and rgt independently in one statement.
func (a *accessor) Spread(ctx context.Context, treeID int64, s tree.Spread) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE tree_nodes SET
			lft = CASE WHEN lft %[1]s ? THEN lft + ? ELSE lft END,
			rgt = CASE WHEN rgt %[2]s ? THEN rgt + ? ELSE rgt END
		WHERE tree_id = ? AND (lft %[1]s ? OR rgt %[2]s ?)
	`, s.Lft.Op(), s.Rgt.Op())

	result, err := a.q.ExecContext(ctx, query,
		s.Lft.Pivot, s.Delta,
		s.Rgt.Pivot, s.Delta,
		treeID, s.Lft.Pivot, s.Rgt.Pivot)
	if err != nil {
		return 0, fmt.Errorf("spread tree %d: %w", treeID, err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// Translate shifts a contiguous range and re-parents its root in one statement.
func (a *accessor) Translate(ctx context.Context, treeID int64, t tree.Translate) (int64, error) {
	result, err := a.q.ExecContext(ctx, `
		UPDATE tree_nodes SET
			parent_id = CASE WHEN id = ? AND parent_id = ? THEN ? ELSE parent_id END,
			lft = lft + ?,
			rgt = rgt + ?,
			depth = depth + ?
		WHERE tree_id = ? AND lft >= ? AND rgt <= ?
	`, t.Root, t.OldParent, t.NewParent,
		t.Delta, t.Delta, t.DepthDelta,
		treeID, t.From, t.To)
	if err != nil {
		return 0, fmt.Errorf("translate tree %d: %w", treeID, err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
