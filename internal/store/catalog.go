package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lazypower/grove/internal/tree"
)

// ChildYears returns the distinct UTC creation years of typed children.
func (db *DB) ChildYears(ctx context.Context, treeID, parentID int64, typeTag string) ([]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT CAST(strftime('%Y', a.created_at, 'unixepoch') AS INTEGER) AS year
		FROM tree_nodes t
		JOIN node_attributes a ON a.id = t.id
		WHERE t.tree_id = ? AND t.parent_id = ? AND a.type = ?
		ORDER BY year
	`, treeID, parentID, typeTag)
	if err != nil {
		return nil, fmt.Errorf("child years: %w", err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("scan year: %w", err)
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

// FindChildByTitle returns the first typed child, in tree order, whose title
// matches exactly.
func (db *DB) FindChildByTitle(ctx context.Context, treeID, parentID int64, typeTag, title string) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx, `
		SELECT t.id
		FROM tree_nodes t
		JOIN node_attributes a ON a.id = t.id
		WHERE t.tree_id = ? AND t.parent_id = ? AND a.type = ? AND a.title = ?
		ORDER BY t.lft
		LIMIT 1
	`, treeID, parentID, typeTag, title).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, tree.TitleNotFound(treeID, parentID, title)
	}
	if err != nil {
		return 0, fmt.Errorf("find child %q: %w", title, err)
	}
	return id, nil
}

// ChildrenInYear returns the typed children created during year.
func (db *DB) ChildrenInYear(ctx context.Context, treeID, parentID int64, typeTag string, year int) ([]tree.Child, error) {
	start, end := tree.YearBounds(year)
	rows, err := db.QueryContext(ctx, `
		SELECT t.id, a.title, a.type, a.created_at
		FROM tree_nodes t
		JOIN node_attributes a ON a.id = t.id
		WHERE t.tree_id = ? AND t.parent_id = ? AND a.type = ?
			AND a.created_at >= ? AND a.created_at < ?
		ORDER BY t.lft
	`, treeID, parentID, typeTag, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("children in year %d: %w", year, err)
	}
	defer rows.Close()
	return scanChildren(rows)
}

// EmptyChildren returns typed children whose subtree holds nothing but
// excludedType nodes. Descendants without attributes count as content.
func (db *DB) EmptyChildren(ctx context.Context, treeID, parentID int64, typeTag, excludedType string) ([]tree.Child, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT t.id, a.title, a.type, a.created_at
		FROM tree_nodes t
		JOIN node_attributes a ON a.id = t.id
		WHERE t.tree_id = ? AND t.parent_id = ? AND a.type = ?
			AND NOT EXISTS (
				SELECT 1
				FROM tree_nodes d
				LEFT JOIN node_attributes da ON da.id = d.id
				WHERE d.tree_id = t.tree_id
					AND d.lft > t.lft AND d.rgt < t.rgt
					AND COALESCE(da.type, '') <> ?
			)
		ORDER BY t.lft
	`, treeID, parentID, typeTag, excludedType)
	if err != nil {
		return nil, fmt.Errorf("empty children: %w", err)
	}
	defer rows.Close()
	return scanChildren(rows)
}

func scanChildren(rows *sql.Rows) ([]tree.Child, error) {
	var children []tree.Child
	for rows.Next() {
		var c tree.Child
		var created int64
		if err := rows.Scan(&c.ID, &c.Title, &c.Type, &created); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		c.CreatedAt = time.Unix(created, 0).UTC()
		children = append(children, c)
	}
	return children, rows.Err()
}
