package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lazypower/grove/internal/tree"
)

func (db *DB) ChildYears(ctx context.Context, treeID, parentID int64, typeTag string) ([]int, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT EXTRACT(YEAR FROM a.created_at AT TIME ZONE 'UTC')::int AS year
		FROM %s t
		JOIN %s a ON a.id = t.id
		WHERE t.tree_id = $1 AND t.parent_id = $2 AND a.type = $3
		ORDER BY year
	`, db.tables.Nodes, db.tables.Attributes)

	rows, err := db.pool.Query(ctx, query, treeID, parentID, typeTag)
	if err != nil {
		return nil, fmt.Errorf("child years: %w", err)
	}
	years, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("scan years: %w", err)
	}
	return years, nil
}

func (db *DB) FindChildByTitle(ctx context.Context, treeID, parentID int64, typeTag, title string) (int64, error) {
	query := fmt.Sprintf(`
		SELECT t.id
		FROM %s t
		JOIN %s a ON a.id = t.id
		WHERE t.tree_id = $1 AND t.parent_id = $2 AND a.type = $3 AND a.title = $4
		ORDER BY t.lft
		LIMIT 1
	`, db.tables.Nodes, db.tables.Attributes)

	var id int64
	err := db.pool.QueryRow(ctx, query, treeID, parentID, typeTag, title).Scan(&id)
	if isNoRows(err) {
		return 0, tree.TitleNotFound(treeID, parentID, title)
	}
	if err != nil {
		return 0, fmt.Errorf("find child %q: %w", title, err)
	}
	return id, nil
}

func (db *DB) ChildrenInYear(ctx context.Context, treeID, parentID int64, typeTag string, year int) ([]tree.Child, error) {
	start, end := tree.YearBounds(year)
	query := fmt.Sprintf(`
		SELECT t.id, a.title, a.type, a.created_at
		FROM %s t
		JOIN %s a ON a.id = t.id
		WHERE t.tree_id = $1 AND t.parent_id = $2 AND a.type = $3
			AND a.created_at >= $4 AND a.created_at < $5
		ORDER BY t.lft
	`, db.tables.Nodes, db.tables.Attributes)

	return db.queryChildren(ctx, query, treeID, parentID, typeTag, start, end)
}

// EmptyChildren matches the SQLite backend: descendants without attributes
// count as content.
func (db *DB) EmptyChildren(ctx context.Context, treeID, parentID int64, typeTag, excludedType string) ([]tree.Child, error) {
	query := fmt.Sprintf(`
		SELECT t.id, a.title, a.type, a.created_at
		FROM %[1]s t
		JOIN %[2]s a ON a.id = t.id
		WHERE t.tree_id = $1 AND t.parent_id = $2 AND a.type = $3
			AND NOT EXISTS (
				SELECT 1
				FROM %[1]s d
				LEFT JOIN %[2]s da ON da.id = d.id
				WHERE d.tree_id = t.tree_id
					AND d.lft > t.lft AND d.rgt < t.rgt
					AND COALESCE(da.type, '') <> $4
			)
		ORDER BY t.lft
	`, db.tables.Nodes, db.tables.Attributes)

	return db.queryChildren(ctx, query, treeID, parentID, typeTag, excludedType)
}

func (db *DB) queryChildren(ctx context.Context, query string, args ...any) ([]tree.Child, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	defer rows.Close()

	var children []tree.Child
	for rows.Next() {
		var c tree.Child
		if err := rows.Scan(&c.ID, &c.Title, &c.Type, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		children = append(children, c)
	}
	return children, rows.Err()
}
