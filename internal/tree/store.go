package tree

import (
	"context"
	"time"
)

// Threshold selects boundary values above a pivot, or at-or-above it when
// Inclusive is set.
type Threshold struct {
	Pivot     int64
	Inclusive bool
}

// Op returns the SQL comparison operator for the threshold.
func (t Threshold) Op() string {
	if t.Inclusive {
		return ">="
	}
	return ">"
}

// Spread shifts lft and rgt independently by Delta wherever each passes its
// own threshold. A positive Delta opens a gap, a negative one closes it.
type Spread struct {
	Lft   Threshold
	Rgt   Threshold
	Delta int64
}

// Translate moves every node whose range lies in [From, To] by Delta and
// DepthDelta. The node Root, whose parent is OldParent, is re-parented to
// NewParent; the rest of the range keeps its parent pointers.
type Translate struct {
	From       int64
	To         int64
	Delta      int64
	DepthDelta int
	Root       int64
	OldParent  int64
	NewParent  int64
}

// Reader resolves nodes of a single tree.
type Reader interface {
	// Locate returns the node id within treeID, or an error matching
	// ErrNodeNotFound.
	Locate(ctx context.Context, treeID, id int64) (Node, error)

	// Nodes returns every node of treeID ordered by lft.
	Nodes(ctx context.Context, treeID int64) ([]Node, error)
}

// Accessor is the storage capability available inside an atomic unit. Every
// update is one bulk statement scoped by treeID; row count returned.
type Accessor interface {
	Reader
	Spread(ctx context.Context, treeID int64, s Spread) (int64, error)
	Translate(ctx context.Context, treeID int64, t Translate) (int64, error)
}

// Store is a nested-set backend.
type Store interface {
	Reader

	// Atomically runs fn inside one transaction holding exclusive access to
	// treeID's rows. fn's error, a panic, or a failed commit rolls back.
	Atomically(ctx context.Context, treeID int64, fn func(ctx context.Context, acc Accessor) error) error
}

// Child is a direct child joined with its object attributes.
type Child struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Catalog answers the read-only questions the archive workflow asks about
// the direct children of one parent.
type Catalog interface {
	// ChildYears returns the distinct creation years (UTC) among children of
	// parentID typed typeTag, ascending.
	ChildYears(ctx context.Context, treeID, parentID int64, typeTag string) ([]int, error)

	// FindChildByTitle returns the id of a child with the exact title, or an
	// error matching ErrNodeNotFound.
	FindChildByTitle(ctx context.Context, treeID, parentID int64, typeTag, title string) (int64, error)

	// ChildrenInYear returns the children created during year (UTC).
	ChildrenInYear(ctx context.Context, treeID, parentID int64, typeTag string, year int) ([]Child, error)

	// EmptyChildren returns children with no descendants of a type other
	// than excludedType.
	EmptyChildren(ctx context.Context, treeID, parentID int64, typeTag, excludedType string) ([]Child, error)
}

// Backend bundles what the CLI and server need from one database.
type Backend interface {
	Store
	Catalog
	Ping(ctx context.Context) error
	Close() error
}

// YearBounds returns the half-open UTC interval [start, end) covering year.
func YearBounds(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}
