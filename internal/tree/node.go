package tree

import "fmt"

// Node is one row of the nested-set table. ParentID is the redundant
// adjacency pointer kept in sync with the boundaries; 0 means no parent.
type Node struct {
	ID       int64 `json:"id"`
	TreeID   int64 `json:"tree_id"`
	ParentID int64 `json:"parent_id"`
	Lft      int64 `json:"lft"`
	Rgt      int64 `json:"rgt"`
	Depth    int   `json:"depth"`
}

// Width is the number of boundary units spanned by the node's closed subtree.
func (n Node) Width() int64 {
	return n.Rgt - n.Lft + 1
}

// Contains reports whether other lies inside n's range, n itself included.
// This is the containment test used to reject cyclic moves.
func (n Node) Contains(other Node) bool {
	return other.Lft >= n.Lft && other.Rgt <= n.Rgt
}

// IsAncestorOf reports whether other is a strict descendant of n.
func (n Node) IsAncestorOf(other Node) bool {
	return other.Lft > n.Lft && other.Rgt < n.Rgt
}

func (n Node) String() string {
	return fmt.Sprintf("node %d [%d,%d] depth=%d parent=%d", n.ID, n.Lft, n.Rgt, n.Depth, n.ParentID)
}
