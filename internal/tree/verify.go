package tree

import (
	"fmt"
	"sort"

	"github.com/samber/oops"
)

// Verify checks the nested-set invariants over every node of one tree:
//
//  1. lft < rgt
//  2. no two nodes share a boundary value
//  3. ranges nest properly, never partially overlap
//  4. parent_id names the tightest enclosing node
//  5. depth is the parent's depth plus one
//
// A tree has exactly one root. Boundaries need not be contiguous.
func Verify(nodes []Node) error {
	if len(nodes) == 0 {
		return nil
	}

	sorted := make([]Node, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Lft < sorted[j].Lft })

	seen := make(map[int64]int64, 2*len(sorted))
	claim := func(v int64, n Node) error {
		if other, ok := seen[v]; ok {
			return violation(2, n, fmt.Sprintf("boundary %d already used by node %d", v, other))
		}
		seen[v] = n.ID
		return nil
	}

	var stack []Node
	roots := 0
	for _, n := range sorted {
		if n.Lft >= n.Rgt {
			return violation(1, n, "lft must be less than rgt")
		}
		if err := claim(n.Lft, n); err != nil {
			return err
		}
		if err := claim(n.Rgt, n); err != nil {
			return err
		}

		for len(stack) > 0 && stack[len(stack)-1].Rgt < n.Lft {
			stack = stack[:len(stack)-1]
		}

		if len(stack) == 0 {
			roots++
			if roots > 1 {
				return violation(3, n, "second root outside the first root's range")
			}
			stack = append(stack, n)
			continue
		}

		parent := stack[len(stack)-1]
		if n.Rgt > parent.Rgt {
			return violation(3, n, fmt.Sprintf("range overlaps node %d [%d,%d]", parent.ID, parent.Lft, parent.Rgt))
		}
		if n.ParentID != parent.ID {
			return violation(4, n, fmt.Sprintf("parent is %d, enclosing node is %d", n.ParentID, parent.ID))
		}
		if n.Depth != parent.Depth+1 {
			return violation(5, n, fmt.Sprintf("depth %d under parent depth %d", n.Depth, parent.Depth))
		}
		stack = append(stack, n)
	}
	return nil
}

func violation(invariant int, n Node, detail string) error {
	return oops.
		Code(CodeInvariant).
		In("verify").
		With("tree_id", n.TreeID, "node_id", n.ID, "invariant", invariant).
		Wrap(&InvariantError{Invariant: invariant, Node: n, Detail: detail})
}
