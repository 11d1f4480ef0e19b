package tree

// Outline is a tree given by adjacency alone, used to load fixtures and
// imports that carry no boundaries yet.
type Outline struct {
	ID       int64
	Children []Outline
}

// Number assigns contiguous nested-set boundaries to root and its
// descendants in depth-first order, starting at lft=1 and the given depth.
// Children are laid out in slice order.
func Number(treeID int64, root Outline, depth int) []Node {
	var nodes []Node
	next := int64(1)

	var walk func(o Outline, parent int64, depth int)
	walk = func(o Outline, parent int64, depth int) {
		i := len(nodes)
		nodes = append(nodes, Node{ID: o.ID, TreeID: treeID, ParentID: parent, Lft: next, Depth: depth})
		next++
		for _, c := range o.Children {
			walk(c, o.ID, depth+1)
		}
		nodes[i].Rgt = next
		next++
	}
	walk(root, 0, depth)
	return nodes
}
