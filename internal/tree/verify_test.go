package tree_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/grove/internal/tree"
)

func scenario() []tree.Node {
	return []tree.Node{
		{ID: 1, TreeID: 1, ParentID: 0, Lft: 1, Rgt: 20, Depth: 0},
		{ID: 2, TreeID: 1, ParentID: 1, Lft: 2, Rgt: 9, Depth: 1},
		{ID: 3, TreeID: 1, ParentID: 1, Lft: 10, Rgt: 19, Depth: 1},
		{ID: 4, TreeID: 1, ParentID: 2, Lft: 3, Rgt: 8, Depth: 2},
		{ID: 5, TreeID: 1, ParentID: 4, Lft: 4, Rgt: 7, Depth: 3},
	}
}

func invariantOf(t *testing.T, err error) int {
	t.Helper()
	var ie *tree.InvariantError
	require.True(t, errors.As(err, &ie), "want InvariantError, got %v", err)
	return ie.Invariant
}

func TestVerifyAcceptsScenario(t *testing.T) {
	assert.NoError(t, tree.Verify(scenario()))
	assert.NoError(t, tree.Verify(nil))
}

func TestVerifyViolations(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(nodes []tree.Node)
		invariant int
	}{
		{
			name:      "inverted range",
			mutate:    func(n []tree.Node) { n[4].Lft, n[4].Rgt = 7, 4 },
			invariant: 1,
		},
		{
			name:      "shared boundary",
			mutate:    func(n []tree.Node) { n[2].Lft = 9 },
			invariant: 2,
		},
		{
			name:      "partial overlap",
			mutate:    func(n []tree.Node) { n[3].Rgt = 11 },
			invariant: 3,
		},
		{
			name:      "wrong parent pointer",
			mutate:    func(n []tree.Node) { n[4].ParentID = 2 },
			invariant: 4,
		},
		{
			name:      "wrong depth",
			mutate:    func(n []tree.Node) { n[3].Depth = 3 },
			invariant: 5,
		},
		{
			name:      "second root",
			mutate:    func(n []tree.Node) { n[4].Lft, n[4].Rgt = 21, 22 },
			invariant: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := scenario()
			tt.mutate(nodes)
			err := tree.Verify(nodes)
			require.Error(t, err)
			assert.Equal(t, tt.invariant, invariantOf(t, err))
		})
	}
}

func TestNumber(t *testing.T) {
	nodes := tree.Number(1, tree.Outline{ID: 1, Children: []tree.Outline{
		{ID: 2, Children: []tree.Outline{{ID: 4}}},
		{ID: 3},
	}}, 0)

	require.Len(t, nodes, 4)
	assert.Equal(t, tree.Node{ID: 1, TreeID: 1, ParentID: 0, Lft: 1, Rgt: 8, Depth: 0}, nodes[0])
	assert.Equal(t, tree.Node{ID: 2, TreeID: 1, ParentID: 1, Lft: 2, Rgt: 5, Depth: 1}, nodes[1])
	assert.Equal(t, tree.Node{ID: 4, TreeID: 1, ParentID: 2, Lft: 3, Rgt: 4, Depth: 2}, nodes[2])
	assert.Equal(t, tree.Node{ID: 3, TreeID: 1, ParentID: 1, Lft: 6, Rgt: 7, Depth: 1}, nodes[3])
	assert.NoError(t, tree.Verify(nodes))
}

func TestNodeGeometry(t *testing.T) {
	n := scenario()
	root, a, b, c := n[0], n[1], n[2], n[3]

	assert.Equal(t, int64(20), root.Width())
	assert.True(t, root.Contains(root))
	assert.False(t, root.IsAncestorOf(root))
	assert.True(t, a.IsAncestorOf(c))
	assert.False(t, b.Contains(c))
}
