package tree

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// Sentinel errors for tree operations, matched with errors.Is.
var (
	// ErrNodeNotFound means an id does not resolve within the given tree.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidMove means source and target are the same node.
	ErrInvalidMove = errors.New("invalid move")

	// ErrCyclicMove means the target lies inside the source's subtree.
	ErrCyclicMove = errors.New("cyclic move")

	// ErrRelocationFailed means storage failed mid-move or the result did not
	// verify. The transaction has been rolled back when this is reported.
	ErrRelocationFailed = errors.New("relocation failed")
)

// Error codes attached through oops.
const (
	CodeNodeNotFound     = "tree.node.not_found"
	CodeInvalidMove      = "tree.move.invalid"
	CodeCyclicMove       = "tree.move.cyclic"
	CodeRelocationFailed = "tree.move.failed"
	CodeInvariant        = "tree.verify.invariant"
)

// NotFound builds an ErrNodeNotFound for id within treeID. Backends return
// it from Locate so callers can match on the sentinel.
func NotFound(treeID, id int64) error {
	return oops.
		Code(CodeNodeNotFound).
		In("tree").
		With("tree_id", treeID, "node_id", id).
		Wrapf(ErrNodeNotFound, "node %d in tree %d", id, treeID)
}

// TitleNotFound builds an ErrNodeNotFound for a child lookup by title.
func TitleNotFound(treeID, parentID int64, title string) error {
	return oops.
		Code(CodeNodeNotFound).
		In("catalog").
		With("tree_id", treeID, "parent_id", parentID, "title", title).
		Wrapf(ErrNodeNotFound, "no child %q under %d", title, parentID)
}

func invalidMove(treeID, id int64) error {
	return oops.
		Code(CodeInvalidMove).
		In("relocate").
		With("tree_id", treeID, "node_id", id).
		Wrapf(ErrInvalidMove, "node %d cannot be moved under itself", id)
}

func cyclicMove(treeID int64, source, target Node) error {
	return oops.
		Code(CodeCyclicMove).
		In("relocate").
		With("tree_id", treeID, "source_id", source.ID, "target_id", target.ID).
		Wrapf(ErrCyclicMove, "target %d is inside subtree of %d", target.ID, source.ID)
}

func relocationFailed(treeID, sourceID, targetID int64, phase string, cause error) error {
	return oops.
		Code(CodeRelocationFailed).
		In("relocate").
		With("tree_id", treeID, "source_id", sourceID, "target_id", targetID, "phase", phase).
		Wrapf(fmt.Errorf("%w: %w", ErrRelocationFailed, cause), "move %d under %d", sourceID, targetID)
}

// InvariantError describes the first nested-set invariant a tree violates.
type InvariantError struct {
	Invariant int
	Node      Node
	Detail    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant %d violated at %s: %s", e.Invariant, e.Node, e.Detail)
}

// isValidation reports whether err is one of the pre-mutation rejections.
func isValidation(err error) bool {
	return errors.Is(err, ErrNodeNotFound) || errors.Is(err, ErrInvalidMove) || errors.Is(err, ErrCyclicMove)
}
