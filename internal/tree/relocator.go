package tree

import (
	"context"
	"log/slog"
)

// Options tune a Relocator.
type Options struct {
	// Verify re-checks every invariant of the tree before committing a move.
	// A violation rolls the move back and reports ErrRelocationFailed.
	Verify bool
}

// Move describes a committed relocation. Source and Target hold the
// boundaries read before the first update.
type Move struct {
	TreeID      int64 `json:"tree_id"`
	Source      Node  `json:"source"`
	Target      Node  `json:"target"`
	SpreadWidth int64 `json:"spread_width"`
	MoveDiff    int64 `json:"move_diff"`
	DepthDiff   int   `json:"depth_diff"`
	Rows        int64 `json:"rows"`
}

// Relocator moves subtrees within a nested-set Store.
type Relocator struct {
	store  Store
	logger *slog.Logger
	opts   Options
}

// NewRelocator creates a Relocator over store.
func NewRelocator(store Store, logger *slog.Logger, opts Options) *Relocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relocator{store: store, logger: logger, opts: opts}
}

// Locate resolves id within treeID. Arguments follow Reader.Locate.
func (r *Relocator) Locate(ctx context.Context, treeID, id int64) (Node, error) {
	return r.store.Locate(ctx, treeID, id)
}

// Relocate moves sourceID with its whole subtree to become the last child of
// targetID. Validation happens under the tree lock before any update; the
// three range updates commit together or not at all.
func (r *Relocator) Relocate(ctx context.Context, sourceID, targetID, treeID int64) (*Move, error) {
	var move *Move
	phase := "begin"

	err := r.store.Atomically(ctx, treeID, func(ctx context.Context, acc Accessor) error {
		phase = "locate"
		source, err := acc.Locate(ctx, treeID, sourceID)
		if err != nil {
			return err
		}
		target, err := acc.Locate(ctx, treeID, targetID)
		if err != nil {
			return err
		}

		if sourceID == targetID {
			return invalidMove(treeID, sourceID)
		}
		if source.Contains(target) {
			return cyclicMove(treeID, source, target)
		}

		plan := planMove(treeID, source, target)

		phase = "open gap"
		n, err := acc.Spread(ctx, treeID, plan.open)
		if err != nil {
			return err
		}
		rows := n

		phase = "move subtree"
		if n, err = acc.Translate(ctx, treeID, plan.translate); err != nil {
			return err
		}
		rows += n

		phase = "close gap"
		if n, err = acc.Spread(ctx, treeID, plan.close); err != nil {
			return err
		}
		rows += n

		if r.opts.Verify {
			phase = "verify"
			nodes, err := acc.Nodes(ctx, treeID)
			if err != nil {
				return err
			}
			if err := Verify(nodes); err != nil {
				return err
			}
		}

		phase = "commit"
		move = &Move{
			TreeID:      treeID,
			Source:      source,
			Target:      target,
			SpreadWidth: plan.width,
			MoveDiff:    plan.translate.Delta,
			DepthDiff:   plan.translate.DepthDelta,
			Rows:        rows,
		}
		return nil
	})
	if err != nil {
		if isValidation(err) {
			r.logger.Debug("move rejected", "tree_id", treeID, "source_id", sourceID, "target_id", targetID, "error", err)
			return nil, err
		}
		r.logger.Error("move failed", "tree_id", treeID, "source_id", sourceID, "target_id", targetID, "phase", phase, "error", err)
		return nil, relocationFailed(treeID, sourceID, targetID, phase, err)
	}

	r.logger.Info("moved subtree",
		"tree_id", treeID,
		"source_id", sourceID,
		"target_id", targetID,
		"width", move.SpreadWidth,
		"move_diff", move.MoveDiff,
		"depth_diff", move.DepthDiff,
	)
	return move, nil
}

type movePlan struct {
	width     int64
	open      Spread
	translate Translate
	close     Spread
}

// planMove computes the three range updates for moving source under target.
func planMove(treeID int64, source, target Node) movePlan {
	width := source.Width()

	// Opening the gap shifts the source too when it lies right of the target.
	var whereOffset, moveDiff int64
	if source.Lft > target.Rgt {
		whereOffset = width
		moveDiff = target.Rgt - source.Lft - width
	} else {
		moveDiff = target.Rgt - source.Lft
	}
	shiftedLft := source.Lft + whereOffset
	shiftedRgt := source.Rgt + whereOffset

	return movePlan{
		width: width,
		open: Spread{
			Lft:   Threshold{Pivot: target.Rgt},
			Rgt:   Threshold{Pivot: target.Rgt, Inclusive: true},
			Delta: width,
		},
		translate: Translate{
			From:       shiftedLft,
			To:         shiftedRgt,
			Delta:      moveDiff,
			DepthDelta: target.Depth - source.Depth + 1,
			Root:       source.ID,
			OldParent:  source.ParentID,
			NewParent:  target.ID,
		},
		close: Spread{
			Lft:   Threshold{Pivot: shiftedLft, Inclusive: true},
			Rgt:   Threshold{Pivot: shiftedRgt, Inclusive: true},
			Delta: -width,
		},
	}
}
