package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/grove/internal/archive"
	"github.com/lazypower/grove/internal/tree"
)

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid node id %q", s)
	}
	return id, nil
}

// --- move command ---

var moveCmd = &cobra.Command{
	Use:   "move <source-id> <target-id>",
	Short: "Move a subtree to become the last child of target",
	Args:  cobra.ExactArgs(2),
	RunE:  runMove,
}

func runMove(cmd *cobra.Command, args []string) error {
	sourceID, err := parseID(args[0])
	if err != nil {
		return err
	}
	targetID, err := parseID(args[1])
	if err != nil {
		return err
	}

	backend, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer backend.Close()

	move, err := newRelocator(backend).Relocate(cmd.Context(), sourceID, targetID, cfg.Tree.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "moved %d under %d (width %d, shift %+d, depth %+d)\n",
		sourceID, targetID, move.SpreadWidth, move.MoveDiff, move.DepthDiff)
	return nil
}

// --- show command ---

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a node's position in the tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	backend, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer backend.Close()

	n, err := newRelocator(backend).Locate(cmd.Context(), cfg.Tree.ID, id)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "id\t%d\n", n.ID)
	fmt.Fprintf(w, "tree\t%d\n", n.TreeID)
	fmt.Fprintf(w, "parent\t%d\n", n.ParentID)
	fmt.Fprintf(w, "lft\t%d\n", n.Lft)
	fmt.Fprintf(w, "rgt\t%d\n", n.Rgt)
	fmt.Fprintf(w, "depth\t%d\n", n.Depth)
	return w.Flush()
}

// --- tree command ---

var treeCmd = &cobra.Command{
	Use:   "tree [id]",
	Short: "Print the tree, or the subtree under id, indented by depth",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTree,
}

func runTree(cmd *cobra.Command, args []string) error {
	backend, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer backend.Close()

	nodes, err := backend.Nodes(cmd.Context(), cfg.Tree.ID)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		root, err := backend.Locate(cmd.Context(), cfg.Tree.ID, id)
		if err != nil {
			return err
		}
		nodes = subtree(nodes, root)
	}
	if len(nodes) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Tree %d is empty.\n", cfg.Tree.ID)
		return nil
	}
	printOutline(cmd.OutOrStdout(), nodes)
	return nil
}

// subtree keeps the nodes of an lft-ordered slice that lie within root.
func subtree(nodes []tree.Node, root tree.Node) []tree.Node {
	var out []tree.Node
	for _, n := range nodes {
		if root.Contains(n) {
			out = append(out, n)
		}
	}
	return out
}

func printOutline(w io.Writer, nodes []tree.Node) {
	base := nodes[0].Depth
	for _, n := range nodes {
		indent := strings.Repeat("  ", max(n.Depth-base, 0))
		fmt.Fprintf(w, "%s%d [%d,%d]\n", indent, n.ID, n.Lft, n.Rgt)
	}
}

// --- verify command ---

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the nested-set invariants of the tree",
	Args:  cobra.NoArgs,
	RunE:  runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	backend, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer backend.Close()

	nodes, err := backend.Nodes(cmd.Context(), cfg.Tree.ID)
	if err != nil {
		return err
	}
	if err := tree.Verify(nodes); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "tree %d ok (%d nodes)\n", cfg.Tree.ID, len(nodes))
	return nil
}

// --- archive command ---

var archiveDryRun bool

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move old courses into their per-year archive category",
	Long: "Moves every course in the main category created in a year at least tree.keep_years " +
		"before the current one under the archive category titled with that year.",
	Args: cobra.NoArgs,
	RunE: runArchive,
}

func init() {
	archiveCmd.Flags().BoolVar(&archiveDryRun, "dry-run", false, "report what would move without moving it")
}

func runArchive(cmd *cobra.Command, args []string) error {
	backend, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer backend.Close()

	a, err := newArchiver(backend)
	if err != nil {
		return err
	}

	report, err := a.Archive(cmd.Context(), time.Now(), archiveDryRun)
	printReport(cmd.OutOrStdout(), report)
	return err
}

func printReport(out io.Writer, report *archive.Report) {
	if report == nil {
		return
	}
	verb := "moved"
	if report.DryRun {
		verb = "would move"
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "year\ttarget\tcourses\tnote")
	for _, y := range report.Years {
		note := y.Reason
		if len(y.Rejected) > 0 {
			note = fmt.Sprintf("%d rejected", len(y.Rejected))
		}
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\n", y.Year, y.TargetID, len(y.Moved), note)
	}
	w.Flush()
	fmt.Fprintf(out, "\n%s %d courses (cutoff %d)\n", verb, report.MovedCount(), report.Cutoff)
}

// --- empty command ---

var emptyCmd = &cobra.Command{
	Use:   "empty",
	Short: "List courses with no content besides bookkeeping nodes",
	Args:  cobra.NoArgs,
	RunE:  runEmpty,
}

func runEmpty(cmd *cobra.Command, args []string) error {
	backend, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer backend.Close()

	a, err := newArchiver(backend)
	if err != nil {
		return err
	}
	courses, err := a.EmptyCourses(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ref_id\ttitle\tcreated")
	for _, c := range courses {
		fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Title, c.CreatedAt.Format(time.DateOnly))
	}
	return w.Flush()
}

// ExitCode maps tree errors to process exit codes.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, tree.ErrNodeNotFound):
		return 3
	case errors.Is(err, tree.ErrInvalidMove), errors.Is(err, tree.ErrCyclicMove):
		return 4
	default:
		return 1
	}
}
