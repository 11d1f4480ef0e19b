package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lazypower/grove/internal/config"
	"github.com/lazypower/grove/internal/store"
	"github.com/lazypower/grove/internal/tree"
)

// seedFile creates a sqlite database holding:
//
//	1 root
//	├── 2 courses
//	│   ├── 4 Algebra (2019) > 5 rolf
//	│   └── 6 Biology (this year) > 7 file
//	└── 3 archive > 8 "2019"
func seedFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grove.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	outline := tree.Outline{ID: 1, Children: []tree.Outline{
		{ID: 2, Children: []tree.Outline{
			{ID: 4, Children: []tree.Outline{{ID: 5}}},
			{ID: 6, Children: []tree.Outline{{ID: 7}}},
		}},
		{ID: 3, Children: []tree.Outline{{ID: 8}}},
	}}
	if err := db.InsertNodes(ctx, tree.Number(1, outline, 0)...); err != nil {
		t.Fatalf("InsertNodes: %v", err)
	}
	old := time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	err = db.InsertObjects(ctx,
		store.Object{RefID: 1, Type: "root", Title: "Root", CreatedAt: old},
		store.Object{RefID: 2, Type: "cat", Title: "Courses", CreatedAt: old},
		store.Object{RefID: 3, Type: "cat", Title: "Archive", CreatedAt: old},
		store.Object{RefID: 4, Type: "crs", Title: "Algebra", CreatedAt: old},
		store.Object{RefID: 5, Type: "rolf", Title: "roles", CreatedAt: old},
		store.Object{RefID: 6, Type: "crs", Title: "Biology", CreatedAt: now},
		store.Object{RefID: 7, Type: "file", Title: "notes", CreatedAt: now},
		store.Object{RefID: 8, Type: "cat", Title: "2019", CreatedAt: old},
	)
	if err != nil {
		t.Fatalf("InsertObjects: %v", err)
	}
	return path
}

// run executes the root command against the database at path.
func run(t *testing.T, path string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GROVE_DATABASE_PATH", path)
	t.Setenv("GROVE_TREE_MAIN_CATEGORY_ID", "2")
	t.Setenv("GROVE_TREE_ARCHIVE_CATEGORY_ID", "3")
	t.Setenv("GROVE_LOG_LEVEL", "error")

	cfgFile, treeFlag, verifyFlag, archiveDryRun = "", 0, true, false

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "grove dev") {
		t.Errorf("output = %q", out)
	}
}

func TestMoveAndShow(t *testing.T) {
	path := seedFile(t)

	out, err := run(t, path, "move", "6", "3")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if !strings.Contains(out, "moved 6 under 3") {
		t.Errorf("move output = %q", out)
	}

	out, err = run(t, path, "show", "6")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "parent  3") {
		t.Errorf("show output = %q, want parent 3", out)
	}

	out, err = run(t, path, "verify")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !strings.Contains(out, "ok (8 nodes)") {
		t.Errorf("verify output = %q", out)
	}
}

func TestMoveRejected(t *testing.T) {
	path := seedFile(t)

	_, err := run(t, path, "move", "2", "5")
	if !errors.Is(err, tree.ErrCyclicMove) {
		t.Fatalf("err = %v, want ErrCyclicMove", err)
	}
	if code := ExitCode(err); code != 4 {
		t.Errorf("ExitCode = %d, want 4", code)
	}

	_, err = run(t, path, "--tree", "9", "show", "2")
	if !errors.Is(err, tree.ErrNodeNotFound) {
		t.Fatalf("err = %v, want ErrNodeNotFound", err)
	}
	if code := ExitCode(err); code != 3 {
		t.Errorf("ExitCode = %d, want 3", code)
	}

	if _, err := run(t, path, "move", "x", "5"); err == nil {
		t.Error("expected error for non-numeric id")
	}
}

func TestTreeCommand(t *testing.T) {
	path := seedFile(t)

	out, err := run(t, path, "tree", "2")
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("tree 2 printed %d lines:\n%s", len(lines), out)
	}
	if lines[0] != "2 [2,11]" || lines[2] != "    5 [4,5]" {
		t.Errorf("tree 2 output:\n%s", out)
	}
}

func TestArchiveAndEmptyCommands(t *testing.T) {
	path := seedFile(t)

	out, err := run(t, path, "archive", "--dry-run")
	if err != nil {
		t.Fatalf("archive --dry-run: %v", err)
	}
	if !strings.Contains(out, "would move 1 courses") {
		t.Errorf("dry run output = %q", out)
	}

	out, err = run(t, path, "empty")
	if err != nil {
		t.Fatalf("empty: %v", err)
	}
	if !strings.Contains(out, "Algebra") || strings.Contains(out, "Biology") {
		t.Errorf("empty output = %q, want only Algebra", out)
	}

	out, err = run(t, path, "archive")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !strings.Contains(out, "moved 1 courses") {
		t.Errorf("archive output = %q", out)
	}

	out, err = run(t, path, "show", "4")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "parent  8") {
		t.Errorf("course 4 not archived: %q", out)
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(config.LogConfig{Level: "debug", Format: "json"}, &buf)
	l.Debug("hello", "tree_id", 1)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %q", buf.String())
	}
	if rec["msg"] != "hello" || rec["tree_id"] != float64(1) {
		t.Errorf("record = %v", rec)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(config.LogConfig{Level: "warn", Format: "text"}, &buf)
	l.Info("quiet")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}
}
