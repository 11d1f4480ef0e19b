package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lazypower/grove/internal/archive"
	"github.com/lazypower/grove/internal/config"
	"github.com/lazypower/grove/internal/store"
	"github.com/lazypower/grove/internal/tree"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// seed loads:
//
//	1 root
//	├── 2 courses
//	│   ├── 4 Algebra (crs, 2019) > 5 rolf
//	│   └── 6 Biology (crs, 2020) > 7 file
//	└── 3 archive
//	    └── 8 "2019"
func seed(t *testing.T, db *store.DB) {
	t.Helper()
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
	day := func(y int) time.Time { return time.Date(y, 5, 1, 0, 0, 0, 0, time.UTC) }
	err := db.InsertObjects(ctx,
		store.Object{RefID: 1, Type: "root", Title: "Root", CreatedAt: day(2010)},
		store.Object{RefID: 2, Type: "cat", Title: "Courses", CreatedAt: day(2010)},
		store.Object{RefID: 3, Type: "cat", Title: "Archive", CreatedAt: day(2010)},
		store.Object{RefID: 4, Type: "crs", Title: "Algebra", CreatedAt: day(2019)},
		store.Object{RefID: 5, Type: "rolf", Title: "roles", CreatedAt: day(2019)},
		store.Object{RefID: 6, Type: "crs", Title: "Biology", CreatedAt: day(2020)},
		store.Object{RefID: 7, Type: "file", Title: "notes", CreatedAt: day(2020)},
		store.Object{RefID: 8, Type: "cat", Title: "2019", CreatedAt: day(2021)},
	)
	if err != nil {
		t.Fatalf("InsertObjects: %v", err)
	}
}

func testServer(t *testing.T) (*Server, *store.DB) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	seed(t, db)

	relocator := tree.NewRelocator(db, quiet, tree.Options{Verify: true})
	cfg := config.Default().Tree
	cfg.MainCategoryID = 2
	cfg.ArchiveCategoryID = 3
	archiver, err := archive.New(cfg, db, relocator, quiet)
	if err != nil {
		t.Fatalf("archive.New: %v", err)
	}
	return New(db, relocator, archiver, quiet, "test-version"), db
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, "GET", "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := decode(t, w)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["db"] != true {
		t.Errorf("db = %v, want true", body["db"])
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, "GET", "/api/nope", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
