package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-chi/chi/v5"

	"github.com/lazypower/grove/internal/archive"
	"github.com/lazypower/grove/internal/tree"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "code": "request.invalid"})
}

// writeError maps tree errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := s.errorBody(r, err)
	writeJSON(w, status, body)
}

// errorBody maps err to a status and the {"error", "code"} response body.
func (s *Server) errorBody(r *http.Request, err error) (int, map[string]any) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, tree.ErrNodeNotFound):
		status, code = http.StatusNotFound, tree.CodeNodeNotFound
	case errors.Is(err, tree.ErrInvalidMove):
		status, code = http.StatusConflict, tree.CodeInvalidMove
	case errors.Is(err, tree.ErrCyclicMove):
		status, code = http.StatusConflict, tree.CodeCyclicMove
	case errors.Is(err, tree.ErrRelocationFailed):
		code = tree.CodeRelocationFailed
	case errors.Is(err, archive.ErrNotConfigured):
		status, code = http.StatusServiceUnavailable, archive.CodeNotConfigured
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	return status, map[string]any{"error": err.Error(), "code": code}
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}
	return id, nil
}

// treeAndNode parses both path ids, answering 400 itself on failure.
func treeAndNode(w http.ResponseWriter, r *http.Request) (treeID, nodeID int64, ok bool) {
	treeID, err := pathID(r, "treeID")
	if err != nil {
		badRequest(w, err)
		return 0, 0, false
	}
	nodeID, err = pathID(r, "nodeID")
	if err != nil {
		badRequest(w, err)
		return 0, 0, false
	}
	return treeID, nodeID, true
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	treeID, nodeID, ok := treeAndNode(w, r)
	if !ok {
		return
	}
	n, err := s.relocator.Locate(r.Context(), treeID, nodeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

type moveRequest struct {
	TargetID int64 `json:"target_id"`
}

func (m moveRequest) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.TargetID, validation.Required, validation.Min(int64(1))),
	)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	treeID, nodeID, ok := treeAndNode(w, r)
	if !ok {
		return
	}

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, fmt.Errorf("invalid json: %w", err))
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(w, err)
		return
	}

	move, err := s.relocator.Relocate(r.Context(), nodeID, req.TargetID, treeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, move)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	treeID, err := pathID(r, "treeID")
	if err != nil {
		badRequest(w, err)
		return
	}

	nodes, err := s.backend.Nodes(r.Context(), treeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := map[string]any{"tree_id": treeID, "nodes": len(nodes), "ok": true}
	if err := tree.Verify(nodes); err != nil {
		var ie *tree.InvariantError
		if !errors.As(err, &ie) {
			s.writeError(w, r, err)
			return
		}
		resp["ok"] = false
		resp["invariant"] = ie.Invariant
		resp["node_id"] = ie.Node.ID
		resp["detail"] = ie.Detail
	}
	writeJSON(w, http.StatusOK, resp)
}

// childQuery holds the query parameters of the child listing routes.
type childQuery struct {
	Type    string
	Title   string
	Exclude string
	Year    int
}

func parseChildQuery(r *http.Request) (childQuery, error) {
	q := r.URL.Query()
	cq := childQuery{Type: q.Get("type"), Title: q.Get("title"), Exclude: q.Get("exclude")}
	if raw := q.Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil {
			return cq, fmt.Errorf("year must be an integer, got %q", raw)
		}
		cq.Year = y
	}
	return cq, nil
}

func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	treeID, nodeID, ok := treeAndNode(w, r)
	if !ok {
		return
	}
	cq, err := parseChildQuery(r)
	if err == nil {
		err = validation.ValidateStruct(&cq, validation.Field(&cq.Type, validation.Required))
	}
	if err != nil {
		badRequest(w, err)
		return
	}

	years, err := s.backend.ChildYears(r.Context(), treeID, nodeID, cq.Type)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if years == nil {
		years = []int{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"years": years})
}

func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	treeID, nodeID, ok := treeAndNode(w, r)
	if !ok {
		return
	}
	cq, err := parseChildQuery(r)
	if err == nil {
		err = validation.ValidateStruct(&cq,
			validation.Field(&cq.Type, validation.Required),
			validation.Field(&cq.Year, validation.Required, validation.Min(1), validation.Max(9999)),
		)
	}
	if err != nil {
		badRequest(w, err)
		return
	}

	children, err := s.backend.ChildrenInYear(r.Context(), treeID, nodeID, cq.Type, cq.Year)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeChildren(w, children)
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	treeID, nodeID, ok := treeAndNode(w, r)
	if !ok {
		return
	}
	cq, err := parseChildQuery(r)
	if err == nil {
		err = validation.ValidateStruct(&cq,
			validation.Field(&cq.Type, validation.Required),
			validation.Field(&cq.Title, validation.Required),
		)
	}
	if err != nil {
		badRequest(w, err)
		return
	}

	id, err := s.backend.FindChildByTitle(r.Context(), treeID, nodeID, cq.Type, cq.Title)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (s *Server) handleEmpty(w http.ResponseWriter, r *http.Request) {
	treeID, nodeID, ok := treeAndNode(w, r)
	if !ok {
		return
	}
	cq, err := parseChildQuery(r)
	if err == nil {
		err = validation.ValidateStruct(&cq,
			validation.Field(&cq.Type, validation.Required),
			validation.Field(&cq.Exclude, validation.Required),
		)
	}
	if err != nil {
		badRequest(w, err)
		return
	}

	children, err := s.backend.EmptyChildren(r.Context(), treeID, nodeID, cq.Type, cq.Exclude)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeChildren(w, children)
}

func writeChildren(w http.ResponseWriter, children []tree.Child) {
	if children == nil {
		children = []tree.Child{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"children": children})
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if s.archiver == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "main category not configured",
			"code":  archive.CodeNotConfigured,
		})
		return
	}

	dryRun := false
	if raw := r.URL.Query().Get("dry_run"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(w, fmt.Errorf("dry_run must be a boolean, got %q", raw))
			return
		}
		dryRun = v
	}

	report, err := s.archiver.Archive(r.Context(), time.Now(), dryRun)
	if err != nil {
		status, body := s.errorBody(r, err)
		// Courses listed in a partial report are already committed.
		if report != nil {
			body["report"] = report
		}
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleEmptyCourses(w http.ResponseWriter, r *http.Request) {
	if s.archiver == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "main category not configured",
			"code":  archive.CodeNotConfigured,
		})
		return
	}

	courses, err := s.archiver.EmptyCourses(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeChildren(w, courses)
}
