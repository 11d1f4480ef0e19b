package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/grove/internal/archive"
	"github.com/lazypower/grove/internal/tree"
)

// Server is the grove HTTP API server.
type Server struct {
	backend   tree.Backend
	relocator *tree.Relocator
	archiver  *archive.Archiver
	logger    *slog.Logger
	router    chi.Router
	version   string
	started   time.Time
}

// New creates a Server. archiver may be nil when no archive categories are
// configured; the archive routes then answer 503.
func New(backend tree.Backend, relocator *tree.Relocator, archiver *archive.Archiver, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		backend:   backend,
		relocator: relocator,
		archiver:  archiver,
		logger:    logger,
		version:   version,
		started:   time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/trees/{treeID}", func(r chi.Router) {
			r.Get("/verify", s.handleVerify)

			r.Route("/nodes/{nodeID}", func(r chi.Router) {
				r.Get("/", s.handleLocate)
				r.Post("/move", s.handleMove)
				r.Get("/years", s.handleYears)
				r.Get("/children", s.handleChildren)
				r.Get("/find", s.handleFind)
				r.Get("/empty", s.handleEmpty)
			})
		})

		r.Post("/archive", s.handleArchive)
		r.Get("/archive/empty", s.handleEmptyCourses)
	})

	s.router = r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbOK := true
	if err := s.backend.Ping(ctx); err != nil {
		dbOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
	})
}
