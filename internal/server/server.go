package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kindexlab/kindex/internal/engine"
	"github.com/kindexlab/kindex/internal/store"
)

// Server is the kindex HTTP API server.
type Server struct {
	db      *store.DB
	engine  *engine.Engine
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server with the given database, engine and version
// string.
func New(db *store.DB, eng *engine.Engine, version string) *Server {
	s := &Server{
		db:      db,
		engine:  eng,
		version: version,
		started: time.Now(),
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
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/retrieve", s.handleRetrieve)
		r.Post("/decay", s.handleDecay)

		r.Post("/nodes", s.handleCreateNode)
		r.Get("/nodes/{nodeID}", s.handleGetNode)
		r.Get("/nodes/{nodeID}/edges", s.handleNodeEdges)
		r.Post("/nodes/{nodeID}/boost", s.handleBoostNode)
		r.Post("/edges", s.handleAddEdge)

		r.Get("/stats", s.handleStats)
		r.Get("/orphans", s.handleOrphans)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}
