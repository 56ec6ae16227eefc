// Package api exposes the map pipeline over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/docmap/internal/config"
	"github.com/dgallion1/docmap/internal/llm"
	"github.com/dgallion1/docmap/internal/pipeline"
	"github.com/dgallion1/docmap/internal/session"
)

// Server is the HTTP API server for docmap.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	maps         session.MapStore
	catalog      *llm.Catalog
	stats        *llm.Stats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. stats may be nil.
func NewServer(orch *pipeline.Orchestrator, maps session.MapStore, catalog *llm.Catalog, stats *llm.Stats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		maps:         maps,
		catalog:      catalog,
		stats:        stats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/maps", s.handleCreateMap)
		r.Get("/maps", s.handleListMaps)
		r.Get("/maps/jobs/{jobID}", s.handleJobStatus)
		r.Get("/maps/{mapID}", s.handleGetMap)
		r.Get("/models", s.handleModels)
		r.Get("/stats/llm", s.handleLLMStats)
	})

	r.Get("/maps/{mapID}", s.handleMapPage)

	if s.cfg.BlobBackend == "fs" && s.cfg.BlobDir != "" {
		r.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(s.cfg.BlobDir))))
	}

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
