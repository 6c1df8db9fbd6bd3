// Package server provides the HTTP API for sofim: chat queries plus the
// admin surface for sync triggers, status and the source list.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sofim-uhk/sofim/internal/config"
	"github.com/sofim-uhk/sofim/internal/index"
	"github.com/sofim-uhk/sofim/internal/ingest"
	"github.com/sofim-uhk/sofim/internal/models"
	"github.com/sofim-uhk/sofim/internal/search"
	"github.com/sofim-uhk/sofim/internal/status"
	"github.com/sofim-uhk/sofim/internal/storage"
)

// Syncer starts background sync runs.
type Syncer interface {
	Start(ctx context.Context, mode models.Mode) error
	Running() bool
	LastReport() *ingest.Report
}

// Server is the HTTP server for the sofim API.
type Server struct {
	engine   *search.Engine
	syncer   Syncer
	tracker  *status.Tracker
	storage  storage.Storage
	index    *index.Manager
	config   *config.ServerConfig
	logger   *zap.Logger
	validate *validator.Validate
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	syncer Syncer,
	tracker *status.Tracker,
	storage storage.Storage,
	idx *index.Manager,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:   engine,
		syncer:   syncer,
		tracker:  tracker,
		storage:  storage,
		index:    idx,
		config:   cfg,
		logger:   logger,
		validate: validator.New(),
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Post("/api/v1/chat", s.handleChat)

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Post("/sync/{mode}", s.handleTriggerSync)
		r.Get("/sync/status", s.handleSyncStatus)
		r.Get("/sources", s.handleListSources)
		r.Post("/sources", s.handleAddSource)
		r.Delete("/sources/{id}", s.handleDeleteSource)
		r.Get("/passages/search", s.handlePassageSearch)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
