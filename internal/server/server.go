// Package server exposes sessions, stored sources and metrics over a JSON
// HTTP API.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voyagen/streamscout/internal/checker"
	"github.com/voyagen/streamscout/internal/config"
	"github.com/voyagen/streamscout/internal/fetcher"
	"github.com/voyagen/streamscout/internal/service"
	"github.com/voyagen/streamscout/internal/session"
	"github.com/voyagen/streamscout/internal/store"
)

// Deps are the collaborators the API is built from. Store and Dispatcher
// are nil when no database is configured; the source routes are then not
// registered.
type Deps struct {
	Config     *config.Config
	Sessions   *session.Registry
	Fetcher    *fetcher.Fetcher
	Checker    *checker.Checker
	Store      store.Store
	Dispatcher *service.Dispatcher
}

// Server holds dependencies for the HTTP API.
type Server struct {
	Deps
	mux *http.ServeMux

	// bg scopes work that outlives its request, such as background
	// session checks. It is cancelled by Close.
	bg       context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New creates a Server and registers routes.
func New(d Deps) *Server {
	bg, cancel := context.WithCancel(context.Background())
	srv := &Server{Deps: d, mux: http.NewServeMux(), bg: bg, bgCancel: cancel}
	srv.routes()
	return srv
}

// Close cancels background work started by requests and waits for it to
// return.
func (s *Server) Close() {
	s.bgCancel()
	s.bgWG.Wait()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	// Sessions
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("POST /api/sessions/{id}/check", s.handleCheckSession)
	s.mux.HandleFunc("GET /api/sessions/{id}/channels", s.handleSessionChannels)
	s.mux.HandleFunc("GET /api/sessions/{id}/groups", s.handleSessionGroups)
	s.mux.HandleFunc("GET /api/sessions/{id}/export.m3u", s.handleSessionExportM3U)
	s.mux.HandleFunc("GET /api/sessions/{id}/export.json", s.handleSessionExportJSON)

	if s.Store != nil {
		s.mux.HandleFunc("GET /api/sources", s.handleListSources)
		s.mux.HandleFunc("POST /api/sources", s.handleAddSource)
		s.mux.HandleFunc("GET /api/sources/{id}", s.handleGetSource)
		s.mux.HandleFunc("DELETE /api/sources/{id}", s.handleDeleteSource)
		s.mux.HandleFunc("POST /api/sources/{id}/refresh", s.handleRefreshSource)
		s.mux.HandleFunc("POST /api/sources/{id}/check", s.handleCheckSource)
		s.mux.HandleFunc("GET /api/sources/{id}/export.m3u", s.handleSourceExportM3U)
		s.mux.HandleFunc("GET /api/channels", s.handleListChannels)
		s.mux.HandleFunc("GET /api/groups", s.handleListGroups)
	}

	// Docs
	s.mux.HandleFunc("GET /api/docs", handleSwaggerUI)
	s.mux.HandleFunc("GET /api/docs/openapi.yaml", handleOpenAPISpec)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handler returns the mux wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return withCORS(withLogging(s))
}

// ListenAndServe starts the HTTP server on the configured port.
// It blocks until the server is shut down or ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := ":" + s.Config.ServerPort
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
		s.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"sessions":   s.Sessions.Len(),
		"sources":    s.Store != nil,
		"queued":     s.Dispatcher != nil && s.Dispatcher.Queued(),
		"check_mode": s.Checker.Strategy().Name(),
	})
}
