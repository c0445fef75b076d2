// Package api exposes the chat backend over a JSON HTTP API.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/JoLiu-ai/agentic-chat/internal/agent/graph"
	"github.com/JoLiu-ai/agentic-chat/internal/knowledge"
	"github.com/JoLiu-ai/agentic-chat/internal/store"
	logx "github.com/JoLiu-ai/agentic-chat/pkg/logger"
)

// ServerConfig contains the dependencies of the API server.
type ServerConfig struct {
	Addr           string
	AgentModelName string           // Recorded on persisted assistant messages
	Runner         graph.Runner     // Required
	Store          *store.Store     // Required
	Knowledge      *knowledge.Store // Optional: nil disables document routes
	Pool           *pgxpool.Pool    // Optional: nil skips pg check in /ready
	Redis          *goredis.Client  // Optional: nil skips redis check in /ready
}

// Server is the JSON API HTTP server.
type Server struct {
	addr string
	mux  *http.ServeMux
}

// NewServer creates the server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Runner == nil {
		return nil, errors.New("graph runner is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}

	mux := http.NewServeMux()

	ch := &chatHandler{runner: cfg.Runner, store: cfg.Store, modelName: cfg.AgentModelName}
	mux.HandleFunc("POST /api/v1/chat", ch.send)

	sh := &sessionHandler{store: cfg.Store}
	mux.HandleFunc("GET /api/v1/sessions", sh.list)
	mux.HandleFunc("POST /api/v1/sessions", sh.create)
	mux.HandleFunc("GET /api/v1/sessions/starred", sh.listStarred)
	mux.HandleFunc("GET /api/v1/sessions/{id}", sh.get)
	mux.HandleFunc("PUT /api/v1/sessions/{id}", sh.update)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", sh.delete)
	mux.HandleFunc("GET /api/v1/sessions/{id}/messages", sh.messages)

	mh := &messageHandler{store: cfg.Store}
	mux.HandleFunc("POST /api/v1/messages", mh.create)
	mux.HandleFunc("PUT /api/v1/messages/{id}", mh.update)
	mux.HandleFunc("DELETE /api/v1/messages/{id}", mh.delete)
	mux.HandleFunc("DELETE /api/v1/messages/{id}/after", mh.deleteAfter)
	mux.HandleFunc("GET /api/v1/messages/{id}/children", mh.children)
	mux.HandleFunc("POST /api/v1/messages/{id}/feedback", mh.feedback)

	ph := &projectHandler{store: cfg.Store}
	mux.HandleFunc("GET /api/v1/projects", ph.list)
	mux.HandleFunc("POST /api/v1/projects", ph.create)
	mux.HandleFunc("GET /api/v1/projects/defaults", ph.defaults)
	mux.HandleFunc("GET /api/v1/projects/{id}", ph.get)
	mux.HandleFunc("PUT /api/v1/projects/{id}", ph.update)
	mux.HandleFunc("DELETE /api/v1/projects/{id}", ph.delete)

	rh := &routeHandler{store: cfg.Store}
	mux.HandleFunc("GET /api/v1/routes/history", rh.history)
	mux.HandleFunc("GET /api/v1/routes/stats", rh.stats)
	mux.HandleFunc("GET /api/v1/routes/session/{id}", rh.session)

	if cfg.Knowledge != nil {
		dh := &documentHandler{knowledge: cfg.Knowledge}
		mux.HandleFunc("POST /api/v1/documents", dh.ingest)
		mux.HandleFunc("GET /api/v1/documents/search", dh.search)
		mux.HandleFunc("DELETE /api/v1/documents/{id}", dh.delete)
		mux.HandleFunc("GET /api/v1/documents/stats", dh.stats)
	}

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → Routes
	// RequestID must be before Logging so request_id is available in log fields.
	var handler http.Handler = mux
	handler = loggingMiddleware()(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware()(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool, cfg.Redis))
	topMux.Handle("/", handler)

	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	return &Server{addr: addr, mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", s.addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logx.Info().Msg("HTTP server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
