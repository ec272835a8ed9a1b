// Package api exposes the conversation engine over HTTP for channel
// adapters (messenger bridges, web chat).
package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arealhq/arealbot/internal/log"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger       log.Logger
	Orchestrator Turner        // required
	Feedback     Recorder      // optional, nil disables the feedback endpoint
	Pool         *pgxpool.Pool // optional, nil degrades /readyz to liveness
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()

	mh := &messageHandler{orchestrator: cfg.Orchestrator, logger: logger}
	mux.HandleFunc("POST /api/v1/messages", mh.send)

	if cfg.Feedback != nil {
		fh := &feedbackHandler{store: cfg.Feedback, logger: logger}
		mux.HandleFunc("POST /api/v1/feedback", fh.record)
	}

	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /healthz", health(logger))
	topMux.Handle("GET /readyz", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
