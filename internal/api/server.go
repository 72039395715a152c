// Package api exposes the HTTP interface for the book service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/arct1cx/bookfetch/internal/books"
	"github.com/arct1cx/bookfetch/internal/clock"
	"github.com/arct1cx/bookfetch/internal/config"
	"github.com/arct1cx/bookfetch/internal/metrics"
	"github.com/arct1cx/bookfetch/internal/proxy"
	"github.com/arct1cx/bookfetch/internal/ratelimit"
)

// Searcher runs one discovery query across the source chain.
type Searcher interface {
	Search(ctx context.Context, query string) ([]books.Candidate, error)
}

// Retriever resolves a reference and starts the streamed retrieval.
type Retriever interface {
	Fetch(ctx context.Context, reference string) (*proxy.Outcome, error)
}

// Server wires HTTP handlers to the discovery and retrieval pipelines.
type Server struct {
	router          chi.Router
	searcher        Searcher
	retriever       Retriever
	searchLimiter   *ratelimit.Limiter
	downloadLimiter *ratelimit.Limiter
	clock           clock.Clock
	logger          *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	searcher Searcher,
	retriever Retriever,
	searchLimiter *ratelimit.Limiter,
	downloadLimiter *ratelimit.Limiter,
	clk clock.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	metrics.Init()

	s := &Server{
		searcher:        searcher,
		retriever:       retriever,
		searchLimiter:   searchLimiter,
		downloadLimiter: downloadLimiter,
		clock:           clk,
		logger:          logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{"Content-Disposition", "Content-Type", "Content-Length"},
	}))

	r.Get("/api/health", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Search responses are small JSON bodies, so a server-side timeout is
	// safe here. The download route streams and must not be buffered by
	// TimeoutHandler; its deadline lives in the proxy.
	r.With(timeoutMiddleware(30 * time.Second)).Get("/api/search", s.search)
	r.Get("/api/download", s.download)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": s.clock.Now().Format(time.RFC3339),
		"service":   "bookfetch",
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, errLabel, message string) {
	s.writeJSON(w, status, map[string]string{"error": errLabel, "message": message})
}
