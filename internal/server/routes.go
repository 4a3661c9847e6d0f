package server

import (
	"context"
	"net/http"

	httpLogger "github.com/chi-middleware/logrus-logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"yashubustudio/semgraph/internal/config"
	"yashubustudio/semgraph/semgraph"
)

// Analyzer is the pipeline the HTTP layer drives.
type Analyzer interface {
	Analyze(ctx context.Context, raw string) (semgraph.Result, error)
}

// Create builds the HTTP server for cfg. The caller owns ListenAndServe.
func Create(cfg config.ServerConfig, analyzer Analyzer, log *logrus.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           NewRouter(cfg, analyzer, log),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter wires middleware and routes.
func NewRouter(cfg config.ServerConfig, analyzer Analyzer, log *logrus.Logger) *chi.Mux {
	router := chi.NewRouter()
	router.Use(httpLogger.Logger("router", log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	router.Use(middleware.Heartbeat("/healthz"))

	// Analysis is CPU bound; bound how many run at once.
	router.With(
		middleware.ThrottleBacklog(cfg.MaxConcurrentAnalyses, cfg.Backlog, cfg.BacklogTimeout),
	).Post("/analyze", AnalyzeHandler(analyzer, cfg.MaxBodyBytes, log))

	return router
}
