package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/kestrel/internal/chat"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/enrich"
	"github.com/opensource-finance/kestrel/internal/fraud"
	"github.com/opensource-finance/kestrel/internal/nlp"
	"github.com/opensource-finance/kestrel/internal/policy"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg *domain.Config, fraudSvc *fraud.Service, chatSvc *chat.Service, nlpSvc *nlp.Service, policies *policy.Engine, enricher *enrich.GeoIP, repo domain.Repository, cache domain.Cache, version string) *Server {
	handler := NewHandler(fraudSvc, chatSvc, nlpSvc, policies, enricher, repo, cache, version)
	router := chi.NewRouter()
	limiter := newRateLimiter()

	// Global middleware stack
	router.Use(CORSMiddleware)    // CORS for browser clients
	router.Use(RecoverMiddleware) // Recover from panics
	router.Use(TracingMiddleware) // OpenTelemetry tracing
	router.Use(LoggingMiddleware) // Request logging
	router.Use(middleware.RealIP) // Extract real IP

	// Health endpoints (no auth required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (bearer token required)
	router.Route("/", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Auth))

		// Conversational endpoints
		r.With(limiter.Limit("chat", 30)).Post("/chat", handler.Chat)
		r.With(limiter.Limit("chat_intent", 60)).Post("/chat/intent", handler.ChatIntent)
		r.Get("/chat/sessions/{id}", handler.GetSession)
		r.Delete("/chat/sessions/{id}", handler.ClearSession)

		// Fraud detection
		r.With(limiter.Limit("fraud_detect", 100)).Post("/fraud/detect", handler.FraudDetect)
		r.With(limiter.Limit("fraud_batch", 20)).Post("/fraud/batch-analyze", handler.FraudBatchAnalyze)
		r.Get("/fraud/analyses/{id}", handler.GetAnalysis)
		r.Get("/fraud/users/{id}/risk-profile", handler.RiskProfile)
		r.Get("/fraud/alerts", handler.ListAlerts)

		// Text analysis
		r.With(limiter.Limit("analyze_tx", 50)).Post("/analyze/transaction", handler.AnalyzeTransaction)
		r.With(limiter.Limit("sentiment", 100)).Post("/analyze/sentiment", handler.AnalyzeSentiment)
		r.With(limiter.Limit("entities", 100)).Post("/extract/entities", handler.ExtractEntities)
		r.With(limiter.Limit("keywords", 100)).Post("/extract/keywords", handler.ExtractKeywords)
		r.With(limiter.Limit("summarize", 30)).Post("/summarize", handler.Summarize)
		r.With(limiter.Limit("language", 100)).Post("/detect/language", handler.DetectLanguage)

		// Model management
		r.Get("/models/status", handler.ModelStatus)
		r.With(AdminMiddleware(cfg.Auth), limiter.Limit("retrain", 5)).Post("/models/retrain", handler.Retrain)

		// Policy management
		r.Get("/policies", handler.ListPolicies)
		r.With(AdminMiddleware(cfg.Auth)).Post("/policies", handler.CreatePolicy)
		r.With(AdminMiddleware(cfg.Auth)).Post("/policies/reload", handler.ReloadPolicies)
		r.With(AdminMiddleware(cfg.Auth)).Delete("/policies/{id}", handler.DeletePolicy)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg.Server,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
