// Kestrel - AI-powered fraud detection and assistant microservice.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/artifact"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/chat"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/enrich"
	"github.com/opensource-finance/kestrel/internal/fraud"
	"github.com/opensource-finance/kestrel/internal/nlp"
	"github.com/opensource-finance/kestrel/internal/policy"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := loadConfig()

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Artifact Store
	artifacts, err := artifact.NewFileStore(cfg.Models.ArtifactDir)
	if err != nil {
		slog.Error("failed to initialize artifact store", "error", err)
		os.Exit(1)
	}

	// Initialize Fraud Service (loads or trains the model set)
	fraudSvc, err := fraud.NewService(cfg.Models, cacheImpl, repo, busImpl, artifacts, logger)
	if err != nil {
		slog.Error("failed to initialize fraud service", "error", err)
		os.Exit(1)
	}
	slog.Info("fraud service initialized",
		"training_samples", cfg.Models.TrainingSamples,
		"trees", cfg.Models.Trees,
	)

	// Initialize NLP and Chat services
	nlpSvc := nlp.NewService(logger)
	chatSvc := chat.NewService(cfg.Chat, cacheImpl, nlpSvc, logger)

	// Initialize Policy Engine and load policies from the database.
	// Policies are configured via POST /policies - no hardcoded defaults.
	engine, err := policy.NewEngine(logger)
	if err != nil {
		slog.Error("failed to initialize policy engine", "error", err)
		os.Exit(1)
	}
	if err := engine.Reload(ctx, repo); err != nil {
		slog.Warn("failed to load policies from database", "error", err)
	}
	slog.Info("policy engine initialized", "policies_count", engine.Count())

	// Initialize optional GeoIP enrichment
	enricher, err := enrich.NewGeoIP(cfg.GeoIP, logger)
	if err != nil {
		slog.Error("failed to open GeoIP database", "error", err)
		os.Exit(1)
	}
	if enricher != nil {
		defer enricher.Close()
		slog.Info("geoip enrichment enabled", "db", cfg.GeoIP.CityDBPath)
	}

	// Initialize alert dispatcher
	dispatcher := worker.NewDispatcher(repo, busImpl, engine, logger)
	if err := dispatcher.Start(ctx); err != nil {
		slog.Error("failed to start alert dispatcher", "error", err)
		os.Exit(1)
	}
	slog.Info("alert dispatcher started")

	// Initialize Server
	srv := api.NewServer(cfg, fraudSvc, chatSvc, nlpSvc, engine, enricher, repo, cacheImpl, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	if err := dispatcher.Stop(); err != nil {
		slog.Error("failed to stop alert dispatcher", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// loadConfig builds the runtime configuration from the tier defaults and
// KESTREL_* environment overrides.
func loadConfig() *domain.Config {
	cfg := domain.DefaultConfig()
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	if v := os.Getenv("KESTREL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		} else {
			slog.Warn("ignoring invalid KESTREL_PORT", "value", v)
		}
	}
	if v := os.Getenv("KESTREL_DB_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("KESTREL_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("KESTREL_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("KESTREL_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("KESTREL_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("KESTREL_MODEL_DIR"); v != "" {
		cfg.Models.ArtifactDir = v
	}
	if v := os.Getenv("KESTREL_OPENAI_API_KEY"); v != "" {
		cfg.Chat.OpenAIKey = v
	}
	if v := os.Getenv("KESTREL_GEOIP_DB"); v != "" {
		cfg.GeoIP.CityDBPath = v
	}
	cfg.Auth.Secret = os.Getenv("KESTREL_AUTH_SECRET")
	cfg.Auth.AdminToken = os.Getenv("KESTREL_ADMIN_TOKEN")

	return cfg
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🪶 KESTREL                  ║")
	fmt.Println("  ║     AI Fraud Detection & Assistant        ║")
	fmt.Println("  ║      Sharp eyes on every payment.         ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /fraud/detect                    - Score a transaction")
	fmt.Println("    POST /fraud/batch-analyze             - Score a batch of transactions")
	fmt.Println("    GET  /fraud/analyses/{id}             - Get a stored analysis")
	fmt.Println("    GET  /fraud/users/{id}/risk-profile   - Get a user risk profile")
	fmt.Println("    GET  /fraud/alerts                    - List recent alerts")
	fmt.Println("    POST /chat                            - Chat with the assistant")
	fmt.Println("    POST /chat/intent                     - Detect message intent")
	fmt.Println("    POST /analyze/transaction             - Categorize a transaction")
	fmt.Println("    POST /analyze/sentiment               - Analyze text sentiment")
	fmt.Println("    POST /extract/entities                - Extract typed entities")
	fmt.Println("    POST /summarize                       - Summarize a text")
	fmt.Println("    GET  /models/status                   - Model readiness")
	fmt.Println("    POST /models/retrain                  - Retrain the models")
	fmt.Println("    GET  /policies                        - List escalation policies")
	fmt.Println("    POST /policies                        - Create an escalation policy")
	fmt.Println("    GET  /health                          - Health check")
	fmt.Println()
}
