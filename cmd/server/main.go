package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/recallhq/deepmemory/internal/analysis"
	"github.com/recallhq/deepmemory/internal/api"
	"github.com/recallhq/deepmemory/internal/config"
	"github.com/recallhq/deepmemory/internal/embedding"
	"github.com/recallhq/deepmemory/internal/graphstore"
	"github.com/recallhq/deepmemory/internal/ratelimit"
	"github.com/recallhq/deepmemory/internal/retrieval"
	"github.com/recallhq/deepmemory/internal/sensitive"
	"github.com/recallhq/deepmemory/internal/store"
	"github.com/recallhq/deepmemory/internal/updater"
	"github.com/recallhq/deepmemory/internal/vectorstore"
)

func main() {
	// Logger
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// SQLite (embedding cache + audit log)
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	embCacheStore := store.NewEmbeddingCacheStore(db)
	auditStore := store.NewAuditStore(db)

	// Embedding provider with cache
	var provider embedding.Embedder
	var providerHealth api.HealthChecker
	switch cfg.EmbeddingProvider {
	case "openai":
		oc := embedding.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
		provider, providerHealth = oc, oc
	default:
		oc := embedding.NewOllamaClient(cfg.OllamaBaseURL, cfg.EmbeddingModel)
		provider, providerHealth = oc, oc
	}
	embedder := embedding.NewCachedEmbedder(provider, embCacheStore, cfg.EmbeddingModel, cfg.EmbeddingDim)

	// External stores
	qdrantClient := vectorstore.NewQdrantClient(cfg.QdrantURL, cfg.QdrantCollection, cfg.EmbeddingDim)
	graphClient := graphstore.NewNeo4jClient(cfg.GraphURL, cfg.GraphDatabase, cfg.GraphUser, cfg.GraphPassword)

	startupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := qdrantClient.HealthCheck(startupCtx); err != nil {
		logger.Warn("qdrant not available at startup, will retry on first use", "error", err)
	} else if err := qdrantClient.EnsureCollection(startupCtx); err != nil {
		logger.Warn("failed to create qdrant collection", "error", err)
	}
	if err := graphClient.HealthCheck(startupCtx); err != nil {
		logger.Warn("graph store not available at startup, will retry on first use", "error", err)
	}
	cancel()

	// Ingestion pipeline
	analyzer := analysis.NewAnalyzer()
	filter := sensitive.NewFilter(cfg.SensitiveRulesetVersion, cfg.SensitiveDenyRules, cfg.SensitiveAllowRules)
	upd := updater.New(updater.Config{
		ImportanceThreshold:    cfg.ImportanceThreshold,
		MinSemanticScore:       cfg.MinSemanticScore,
		DedupeScore:            cfg.DedupeScore,
		RelatedTopK:            cfg.RelatedTopK,
		MaxMemoriesPerUpdate:   cfg.MaxMemoriesPerUpdate,
		SensitiveFilterEnabled: cfg.SensitiveFilterEnabled,
		EmbedConcurrency:       cfg.EmbedConcurrency,
	}, analyzer, filter, embedder, qdrantClient, graphClient, logger)

	retriever := retrieval.NewRetriever(embedder, qdrantClient, graphClient, cfg.SemanticWeight, cfg.RelationWeight, logger)

	// Transport
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), cfg.RateLimitPerMinute, time.Minute)
	updateTimeout := time.Duration(cfg.UpdateTimeoutSeconds) * time.Second
	router := api.NewRouter(api.RouterDeps{
		Memory:  api.NewMemoryHandler(upd, retriever, updateTimeout, logger),
		Health:  api.NewHealthHandler(db, providerHealth, qdrantClient, graphClient),
		Audit:   auditStore,
		Limiter: limiter,
		APIKey:  cfg.APIKey,
		Logger:  logger,
	})

	// Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("deepmemory server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
