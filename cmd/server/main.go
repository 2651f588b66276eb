// Package main is the entry point for the glasshouse analysis service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/glasshouse-ai/glasshouse/internal/api"
	"github.com/glasshouse-ai/glasshouse/internal/config"
	"github.com/glasshouse-ai/glasshouse/internal/ingestion"
	"github.com/glasshouse-ai/glasshouse/internal/ranking"
	"github.com/glasshouse-ai/glasshouse/pkg/agents"
	"github.com/glasshouse-ai/glasshouse/pkg/embedding"
	"github.com/glasshouse-ai/glasshouse/pkg/generative"
	"github.com/glasshouse-ai/glasshouse/pkg/models"
	"github.com/glasshouse-ai/glasshouse/pkg/observability"
	"github.com/glasshouse-ai/glasshouse/pkg/resilience"
	"github.com/glasshouse-ai/glasshouse/pkg/scoring"
	"github.com/glasshouse-ai/glasshouse/pkg/vectorstore"
)

var (
	// Version information (set via ldflags during build)
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		configPath  = flag.String("config", "", "Path to configuration file")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("Glasshouse\nVersion: %s\nBuild Time: %s\nGit Commit: %s\n",
			version, buildTime, gitCommit)
		os.Exit(0)
	}

	logger := observability.NewStandardLogger("glasshouse")
	logger.Info("Starting glasshouse", map[string]interface{}{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
	})

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger = logger.WithLevel(observability.ParseLevel(cfg.Service.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	metrics := observability.NewMetrics(nil)
	hooks := resilience.GuardHooks{
		OnBreakerStateChange: metrics.SetCircuitBreakerState,
		OnRateLimited:        metrics.RecordRateLimitHit,
	}

	// Evidence store. The postgres driver also enables analysis
	// persistence and rankings; the memory driver serves single-process
	// development without either.
	var (
		db            *sqlx.DB
		store         vectorstore.Store
		resultSink    api.ResultSink
		rankingSource api.RankingSource
	)
	switch cfg.Vector.Driver {
	case config.VectorDriverPostgres:
		db, err = connectDatabase(ctx, cfg.Database, logger)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("Failed to close database connection", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}()
		store = vectorstore.NewPostgresStore(db, models.EmbeddingDimension, metrics, logger)
		resultSink = ranking.NewResultRepository(db, logger)
		rankingSource = ranking.NewSnapshotRepository(db, logger)
	case config.VectorDriverMemory:
		logger.Warn("Using in-memory vector store; documents and rankings do not survive restarts", nil)
		store = vectorstore.NewMemoryStore(models.EmbeddingDimension)
	default:
		log.Fatalf("Unknown vector driver: %q", cfg.Vector.Driver)
	}

	redisClient := connectRedis(ctx, cfg.Redis, logger)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("Failed to close redis connection", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}()
	}

	embedder, err := buildEmbeddingService(cfg, redisClient, hooks, metrics, logger)
	if err != nil {
		log.Fatalf("Failed to create embedding service: %v", err)
	}

	generator, err := buildGenerativeService(cfg, hooks, metrics, logger)
	if err != nil {
		log.Fatalf("Failed to create generative service: %v", err)
	}

	investigator := agents.NewInvestigator(embedder, store, generator, cfg.Pipeline, logger)
	forensic := agents.NewForensic(embedder, store, generator, cfg.Pipeline, logger)
	synthesizer := agents.NewSynthesizer(generator, logger)
	orchestrator := agents.NewOrchestrator(store, investigator, forensic, synthesizer, cfg.Pipeline, metrics, logger)

	ingestor := ingestion.NewService(embedder, store, ingestion.Options{
		Concurrency:  cfg.Ingestion.Concurrency,
		ChunkSize:    cfg.Ingestion.ChunkSize,
		ChunkOverlap: cfg.Ingestion.ChunkOverlap,
		MaxBatchSize: cfg.Ingestion.MaxBatchSize,
	}, metrics, logger)

	engine := scoring.NewEngine(cfg.Scoring)
	handler := api.NewHandler(ingestor, orchestrator, resultSink, rankingSource, engine, cfg.Stream, metrics, logger)

	if cfg.Service.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(handler, metrics, logger)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.Port),
		Handler: router,
	}
	go func() {
		logger.Info("Starting API server", map[string]interface{}{
			"port":   cfg.Service.Port,
			"driver": cfg.Vector.Driver,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("API server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	sig := <-sigChan
	logger.Info("Received shutdown signal", map[string]interface{}{
		"signal": sig.String(),
	})

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown API server", map[string]interface{}{
			"error": err.Error(),
		})
	}

	cancel()
	logger.Info("Shutdown complete", nil)
}

// connectDatabase establishes a database connection with retry logic.
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig, logger observability.Logger) (*sqlx.DB, error) {
	logger.Info("Connecting to database", map[string]interface{}{
		"host":     cfg.Host,
		"database": cfg.Database,
	})

	retryCfg := resilience.RetryConfig{
		MaxRetries:      10,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  2 * time.Minute,
	}
	db, err := resilience.RetryWithResult(ctx, retryCfg, logger, func() (*sqlx.DB, error) {
		return sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	})
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	logger.Info("Database connection established", nil)
	return db, nil
}

// connectRedis dials the optional L2 cache tier. A missing or unhealthy
// Redis degrades the embedding cache to in-process only.
func connectRedis(ctx context.Context, cfg config.RedisConfig, logger observability.Logger) *redis.Client {
	if !cfg.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.Database,
		DialTimeout: cfg.DialTimeout,
		PoolSize:    cfg.PoolSize,
	})

	pingCtx, pingCancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unavailable, embedding cache degrades to in-process only", map[string]interface{}{
			"address": cfg.Address,
			"error":   err.Error(),
		})
		_ = client.Close()
		return nil
	}

	logger.Info("Redis connection established", map[string]interface{}{
		"address": cfg.Address,
	})
	return client
}

func buildEmbeddingService(cfg *config.Config, redisClient *redis.Client, hooks resilience.GuardHooks, metrics *observability.Metrics, logger observability.Logger) (*embedding.Service, error) {
	var provider embedding.Provider
	switch cfg.Embedding.Provider {
	case config.ProviderGoogle:
		p, err := embedding.NewGoogleProvider(embedding.Config{
			APIKey:         cfg.Embedding.APIKey,
			Model:          cfg.Embedding.Model,
			Endpoint:       cfg.Embedding.Endpoint,
			RequestTimeout: cfg.Embedding.RequestTimeout,
		})
		if err != nil {
			return nil, err
		}
		provider = p
	case config.ProviderMock:
		logger.Warn("Using mock embedding provider", nil)
		provider = embedding.NewMockProvider(models.EmbeddingDimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Embedding.Provider)
	}

	cache, err := embedding.NewCache(cfg.Embedding.Cache, redisClient, metrics, logger)
	if err != nil {
		return nil, err
	}

	guardCfg := resilience.DefaultGuardConfig("embedding")
	guardCfg.Retry.MaxRetries = cfg.Embedding.MaxRetries
	guardCfg.Limiter.RequestsPerSecond = cfg.Embedding.RateLimitRPS
	guardCfg.Limiter.BurstSize = cfg.Embedding.Burst
	guard := resilience.NewGuard(guardCfg, logger, hooks)

	return embedding.NewService(provider, cache, guard, metrics, logger), nil
}

func buildGenerativeService(cfg *config.Config, hooks resilience.GuardHooks, metrics *observability.Metrics, logger observability.Logger) (*generative.Service, error) {
	var gen generative.Generator
	switch cfg.Generative.Provider {
	case config.ProviderGoogle:
		g, err := generative.NewGoogleGenerator(generative.Config{
			APIKey:          cfg.Generative.APIKey,
			Model:           cfg.Generative.Model,
			Endpoint:        cfg.Generative.Endpoint,
			RequestTimeout:  cfg.Generative.RequestTimeout,
			Temperature:     cfg.Generative.Temperature,
			MaxOutputTokens: cfg.Generative.MaxOutputTokens,
		})
		if err != nil {
			return nil, err
		}
		gen = g
	case config.ProviderMock:
		logger.Warn("Using mock generative provider", nil)
		gen = generative.NewMockGenerator()
	default:
		return nil, fmt.Errorf("unknown generative provider: %q", cfg.Generative.Provider)
	}

	guardCfg := resilience.DefaultGuardConfig("generative")
	guardCfg.Retry.MaxRetries = cfg.Generative.MaxRetries
	guardCfg.Limiter.RequestsPerSecond = cfg.Generative.RateLimitRPS
	guardCfg.Limiter.BurstSize = cfg.Generative.Burst
	guard := resilience.NewGuard(guardCfg, logger, hooks)

	return generative.NewService(gen, guard, metrics, logger), nil
}
