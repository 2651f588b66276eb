// Package main is the entry point for the glasshouse ranking batch.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/glasshouse-ai/glasshouse/internal/config"
	"github.com/glasshouse-ai/glasshouse/internal/ranking"
	"github.com/glasshouse-ai/glasshouse/pkg/observability"
	"github.com/glasshouse-ai/glasshouse/pkg/resilience"
	"github.com/glasshouse-ai/glasshouse/pkg/scoring"
)

// defaultSchedule reruns the batch every six hours when no schedule is
// configured.
const defaultSchedule = "@every 6h"

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
		runOnce     = flag.Bool("once", false, "Run a single ranking batch and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("Glasshouse Ranker\nVersion: %s\nBuild Time: %s\nGit Commit: %s\n",
			version, buildTime, gitCommit)
		os.Exit(0)
	}

	logger := observability.NewStandardLogger("glasshouse-ranker")
	logger.Info("Starting ranking batch", map[string]interface{}{
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

	db, err := connectDatabase(ctx, cfg.Database, logger)
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

	metrics := observability.NewMetrics(nil)
	service := ranking.NewService(
		ranking.NewResultRepository(db, logger),
		ranking.NewSnapshotRepository(db, logger),
		scoring.NewEngine(cfg.Scoring),
		cfg.Ranking.Lookback,
		metrics,
		logger,
	)

	runBatch := func() error {
		runCtx := ctx
		if cfg.Ranking.RunTimeout > 0 {
			var runCancel context.CancelFunc
			runCtx, runCancel = context.WithTimeout(ctx, cfg.Ranking.RunTimeout)
			defer runCancel()
		}
		_, err := service.Run(runCtx)
		return err
	}

	if *runOnce {
		if err := runBatch(); err != nil {
			log.Fatalf("Ranking run failed: %v", err)
		}
		logger.Info("Ranking run complete", nil)
		return
	}

	schedule := cfg.Ranking.Schedule
	if schedule == "" {
		schedule = defaultSchedule
	}

	scheduler := cron.New()
	entryID, err := scheduler.AddFunc(schedule, func() {
		if err := runBatch(); err != nil {
			logger.Error("Scheduled ranking run failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule ranking runs: %v", err)
	}

	// Refresh the snapshot immediately so a fresh deploy does not wait a
	// full interval for its first rankings.
	if err := runBatch(); err != nil {
		logger.Error("Initial ranking run failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	scheduler.Start()
	logger.Info("Ranking schedule active", map[string]interface{}{
		"schedule": schedule,
		"entry_id": entryID,
	})

	sig := <-sigChan
	logger.Info("Received shutdown signal", map[string]interface{}{
		"signal": sig.String(),
	})

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
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
