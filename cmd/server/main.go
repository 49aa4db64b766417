package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sigma-sports/gamification/internal/achievement"
	"github.com/sigma-sports/gamification/internal/aggregate"
	"github.com/sigma-sports/gamification/internal/config"
	"github.com/sigma-sports/gamification/internal/handler"
	"github.com/sigma-sports/gamification/internal/kafka"
	"github.com/sigma-sports/gamification/internal/ledger"
	"github.com/sigma-sports/gamification/internal/logger"
	"github.com/sigma-sports/gamification/internal/pipeline"
	"github.com/sigma-sports/gamification/internal/ranking"
	"github.com/sigma-sports/gamification/internal/redis"
	"github.com/sigma-sports/gamification/internal/service"
	"github.com/sigma-sports/gamification/internal/store"
	"github.com/sigma-sports/gamification/internal/websocket"
	"github.com/sigma-sports/gamification/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, cfgErr := config.Load(*configPath)
	if cfgErr != nil {
		cfg = config.DefaultConfig()
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfgErr != nil {
		log.Warn("failed to load config file, using defaults", "path", *configPath, "error", cfgErr)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	log.Info("connecting to database", "driver", cfg.Database.Driver, "database", cfg.Database.Name)
	st, err := store.Open(&cfg.Database, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.RunMigrations(ctx); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Achievement catalog, validated before anything is written
	catalog, err := achievement.CatalogFromConfig(cfg.Achievements)
	if err != nil {
		log.Error("invalid achievement catalog", "error", err)
		os.Exit(1)
	}
	log.Info("achievement catalog loaded", "version", catalog.Version, "achievements", len(catalog.Definitions))

	// Write chain
	updater := aggregate.NewUpdater(st, log)
	chain := pipeline.New(
		ledger.NewWriter(st, log),
		updater,
		achievement.NewEvaluator(st, catalog, log),
		log,
	)

	ranker := ranking.NewRanker(st, cfg.Leaderboard, log)

	// Optional Redis snapshot cache
	if cfg.Redis.Enabled {
		log.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		client, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn("failed to connect to Redis, continuing without snapshot cache", "error", err)
		} else {
			cache := redis.NewSnapshotCache(client, &cfg.Redis)
			defer cache.Close()
			ranker.WithCache(cache)
			log.Info("connected to Redis")
		}
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(log)
	go wsHub.Run()

	svc := service.NewGamificationService(st, chain, ranker, catalog, cfg, log)
	svc.SetHub(wsHub)

	// Aggregate reconciler
	reconciler := worker.NewReconciler(st, updater, ranker, &cfg.Reconcile, log)
	if cfg.Reconcile.Enabled {
		if err := reconciler.Start(ctx); err != nil {
			log.Error("failed to start reconciler", "error", err)
			os.Exit(1)
		}
	}

	// Kafka consumer for domain events
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		log.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		consumer, err = kafka.NewConsumer(&cfg.Kafka, svc, log)
		if err != nil {
			log.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else if err := consumer.Start(); err != nil {
			log.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
			consumer = nil
		}
	}

	httpHandler := handler.NewHandler(svc, wsHub, cfg.Leaderboard.DefaultPerPage, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	// Stop ingestion first so no write lands after the server is gone
	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			log.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown server", "error", err)
	}

	wsHub.Stop()

	if err := reconciler.Stop(); err != nil {
		log.Error("failed to stop reconciler", "error", err)
	}

	log.Info("server stopped")
}
