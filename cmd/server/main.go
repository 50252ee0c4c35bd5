package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/txfeed/service/backend"
	"github.com/brojonat/txfeed/service/cache"
	"github.com/brojonat/txfeed/service/config"
	"github.com/brojonat/txfeed/service/db"
	"github.com/brojonat/txfeed/service/metrics"
	natspkg "github.com/brojonat/txfeed/service/nats"
	"github.com/brojonat/txfeed/service/reconcile"
	"github.com/brojonat/txfeed/service/server"
	"github.com/brojonat/txfeed/service/solana"
	"github.com/brojonat/txfeed/service/temporal"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	// Fails fast if any required config is missing or invalid.
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"network", cfg.Network,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	store := db.NewStore(dbPool, metricsCollector)
	if err := store.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if err := store.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	endpoint, err := solana.SelectRandomEndpoint(cfg.SolanaRPCURLs)
	if err != nil {
		logger.Error("failed to select solana endpoint", "error", err)
		os.Exit(1)
	}
	solanaClient := solana.NewClient(solana.NewRPCClient(endpoint), endpoint, metricsCollector, logger,
		solana.WithConcurrency(cfg.FetchConcurrency),
	)
	logger.Info("initialized solana RPC client", "total_endpoints", len(cfg.SolanaRPCURLs))

	deps := reconcile.Deps{
		Signatures:   solanaClient,
		Transactions: solanaClient,
		Orders:       backend.NewClient(cfg.BackendURL, cfg.BackendAPIKey, nil, metricsCollector, logger),
		Store:        store,
		Metrics:      metricsCollector,
		Logger:       logger,
	}

	if cfg.RedisURL != "" {
		rdb, err := cache.NewClient(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to create redis client", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		deps.Cache = cache.New(rdb, cfg.Network, cfg.CacheTTL, metricsCollector, logger)
		logger.Info("activity cache enabled", "ttl", cfg.CacheTTL)
	}

	publisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
	if err != nil {
		logger.Error("failed to create NATS publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()
	deps.Publisher = publisher

	// The server streams events; a missing subscriber only disables streaming.
	var subscriber server.StatusSubscriber
	sub, err := natspkg.NewSubscriber(cfg.NATSURL, "txfeed-sse", logger)
	if err != nil {
		logger.Warn("failed to connect NATS subscriber, streaming disabled", "error", err)
	} else {
		defer sub.Close()
		subscriber = sub
	}
	logger.Info("connected to NATS", "url", cfg.NATSURL)

	engine := reconcile.NewEngine(deps, reconcile.Options{
		Network:        cfg.Profile.ClassifyContext(""),
		SignatureLimit: cfg.SignatureLimit,
	})

	temporalClient, err := temporal.NewClient(
		cfg.TemporalHost,
		cfg.TemporalNamespace,
		cfg.TemporalTaskQueue,
		cfg.Network,
		logger,
	)
	if err != nil {
		logger.Error("failed to create temporal client", "error", err)
		os.Exit(1)
	}
	defer temporalClient.Close()

	httpServer := server.New(cfg.ServerAddr, cfg, engine, temporalClient, subscriber, metricsCollector, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
