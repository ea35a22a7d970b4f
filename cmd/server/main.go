// Package main runs the live service:
// websocket feeds → orchestrator → sinks (postgres, clickhouse, redis), plus the read API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trendline-lab/internal/api"
	"trendline-lab/internal/config"
	"trendline-lab/internal/ingestion"
	"trendline-lab/internal/observability"
	"trendline-lab/internal/orchestrator"
)

func main() {
	// Load .env file if exists
	config.LoadEnvFile(".env")

	// Parse flags (env vars as defaults)
	wsEndpoints := flag.String("ws-endpoint", config.EnvOr("WS_ENDPOINT", ""), "Comma-separated websocket tick feed endpoints")
	instrument := flag.String("instrument", config.EnvOr("INSTRUMENT", ""), "Instrument assigned to ticks without one")
	subscribe := flag.String("subscribe", config.EnvOr("WS_SUBSCRIBE", ""), "Message sent after each websocket connect")
	windowLength := flag.Duration("window-length", config.EnvDuration("WINDOW_LENGTH", time.Hour), "Regression window length")
	warmupTicks := flag.Int("warmup-ticks", config.EnvInt("WARMUP_TICKS", orchestrator.DefaultWarmupTicks), "Ticks buffered before a stream is initialized")
	httpAddr := flag.String("http-addr", config.EnvOr("HTTP_ADDR", ":8080"), "HTTP address for the API and /metrics")
	postgresDSN := flag.String("postgres-dsn", config.EnvOr("POSTGRES_DSN", ""), "PostgreSQL connection string (tick history)")
	clickhouseDSN := flag.String("clickhouse-dsn", config.EnvOr("CLICKHOUSE_DSN", ""), "ClickHouse connection string (published entries)")
	redisAddr := flag.String("redis-addr", config.EnvOr("REDIS_ADDR", ""), "Redis address (latest entries)")
	redisPassword := flag.String("redis-password", config.EnvOr("REDIS_PASSWORD", ""), "Redis password")
	redisDB := flag.Int("redis-db", config.EnvInt("REDIS_DB", 0), "Redis database")
	migrate := flag.Bool("migrate", config.EnvBool("MIGRATE", false), "Run database migrations on startup")
	useMemory := flag.Bool("use-memory", config.EnvBool("USE_MEMORY", false), "Use in-memory storage instead of external stores")
	devLog := flag.Bool("dev-log", config.EnvBool("DEV_LOG", false), "Human readable debug logging")

	flag.Parse()

	logger, err := config.NewLogger(*devLog, "server")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Validate required flags
	endpoints := config.SplitList(*wsEndpoints)
	if len(endpoints) == 0 {
		logger.Fatal("--ws-endpoint is required")
	}
	if *windowLength < time.Millisecond {
		logger.Fatal("--window-length must be at least 1ms", zap.Duration("window_length", *windowLength))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics("", prometheus.DefaultRegisterer)

	stores, err := openStores(ctx, storeConfig{
		postgresDSN:   *postgresDSN,
		clickhouseDSN: *clickhouseDSN,
		redisAddr:     *redisAddr,
		redisPassword: *redisPassword,
		redisDB:       *redisDB,
		migrate:       *migrate,
		useMemory:     *useMemory,
	}, logger)
	if err != nil {
		logger.Fatal("failed to open stores", zap.Error(err))
	}
	defer stores.close()

	orch, err := orchestrator.New(orchestrator.Options{
		WindowLengthMs: windowLength.Milliseconds(),
		WarmupTicks:    *warmupTicks,
		Sinks:          stores.sinks,
		Logger:         logger.Named("orchestrator"),
		Metrics:        metrics,
	})
	if err != nil {
		logger.Fatal("invalid orchestrator options", zap.Error(err))
	}

	sources := make([]ingestion.TickSource, 0, len(endpoints))
	for _, endpoint := range endpoints {
		cfg := ingestion.DefaultWSConfig()
		cfg.Instrument = *instrument
		if *subscribe != "" {
			cfg.Subscribe = []byte(*subscribe)
		}
		sources = append(sources, ingestion.NewWSSource(endpoint, cfg, logger.Named("ws"), metrics))
	}

	server := api.New(api.Options{
		Streams:        orch,
		Latest:         stores.sinks.Latest,
		History:        stores.sinks.Entries,
		MetricsHandler: observability.Handler(),
		Logger:         logger.Named("api"),
	})
	httpServer := &http.Server{
		Addr:              *httpAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting",
		zap.Strings("endpoints", endpoints),
		zap.Duration("window_length", *windowLength),
		zap.Int("warmup_ticks", *warmupTicks),
		zap.String("http_addr", *httpAddr),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return orch.Run(gctx, ingestion.NewMultiSource(sources...))
	})
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
