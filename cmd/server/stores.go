package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"trendline-lab/internal/orchestrator"
	chstore "trendline-lab/internal/storage/clickhouse"
	"trendline-lab/internal/storage/memory"
	"trendline-lab/internal/storage/migrations"
	pgstore "trendline-lab/internal/storage/postgres"
	redisstore "trendline-lab/internal/storage/redis"
)

type storeConfig struct {
	postgresDSN   string
	clickhouseDSN string
	redisAddr     string
	redisPassword string
	redisDB       int
	migrate       bool
	useMemory     bool
}

// openedStores holds the sinks and the cleanup of their connections.
type openedStores struct {
	sinks   orchestrator.Sinks
	closers []func()
}

func (s *openedStores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores connects every configured store. Unconfigured stores stay nil and are skipped.
func openStores(ctx context.Context, cfg storeConfig, logger *zap.Logger) (*openedStores, error) {
	stores := &openedStores{}

	if cfg.useMemory {
		stores.sinks = orchestrator.Sinks{
			Ticks:   memory.NewTickStore(),
			Entries: memory.NewEntryStore(),
			Latest:  memory.NewLatestEntryStore(0),
		}
		logger.Info("using in-memory stores")
		return stores, nil
	}

	if cfg.postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.postgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		stores.closers = append(stores.closers, pool.Close)

		if cfg.migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				stores.close()
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
		}
		stores.sinks.Ticks = pgstore.NewTickStore(pool)
		logger.Info("tick history enabled", zap.String("store", "postgres"))
	}

	if cfg.clickhouseDSN != "" {
		var (
			conn *chstore.Conn
			err  error
		)
		if cfg.migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.clickhouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.clickhouseDSN)
		}
		if err != nil {
			stores.close()
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		stores.closers = append(stores.closers, func() { conn.Close() })
		stores.sinks.Entries = chstore.NewEntryStore(conn)
		logger.Info("entry history enabled", zap.String("store", "clickhouse"))
	}

	if cfg.redisAddr != "" {
		client, err := redisstore.NewClient(ctx, cfg.redisAddr, cfg.redisPassword, cfg.redisDB)
		if err != nil {
			stores.close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		stores.closers = append(stores.closers, func() { client.Close() })
		stores.sinks.Latest = redisstore.NewLatestEntryStore(client, redisstore.Options{})
		logger.Info("latest entries enabled", zap.String("store", "redis"))
	}

	return stores, nil
}
