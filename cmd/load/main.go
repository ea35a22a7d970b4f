// Package main loads a JSON or NDJSON tick file into the PostgreSQL tick history.
package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"trendline-lab/internal/config"
	"trendline-lab/internal/domain"
	"trendline-lab/internal/ingestion"
	"trendline-lab/internal/normalization"
	"trendline-lab/internal/storage"
	"trendline-lab/internal/storage/migrations"
	pgstore "trendline-lab/internal/storage/postgres"
)

func main() {
	config.LoadEnvFile(".env")

	input := flag.String("input", "", "JSON or NDJSON tick file (required)")
	instrument := flag.String("instrument", "", "Instrument assigned to ticks without one")
	postgresDSN := flag.String("postgres-dsn", config.EnvOr("POSTGRES_DSN", ""), "PostgreSQL connection string (required)")
	batchSize := flag.Int("batch-size", 5000, "Ticks per insert batch")
	migrate := flag.Bool("migrate", config.EnvBool("MIGRATE", false), "Run database migrations first")
	devLog := flag.Bool("dev-log", config.EnvBool("DEV_LOG", false), "Human readable debug logging")

	flag.Parse()

	logger, err := config.NewLogger(*devLog, "load")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if *input == "" {
		logger.Fatal("--input is required")
	}
	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticks, err := ingestion.ReadTicksFile(*input, *instrument)
	if err != nil {
		logger.Fatal("failed to read input", zap.Error(err))
	}
	if err := validateOrdering(ticks); err != nil {
		logger.Fatal("input rejected", zap.Error(err))
	}

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatal("connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if *migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatal("postgres migrations", zap.Error(err))
		}
	}

	loaded, err := load(ctx, pgstore.NewTickStore(pool), ticks, *batchSize)
	if err != nil {
		logger.Fatal("load failed", zap.Int("loaded", loaded), zap.Error(err))
	}

	logger.Info("load complete", zap.String("input", *input), zap.Int("ticks", loaded))
}

// validateOrdering checks that the ticks of every instrument are non-decreasing in time.
func validateOrdering(ticks []domain.Tick) error {
	byInstrument := make(map[string][]domain.Tick)
	for _, t := range ticks {
		if t.Instrument == "" {
			return fmt.Errorf("tick at %d has no instrument: %w", t.TimestampMs, storage.ErrInvalidInput)
		}
		byInstrument[t.Instrument] = append(byInstrument[t.Instrument], t)
	}
	for inst, group := range byInstrument {
		if err := normalization.ValidateTickOrdering(group); err != nil {
			return fmt.Errorf("instrument %s: %w", inst, err)
		}
	}
	return nil
}

// load inserts ticks in batches and returns how many were written.
func load(ctx context.Context, store storage.TickStore, ticks []domain.Tick, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = len(ticks)
	}

	loaded := 0
	for start := 0; start < len(ticks); start += batchSize {
		end := min(start+batchSize, len(ticks))

		batch := make([]*domain.Tick, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, &ticks[i])
		}
		if err := store.InsertBulk(ctx, batch); err != nil {
			return loaded, fmt.Errorf("insert batch at %d: %w", start, err)
		}
		loaded += len(batch)
	}
	return loaded, nil
}
