// Package main replays stored ticks through the regression engine and prints a summary.
// It can also write reports and verify published sessions against the replay.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"trendline-lab/internal/config"
	"trendline-lab/internal/domain"
	"trendline-lab/internal/ingestion"
	"trendline-lab/internal/orchestrator"
	"trendline-lab/internal/replay"
	"trendline-lab/internal/storage"
	chstore "trendline-lab/internal/storage/clickhouse"
	"trendline-lab/internal/storage/memory"
	pgstore "trendline-lab/internal/storage/postgres"
)

func main() {
	config.LoadEnvFile(".env")

	// Parse flags
	instrument := flag.String("instrument", "", "Instrument to replay (empty replays every instrument)")
	fromTime := flag.String("from-time", "", "Start time (RFC3339)")
	toTime := flag.String("to-time", "", "End time (RFC3339)")
	input := flag.String("input", "", "Replay ticks from a JSON or NDJSON file instead of PostgreSQL")
	postgresDSN := flag.String("postgres-dsn", config.EnvOr("POSTGRES_DSN", ""), "PostgreSQL connection string")
	windowLength := flag.Duration("window-length", config.EnvDuration("WINDOW_LENGTH", time.Hour), "Regression window length")
	warmupTicks := flag.Int("warmup-ticks", config.EnvInt("WARMUP_TICKS", orchestrator.DefaultWarmupTicks), "Ticks buffered before a stream is initialized")
	clickhouseDSN := flag.String("clickhouse-dsn", config.EnvOr("CLICKHOUSE_DSN", ""), "ClickHouse DSN holding published entries to verify")
	reportPath := flag.String("report", "", "Write a Markdown report to this path (- for stdout)")
	sessionsCSV := flag.String("sessions-csv", "", "Write per-session CSV to this path (- for stdout)")
	entriesCSV := flag.String("entries-csv", "", "Write replayed entries as CSV to this path (- for stdout)")
	verify := flag.Bool("verify", false, "Verify every replayed session")
	verifySessions := flag.String("verify-session", "", "Comma-separated session ids to verify against --clickhouse-dsn")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	devLog := flag.Bool("dev-log", config.EnvBool("DEV_LOG", false), "Human readable debug logging")

	flag.Parse()

	logger, err := config.NewLogger(*devLog, "replay")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if *input == "" && *postgresDSN == "" {
		logger.Fatal("either --input or --postgres-dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create tick store
	var tickStore storage.TickStore
	if *input != "" {
		ticks, err := ingestion.ReadTicksFile(*input, *instrument)
		if err != nil {
			logger.Fatal("failed to read input", zap.Error(err))
		}
		store := memory.NewTickStore()
		ptrs := make([]*domain.Tick, len(ticks))
		for i := range ticks {
			ptrs[i] = &ticks[i]
		}
		if err := store.InsertBulk(ctx, ptrs); err != nil {
			logger.Fatal("failed to load input", zap.Error(err))
		}
		tickStore = store
	} else {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatal("connect to postgres", zap.Error(err))
		}
		defer pool.Close()
		tickStore = pgstore.NewTickStore(pool)
	}

	// Replayed entries are kept in memory for reports and verification
	replayed := memory.NewEntryStore()

	var stored storage.EntryStore
	if *clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatal("connect to clickhouse", zap.Error(err))
		}
		defer conn.Close()
		stored = chstore.NewEntryStore(conn)
	} else if *verifySessions != "" {
		logger.Fatal("--verify-session requires --clickhouse-dsn")
	}

	orch, err := orchestrator.New(orchestrator.Options{
		WindowLengthMs: windowLength.Milliseconds(),
		WarmupTicks:    *warmupTicks,
		Sinks:          orchestrator.Sinks{Entries: replayed},
		Logger:         logger.Named("orchestrator"),
	})
	if err != nil {
		logger.Fatal("invalid orchestrator options", zap.Error(err))
	}

	// Determine time range
	from, to, err := timeRange(*fromTime, *toTime)
	if err != nil {
		logger.Fatal("invalid time range", zap.Error(err))
	}

	engine := newStatsEngine(orch)
	runner := replay.NewRunner(tickStore)

	// Either an explicit time range (both bounds) or the full history
	switch {
	case *instrument == "":
		if from != 0 || to != 0 {
			logger.Fatal("--from-time/--to-time require --instrument")
		}
		_, err = runner.RunInstruments(ctx, engine)
	case from != 0 && to != 0:
		_, err = runner.Run(ctx, *instrument, from, to, engine)
	case from != 0 || to != 0:
		logger.Fatal("Both --from-time and --to-time must be specified together for deterministic replay")
	default:
		_, err = runner.RunAll(ctx, *instrument, engine)
	}
	if err != nil {
		logger.Fatal("replay failed", zap.Error(err))
	}

	summary := engine.Summary()

	reports := reportConfig{
		markdownPath:    *reportPath,
		sessionsCSVPath: *sessionsCSV,
		entriesCSVPath:  *entriesCSV,
		verify:          *verify,
		verifySessions:  config.SplitList(*verifySessions),
		windowLengthMs:  windowLength.Milliseconds(),
		warmupTicks:     *warmupTicks,
	}
	if reports.enabled() {
		verified, err := writeReports(ctx, reports, summary, tickStore, replayed, stored)
		if err != nil {
			logger.Fatal("report failed", zap.Error(err))
		}
		if verified != nil {
			summary.Verification = verified
			logger.Info("verification complete",
				zap.Int("entries", verified.TotalEntries),
				zap.Int("divergent", verified.DivergentEntries),
			)
		}
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(output))
	} else {
		printSummary(os.Stdout, summary)
	}

	if summary.Verification != nil && !summary.Verification.Match() {
		os.Exit(1)
	}
}

func timeRange(fromTime, toTime string) (int64, int64, error) {
	var from, to int64
	if fromTime != "" {
		t, err := time.Parse(time.RFC3339, fromTime)
		if err != nil {
			return 0, 0, fmt.Errorf("parse from-time: %w", err)
		}
		from = t.UnixMilli()
	}
	if toTime != "" {
		t, err := time.Parse(time.RFC3339, toTime)
		if err != nil {
			return 0, 0, fmt.Errorf("parse to-time: %w", err)
		}
		to = t.UnixMilli()
	}
	return from, to, nil
}

func printSummary(w io.Writer, summary ReplaySummary) {
	fmt.Fprintf(w, "\n=== Replay Summary ===\n")
	fmt.Fprintf(w, "Total Ticks:       %d\n", summary.TotalTicks)
	if summary.TotalTicks > 0 {
		fmt.Fprintf(w, "First Tick Time:   %s\n", time.UnixMilli(summary.FirstTickTime).UTC().Format(time.RFC3339))
		fmt.Fprintf(w, "Last Tick Time:    %s\n", time.UnixMilli(summary.LastTickTime).UTC().Format(time.RFC3339))
	}

	for _, s := range summary.Streams {
		fmt.Fprintf(w, "\n--- %s ---\n", s.Instrument)
		fmt.Fprintf(w, "Session:           %s\n", s.SessionID)
		fmt.Fprintf(w, "Published:         %d\n", s.Published)
		fmt.Fprintf(w, "Active/Retained:   %d/%d\n", s.ActiveEntries, s.RetainedEntries)
		fmt.Fprintf(w, "Dropped/Resets:    %d/%d\n", s.Dropped, s.Resets)
		if s.Latest == nil {
			fmt.Fprintf(w, "Latest:            warming up\n")
			continue
		}
		fmt.Fprintf(w, "Latest Slope:      %s per ms\n", formatFloat(s.Latest.Slope))
		fmt.Fprintf(w, "Latest Fitted:     %s\n", formatFloat(s.Latest.FittedValue))
		fmt.Fprintf(w, "Half-Window Slope: %s per ms\n", formatFloat(s.Latest.HalfWindowSlope))
	}

	if v := summary.Verification; v != nil {
		fmt.Fprintf(w, "\n=== Verification ===\n")
		fmt.Fprintf(w, "Entries:           %d\n", v.TotalEntries)
		fmt.Fprintf(w, "Matched:           %d\n", v.MatchedEntries)
		fmt.Fprintf(w, "Divergent:         %d\n", v.DivergentEntries)
	}
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.6g", v)
}
