package main

import (
	"context"
	"fmt"
	"os"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/reporting"
	"trendline-lab/internal/storage"
	"trendline-lab/internal/verification"
)

// reportConfig selects the optional outputs written after a replay.
type reportConfig struct {
	markdownPath    string
	sessionsCSVPath string
	entriesCSVPath  string
	verify          bool
	verifySessions  []string
	windowLengthMs  int64
	warmupTicks     int
}

func (c reportConfig) enabled() bool {
	return c.markdownPath != "" || c.sessionsCSVPath != "" || c.entriesCSVPath != "" || c.verify || len(c.verifySessions) > 0
}

// writeReports summarizes the replayed entries and optionally verifies sessions.
// Named sessions are verified against stored; without names every replayed
// session is checked against the replay's own output.
func writeReports(
	ctx context.Context,
	cfg reportConfig,
	summary ReplaySummary,
	ticks storage.TickStore,
	replayed storage.EntryStore,
	stored storage.EntryStore,
) (*verification.VerificationReport, error) {
	instruments := make([]string, 0, len(summary.Streams))
	for _, s := range summary.Streams {
		instruments = append(instruments, s.Instrument)
	}

	opts := reporting.Options{
		Instruments:    instruments,
		From:           summary.FirstTickTime,
		To:             summary.LastTickTime,
		WindowLengthMs: cfg.windowLengthMs,
	}
	report, err := reporting.NewGenerator(replayed).Generate(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("generate report: %w", err)
	}

	var verified *verification.VerificationReport
	if cfg.verify || len(cfg.verifySessions) > 0 {
		entries, ids := stored, cfg.verifySessions
		if len(ids) == 0 {
			entries = replayed
			for _, s := range report.Sessions {
				ids = append(ids, s.SessionID)
			}
		}

		verifier := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
			TickStore:      ticks,
			EntryStore:     entries,
			WindowLengthMs: cfg.windowLengthMs,
			WarmupTicks:    cfg.warmupTicks,
		})
		verified, err = verifier.VerifySessions(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("verify sessions: %w", err)
		}
		report.Verification = verified
	}

	if cfg.markdownPath != "" {
		if err := writeOutput(cfg.markdownPath, reporting.RenderMarkdown(report)); err != nil {
			return nil, err
		}
	}
	if cfg.sessionsCSVPath != "" {
		if err := writeOutput(cfg.sessionsCSVPath, reporting.RenderSessionsCSV(report.Sessions)); err != nil {
			return nil, err
		}
	}
	if cfg.entriesCSVPath != "" {
		var records []*domain.EntryRecord
		for _, sess := range report.Sessions {
			recs, err := replayed.GetBySession(ctx, sess.SessionID)
			if err != nil {
				return nil, fmt.Errorf("load session %s: %w", sess.SessionID, err)
			}
			records = append(records, recs...)
		}
		if err := writeOutput(cfg.entriesCSVPath, reporting.RenderEntriesCSV(records)); err != nil {
			return nil, err
		}
	}

	return verified, nil
}

// writeOutput writes content to path, or to stdout for "-".
func writeOutput(path, content string) error {
	if path == "-" {
		_, err := fmt.Fprint(os.Stdout, content)
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
