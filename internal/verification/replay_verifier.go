package verification

import (
	"context"
	"errors"
	"fmt"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/orchestrator"
	"trendline-lab/internal/regression"
	"trendline-lab/internal/storage"
)

var (
	// ErrSessionNotFound is returned when a session has no stored entries.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInsufficientTicks is returned when the tick history cannot cover the warm-up batch.
	ErrInsufficientTicks = errors.New("not enough stored ticks to rebuild session")
)

// ReplayVerifier implements Verifier interface.
// It must be configured with the window length and warm-up size the session was produced with.
type ReplayVerifier struct {
	tickStore      storage.TickStore
	entryStore     storage.EntryStore
	windowLengthMs int64
	warmupTicks    int
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	TickStore      storage.TickStore
	EntryStore     storage.EntryStore
	WindowLengthMs int64
	WarmupTicks    int
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	if opts.WarmupTicks <= 0 {
		opts.WarmupTicks = orchestrator.DefaultWarmupTicks
	}
	return &ReplayVerifier{
		tickStore:      opts.TickStore,
		entryStore:     opts.EntryStore,
		windowLengthMs: opts.WindowLengthMs,
		warmupTicks:    opts.WarmupTicks,
	}
}

// VerifySession verifies every stored entry of a session by replaying its ticks.
func (v *ReplayVerifier) VerifySession(ctx context.Context, sessionID string) (*VerificationReport, error) {
	// 1. Load stored entries
	records, err := v.entryStore.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	// 2. Replay the session's ticks
	replayed, err := v.replaySession(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("replay session %s: %w", sessionID, err)
	}

	// 3. Compare entry by entry
	report := &VerificationReport{}
	for i, rec := range records {
		result := VerificationResult{SessionID: sessionID, Seq: rec.Seq}
		switch {
		case rec.Seq != int64(i):
			result.Divergences = []FieldDivergence{{Field: "Seq", Expected: int64(i), Actual: rec.Seq}}
		case i >= len(replayed):
			result.Divergences = []FieldDivergence{{Field: "Entry", Expected: "stored entry", Actual: nil}}
		default:
			result.Divergences = CompareEntries(rec.Entry, replayed[i])
		}
		result.Match = len(result.Divergences) == 0
		report.add(result)
	}

	// Replayed entries that were never published
	for i := len(records); i < len(replayed); i++ {
		report.add(VerificationResult{
			SessionID:   sessionID,
			Seq:         int64(i),
			Divergences: []FieldDivergence{{Field: "Entry", Expected: nil, Actual: "replayed entry"}},
		})
	}

	return report, nil
}

// VerifySessions verifies all given sessions.
func (v *ReplayVerifier) VerifySessions(ctx context.Context, sessionIDs []string) (*VerificationReport, error) {
	report := &VerificationReport{}

	for _, id := range sessionIDs {
		result, err := v.VerifySession(ctx, id)
		if err != nil {
			// Record error as divergence
			report.add(VerificationResult{
				SessionID:   id,
				Divergences: []FieldDivergence{{Field: "Error", Expected: nil, Actual: err.Error()}},
			})
			continue
		}
		report.merge(result)
	}

	return report, nil
}

// replaySession rebuilds the entries of a session from the tick history.
// A session starts at its window origin and ends at its newest published entry.
func (v *ReplayVerifier) replaySession(ctx context.Context, records []*domain.EntryRecord) ([]domain.WindowEntry, error) {
	first := records[0].Entry
	last := records[len(records)-1].Entry

	ticks, err := v.tickStore.GetByTimeRange(ctx, first.Instrument, first.WindowOrigin, last.TimestampMs)
	if err != nil {
		return nil, err
	}
	if len(ticks) < v.warmupTicks {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientTicks, len(ticks), v.warmupTicks)
	}

	batch := make([]domain.Tick, v.warmupTicks)
	for i := range batch {
		batch[i] = *ticks[i]
	}

	window, err := regression.Initialize(batch)
	if err != nil {
		return nil, err
	}
	entries := window.ActiveEntries()

	for _, t := range ticks[v.warmupTicks:] {
		if _, err := window.Advance([]domain.Tick{*t}, v.windowLengthMs); err != nil {
			return nil, err
		}
		entry, _ := window.Last()
		entries = append(entries, entry)
	}

	return entries, nil
}

var _ Verifier = (*ReplayVerifier)(nil)
