package verification

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/observability"
	"trendline-lab/internal/orchestrator"
	"trendline-lab/internal/storage/memory"
)

const testWindowLength = 50001

func tick(price float64, ts int64) domain.Tick {
	return domain.Tick{Instrument: "ETH", Price: price, TimestampMs: ts}
}

// publishSessions runs ticks through an orchestrator backed by memory stores.
func publishSessions(t *testing.T, windowLength int64, ticks []domain.Tick) (*memory.TickStore, *memory.EntryStore) {
	t.Helper()

	tickStore := memory.NewTickStore()
	entryStore := memory.NewEntryStore()

	var n int
	o, err := orchestrator.New(orchestrator.Options{
		WindowLengthMs: windowLength,
		Sinks:          orchestrator.Sinks{Ticks: tickStore, Entries: entryStore},
		Logger:         zap.NewNop(),
		Metrics:        observability.NewMetrics("test", prometheus.NewRegistry()),
		NewSessionID: func() string {
			n++
			return fmt.Sprintf("session-%d", n)
		},
	})
	require.NoError(t, err)

	for _, tk := range ticks {
		require.NoError(t, o.OnTick(context.Background(), tk))
	}
	return tickStore, entryStore
}

func rampTicks() []domain.Tick {
	prices := []float64{100, 200, 300, 400, 500, 600, 700, 600, 500, 400, 300, 200}
	ticks := make([]domain.Tick, len(prices))
	for i, p := range prices {
		ticks[i] = tick(p, int64(i)*10000)
	}
	return ticks
}

func TestCompareEntries_Equal(t *testing.T) {
	e := domain.WindowEntry{Instrument: "ETH", Price: 100, TimestampMs: 10, Slope: 0.5}
	assert.Empty(t, CompareEntries(e, e))
}

func TestCompareEntries_WithinTolerance(t *testing.T) {
	stored := domain.WindowEntry{Instrument: "ETH", Slope: 0.5, Intercept: 1e9}
	replayed := stored
	replayed.Slope += FloatTolerance / 2
	replayed.Intercept += 1 // relative error 1e-9

	assert.Empty(t, CompareEntries(stored, replayed))
}

func TestCompareEntries_NonFinite(t *testing.T) {
	stored := domain.WindowEntry{Instrument: "ETH", Slope: math.NaN(), Intercept: math.Inf(1)}
	replayed := stored
	assert.Empty(t, CompareEntries(stored, replayed))

	replayed.Slope = 0
	divs := CompareEntries(stored, replayed)
	require.Len(t, divs, 1)
	assert.Equal(t, "Slope", divs[0].Field)
}

func TestCompareEntries_Divergences(t *testing.T) {
	stored := domain.WindowEntry{Instrument: "ETH", TimestampMs: 10, WindowOrigin: 0, HalfWindowSlope: 1}
	replayed := stored
	replayed.TimestampMs = 11
	replayed.Sums.TimeSquared = 3
	replayed.HalfWindowSlope = 2

	var fields []string
	for _, d := range CompareEntries(stored, replayed) {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"TimestampMs", "Sums.TimeSquared", "HalfWindowSlope"}, fields)
}

func TestVerifySession_Match(t *testing.T) {
	ticks, entries := publishSessions(t, testWindowLength, rampTicks())
	v := NewReplayVerifier(ReplayVerifierOptions{
		TickStore:      ticks,
		EntryStore:     entries,
		WindowLengthMs: testWindowLength,
	})

	report, err := v.VerifySession(context.Background(), "session-1")
	require.NoError(t, err)

	assert.True(t, report.Match())
	assert.Equal(t, 12, report.TotalEntries)
	assert.Equal(t, 12, report.MatchedEntries)
	assert.Empty(t, report.Results)
}

func TestVerifySession_AfterReset(t *testing.T) {
	// The 5000 tick is further from the window than its length, so it starts session-2.
	input := []domain.Tick{tick(1, 0), tick(2, 500), tick(3, 5000), tick(4, 5200), tick(6, 5600)}
	ticks, entries := publishSessions(t, 1000, input)
	v := NewReplayVerifier(ReplayVerifierOptions{TickStore: ticks, EntryStore: entries, WindowLengthMs: 1000})

	report, err := v.VerifySessions(context.Background(), []string{"session-1", "session-2"})
	require.NoError(t, err)

	assert.True(t, report.Match(), "divergences: %+v", report.Results)
	assert.Equal(t, 5, report.TotalEntries)
}

func TestVerifySession_TamperedEntry(t *testing.T) {
	ticks, entries := publishSessions(t, testWindowLength, rampTicks())
	ctx := context.Background()

	records, err := entries.GetBySession(ctx, "session-1")
	require.NoError(t, err)

	tampered := memory.NewEntryStore()
	for _, r := range records {
		rec := *r
		if rec.Seq == 5 {
			rec.Entry.Slope += 1
		}
		require.NoError(t, tampered.InsertBulk(ctx, []*domain.EntryRecord{&rec}))
	}

	v := NewReplayVerifier(ReplayVerifierOptions{TickStore: ticks, EntryStore: tampered, WindowLengthMs: testWindowLength})
	report, err := v.VerifySession(ctx, "session-1")
	require.NoError(t, err)

	assert.False(t, report.Match())
	assert.Equal(t, 1, report.DivergentEntries)
	require.Len(t, report.Results, 1)
	assert.Equal(t, int64(5), report.Results[0].Seq)
	assert.Equal(t, "Slope", report.Results[0].Divergences[0].Field)
}

func TestVerifySession_UnpublishedTicks(t *testing.T) {
	ticks, entries := publishSessions(t, testWindowLength, rampTicks())
	ctx := context.Background()

	// A tick stored at the newest timestamp whose entry never reached the entry store.
	require.NoError(t, ticks.InsertBulk(ctx, []*domain.Tick{{Instrument: "ETH", Price: 100, TimestampMs: 110000}}))

	v := NewReplayVerifier(ReplayVerifierOptions{TickStore: ticks, EntryStore: entries, WindowLengthMs: testWindowLength})
	report, err := v.VerifySession(ctx, "session-1")
	require.NoError(t, err)

	assert.Equal(t, 13, report.TotalEntries)
	assert.Equal(t, 1, report.DivergentEntries)
	assert.Equal(t, int64(12), report.Results[0].Seq)
}

func TestVerifySession_NotFound(t *testing.T) {
	v := NewReplayVerifier(ReplayVerifierOptions{
		TickStore:      memory.NewTickStore(),
		EntryStore:     memory.NewEntryStore(),
		WindowLengthMs: testWindowLength,
	})

	_, err := v.VerifySession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	report, err := v.VerifySessions(context.Background(), []string{"missing"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.DivergentEntries)
	assert.Equal(t, "Error", report.Results[0].Divergences[0].Field)
}

func TestVerifySession_InsufficientTicks(t *testing.T) {
	_, entries := publishSessions(t, testWindowLength, rampTicks())

	v := NewReplayVerifier(ReplayVerifierOptions{
		TickStore:      memory.NewTickStore(),
		EntryStore:     entries,
		WindowLengthMs: testWindowLength,
	})

	_, err := v.VerifySession(context.Background(), "session-1")
	assert.ErrorIs(t, err, ErrInsufficientTicks)
}
