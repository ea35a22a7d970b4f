package replay

import (
	"context"
	"fmt"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/storage"
)

// Runner loads ticks from storage and replays them in deterministic order.
type Runner struct {
	tickStore storage.TickStore
}

// NewRunner creates a new replay runner.
func NewRunner(tickStore storage.TickStore) *Runner {
	return &Runner{tickStore: tickStore}
}

// Run loads ticks for an instrument within time range and replays them through the engine.
// Returns the number of ticks replayed.
func (r *Runner) Run(ctx context.Context, instrument string, from, to int64, engine TickEngine) (int, error) {
	ticks, err := r.tickStore.GetByTimeRange(ctx, instrument, from, to)
	if err != nil {
		return 0, fmt.Errorf("load ticks for %s: %w", instrument, err)
	}

	SortTicks(ticks)
	return replay(ctx, ticks, engine)
}

// RunAll loads all ticks for an instrument and replays them through the engine.
func (r *Runner) RunAll(ctx context.Context, instrument string, engine TickEngine) (int, error) {
	ticks, err := r.tickStore.GetByInstrument(ctx, instrument)
	if err != nil {
		return 0, fmt.Errorf("load ticks for %s: %w", instrument, err)
	}

	SortTicks(ticks)
	return replay(ctx, ticks, engine)
}

// RunInstruments replays the full history of every stored instrument as one merged stream.
func (r *Runner) RunInstruments(ctx context.Context, engine TickEngine) (int, error) {
	instruments, err := r.tickStore.Instruments(ctx)
	if err != nil {
		return 0, fmt.Errorf("list instruments: %w", err)
	}

	byInstrument := make(map[string][]*domain.Tick, len(instruments))
	for _, inst := range instruments {
		ticks, err := r.tickStore.GetByInstrument(ctx, inst)
		if err != nil {
			return 0, fmt.Errorf("load ticks for %s: %w", inst, err)
		}
		byInstrument[inst] = ticks
	}

	return replay(ctx, MergeTicks(byInstrument), engine)
}

func replay(ctx context.Context, ticks []*domain.Tick, engine TickEngine) (int, error) {
	for i, t := range ticks {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := engine.OnTick(ctx, *t); err != nil {
			return i, fmt.Errorf("replay tick %d (%s@%d): %w", i, t.Instrument, t.TimestampMs, err)
		}
	}
	return len(ticks), nil
}
