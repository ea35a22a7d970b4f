package main

import (
	"context"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/orchestrator"
	"trendline-lab/internal/replay"
	"trendline-lab/internal/verification"
)

// ReplaySummary holds replay statistics.
type ReplaySummary struct {
	TotalTicks    int                           `json:"total_ticks"`
	FirstTickTime int64                         `json:"first_tick_time"`
	LastTickTime  int64                         `json:"last_tick_time"`
	Streams       []orchestrator.StreamSnapshot `json:"streams"`

	Verification *verification.VerificationReport `json:"verification,omitempty"`
}

// statsEngine forwards ticks to the orchestrator and tracks time bounds.
type statsEngine struct {
	orch    *orchestrator.Orchestrator
	summary ReplaySummary
}

func newStatsEngine(orch *orchestrator.Orchestrator) *statsEngine {
	return &statsEngine{orch: orch}
}

// OnTick processes a tick.
func (e *statsEngine) OnTick(ctx context.Context, tick domain.Tick) error {
	if e.summary.TotalTicks == 0 || tick.TimestampMs < e.summary.FirstTickTime {
		e.summary.FirstTickTime = tick.TimestampMs
	}
	if e.summary.TotalTicks == 0 || tick.TimestampMs > e.summary.LastTickTime {
		e.summary.LastTickTime = tick.TimestampMs
	}
	e.summary.TotalTicks++

	return e.orch.OnTick(ctx, tick)
}

// Summary returns the statistics and the final state of every stream.
func (e *statsEngine) Summary() ReplaySummary {
	s := e.summary
	s.Streams = e.orch.Streams()
	return s
}

var _ replay.TickEngine = (*statsEngine)(nil)
