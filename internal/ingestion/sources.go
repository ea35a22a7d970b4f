package ingestion

import (
	"context"

	"golang.org/x/sync/errgroup"

	"trendline-lab/internal/domain"
)

// TickSource produces ticks for the orchestrator.
type TickSource interface {
	// Stream sends ticks to out until the source is exhausted or ctx is done.
	// It returns nil when exhausted and ctx.Err() when cancelled. It never closes out.
	Stream(ctx context.Context, out chan<- domain.Tick) error
}

// SliceSource replays a fixed slice of ticks in order.
type SliceSource struct {
	ticks []domain.Tick
}

// NewSliceSource creates a source over a copy of ticks.
func NewSliceSource(ticks []domain.Tick) *SliceSource {
	s := &SliceSource{ticks: make([]domain.Tick, len(ticks))}
	copy(s.ticks, ticks)
	return s
}

// Stream sends every tick, then returns nil.
func (s *SliceSource) Stream(ctx context.Context, out chan<- domain.Tick) error {
	for _, t := range s.ticks {
		select {
		case out <- t:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// MultiSource streams several sources into one channel concurrently.
// Ordering between sources is not defined; each source keeps its own order.
type MultiSource struct {
	sources []TickSource
}

// NewMultiSource combines sources.
func NewMultiSource(sources ...TickSource) *MultiSource {
	return &MultiSource{sources: sources}
}

// Stream returns nil once every source is exhausted. The first failing source
// cancels the others and its error is returned.
func (m *MultiSource) Stream(ctx context.Context, out chan<- domain.Tick) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range m.sources {
		g.Go(func() error {
			return src.Stream(gctx, out)
		})
	}
	return g.Wait()
}

var (
	_ TickSource = (*SliceSource)(nil)
	_ TickSource = (*WSSource)(nil)
	_ TickSource = (*MultiSource)(nil)
)
