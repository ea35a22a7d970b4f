package replay

import (
	"context"

	"trendline-lab/internal/domain"
)

// TickEngine processes ticks in deterministic order.
type TickEngine interface {
	// OnTick is called for each tick in order.
	// Ticks are guaranteed to be ordered by (timestamp, instrument, insertion order).
	OnTick(ctx context.Context, tick domain.Tick) error
}
