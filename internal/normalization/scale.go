package normalization

import "trendline-lab/internal/domain"

// Coordinate scaling applied before sums are accumulated.
const (
	PriceScale = 1000.0   // scaled price = price / PriceScale
	TimeScale  = 100000.0 // scaled time = (ts - origin) / TimeScale
)

// Scale converts a tick into scaled coordinates anchored at origin.
func Scale(tick domain.Tick, origin int64) domain.ScaledObservation {
	priceScaled := tick.Price / PriceScale
	timeScaled := float64(tick.TimestampMs-origin) / TimeScale

	return domain.ScaledObservation{
		PriceScaled:      priceScaled,
		TimeScaled:       timeScaled,
		TimePriceProduct: timeScaled * priceScaled,
		TimeSquared:      timeScaled * timeScaled,
	}
}

// ScaleBatch scales a batch against its first tick's timestamp.
// Returns origin 0 and nil for an empty batch.
func ScaleBatch(ticks []domain.Tick) (int64, []domain.ScaledObservation) {
	if len(ticks) == 0 {
		return 0, nil
	}
	origin := ticks[0].TimestampMs
	return origin, ScaleBatchFrom(ticks, origin)
}

// ScaleBatchFrom scales every tick against an origin carried over from an existing window.
func ScaleBatchFrom(ticks []domain.Tick, origin int64) []domain.ScaledObservation {
	result := make([]domain.ScaledObservation, len(ticks))
	for i, t := range ticks {
		result[i] = Scale(t, origin)
	}
	return result
}

// HourBucket returns the start of the 1-hour partition containing ts.
func HourBucket(ts int64) int64 {
	return ts - ts%domain.HourMs
}
