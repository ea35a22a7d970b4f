package normalization

import (
	"errors"

	"trendline-lab/internal/domain"
)

// ErrInvalidOrdering is returned when ticks are not in non-decreasing timestamp order.
var ErrInvalidOrdering = errors.New("ticks are not in non-decreasing timestamp order")

// ValidateTickOrdering checks that timestamps never decrease.
// Equal timestamps are allowed. Ticks are never reordered here.
func ValidateTickOrdering(ticks []domain.Tick) error {
	for i := 1; i < len(ticks); i++ {
		if ticks[i].TimestampMs < ticks[i-1].TimestampMs {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// ValidateTickOrderingAfter checks ordering and that the first tick is not older than last.
func ValidateTickOrderingAfter(last int64, ticks []domain.Tick) error {
	if len(ticks) > 0 && ticks[0].TimestampMs < last {
		return ErrInvalidOrdering
	}
	return ValidateTickOrdering(ticks)
}
