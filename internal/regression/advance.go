package regression

import (
	"fmt"
	"sort"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/lookup"
	"trendline-lab/internal/normalization"
)

// AdvanceResult reports what one Advance call did to the window.
type AdvanceResult struct {
	Appended int // new entries
	Evicted  int // active entries removed for age while folding ticks in
	Retained int // size of the retained prefix after the call
	Trimmed  int // active and retained entries dropped by the pre-trim
}

// Advance folds ticks into the window in order.
//
// Ticks must not be older than the newest active entry. For windows shorter than
// one hour, entries at least windowLengthMs older than the newest entry are
// dropped first. For each tick the expired entries are evicted from the front,
// the fit is recomputed from the running sums, and a new entry is appended.
// Evicted entries in the same hour bucket as the evicting tick are kept in the
// retained prefix of the returned window. The next call's pre-trim applies to
// them as well.
//
// Precondition failures wrap ErrPrecondition and leave the window unchanged.
// After an ErrInvariantViolation every further call fails with it as well.
func (w *Window) Advance(ticks []domain.Tick, windowLengthMs int64) (AdvanceResult, error) {
	var result AdvanceResult

	if w != nil && w.invalid != nil {
		return result, fmt.Errorf("%w: window discarded: %w", ErrInvariantViolation, w.invalid)
	}
	if w.Len() == 0 {
		return result, ErrEmptyWindow
	}
	if windowLengthMs <= 0 {
		return result, fmt.Errorf("%w: got %d", ErrInvalidWindowLength, windowLengthMs)
	}
	if err := normalization.ValidateTickOrderingAfter(w.active.Back().TimestampMs, ticks); err != nil {
		return result, fmt.Errorf("%w: %w", ErrOutOfOrderTick, err)
	}

	if windowLengthMs < domain.HourMs {
		result.Trimmed = w.pretrim(windowLengthMs)
	}

	if len(ticks) == 0 {
		result.Retained = len(w.retained)
		return result, nil
	}

	// Entries retained by an earlier call survive only while their hour is still open.
	firstBucket := normalization.HourBucket(ticks[0].TimestampMs)
	var kept []domain.WindowEntry
	for _, e := range w.retained {
		if normalization.HourBucket(e.TimestampMs) == firstBucket {
			kept = append(kept, e)
		}
	}
	w.retained = nil

	for _, tick := range ticks {
		obs := normalization.Scale(tick, w.origin)
		w.sums = w.sums.Add(obs)

		bucket := normalization.HourBucket(tick.TimestampMs)
		for w.active.Len() > 0 && tick.TimestampMs-w.active.Front().TimestampMs > windowLengthMs {
			evicted := w.active.PopFront()
			w.sums = w.sums.Sub(evicted.ScaledObservation)
			result.Evicted++

			if normalization.HourBucket(evicted.TimestampMs) == bucket {
				kept = append(kept, evicted)
			}
		}

		fit := Coefficients(w.sums, float64(w.active.Len()+1))

		check := tick.TimestampMs - windowLengthMs/2
		halfSlope, err := lookup.HalfWindowSlope(check, &w.active)
		if err != nil {
			w.invalid = fmt.Errorf("half-window slope for tick at %d: %w", tick.TimestampMs, err)
			return result, fmt.Errorf("%w: %w", ErrInvariantViolation, w.invalid)
		}

		w.active.PushBack(domain.WindowEntry{
			Instrument:        tick.Instrument,
			Price:             tick.Price,
			TimestampMs:       tick.TimestampMs,
			WindowOrigin:      w.origin,
			ScaledObservation: obs,
			Sums:              w.sums,
			Intercept:         fit.Intercept,
			Slope:             fit.Slope,
			FittedValue:       fit.FittedValue(obs.TimeScaled),
			AbsoluteIntercept: fit.AbsoluteIntercept(w.origin),
			HalfWindowSlope:   halfSlope,
		})
		result.Appended++
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].TimestampMs < kept[j].TimestampMs
	})
	w.retained = kept
	result.Retained = len(kept)

	return result, nil
}

// pretrim drops every entry whose age relative to the newest active entry is
// at least windowLengthMs. The newest entry always survives. Retained entries
// are already outside the sums.
func (w *Window) pretrim(windowLengthMs int64) int {
	newest := w.active.Back().TimestampMs
	trimmed := 0

	kept := w.retained[:0]
	for _, e := range w.retained {
		if newest-e.TimestampMs >= windowLengthMs {
			trimmed++
			continue
		}
		kept = append(kept, e)
	}
	w.retained = kept

	for w.active.Len() > 1 && newest-w.active.Front().TimestampMs >= windowLengthMs {
		e := w.active.PopFront()
		w.sums = w.sums.Sub(e.ScaledObservation)
		trimmed++
	}
	return trimmed
}
