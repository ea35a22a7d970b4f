package regression

import (
	"fmt"

	"github.com/gammazero/deque"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/normalization"
)

// Window is the running state of one sliding-window regression.
//
// Active entries feed the running sums. Retained entries are older entries kept
// only so that the current hour bucket stays complete; they never count toward
// the sums or the fit. Entries() returns the retained prefix followed by the
// active entries, ordered by TimestampMs.
//
// A Window is not safe for concurrent use.
type Window struct {
	origin   int64
	sums     domain.Sums
	active   deque.Deque[domain.WindowEntry]
	retained []domain.WindowEntry

	// invalid is set once Advance breaks an invariant; the window is unusable after that.
	invalid error
}

// Initialize builds a window from an ordered, non-empty batch.
// All entries share one batch-wide fit; the fitted value is taken at the last tick.
func Initialize(ticks []domain.Tick) (*Window, error) {
	if len(ticks) == 0 {
		return nil, ErrEmptyBatch
	}
	if err := normalization.ValidateTickOrdering(ticks); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutOfOrderTick, err)
	}

	origin, observations := normalization.ScaleBatch(ticks)

	var sums domain.Sums
	for _, o := range observations {
		sums = sums.Add(o)
	}

	fit := Coefficients(sums, float64(len(ticks)))
	fitted := fit.FittedValue(observations[len(observations)-1].TimeScaled)
	absIntercept := fit.AbsoluteIntercept(origin)

	w := &Window{origin: origin, sums: sums}
	for i, t := range ticks {
		w.active.PushBack(domain.WindowEntry{
			Instrument:        t.Instrument,
			Price:             t.Price,
			TimestampMs:       t.TimestampMs,
			WindowOrigin:      origin,
			ScaledObservation: observations[i],
			Sums:              sums,
			Intercept:         fit.Intercept,
			Slope:             fit.Slope,
			FittedValue:       fitted,
			AbsoluteIntercept: absIntercept,
			HalfWindowSlope:   fit.Slope,
		})
	}

	return w, nil
}

// Origin returns the timestamp all scaled times are measured against.
func (w *Window) Origin() int64 {
	return w.origin
}

// Sums returns the running sums over the active entries.
func (w *Window) Sums() domain.Sums {
	return w.sums
}

// Len returns the number of active entries.
func (w *Window) Len() int {
	if w == nil {
		return 0
	}
	return w.active.Len()
}

// Last returns the newest active entry.
func (w *Window) Last() (domain.WindowEntry, bool) {
	if w.Len() == 0 {
		return domain.WindowEntry{}, false
	}
	return w.active.Back(), true
}

// ActiveEntries returns a copy of the entries that feed the sums.
func (w *Window) ActiveEntries() []domain.WindowEntry {
	result := make([]domain.WindowEntry, w.active.Len())
	for i := range result {
		result[i] = w.active.At(i)
	}
	return result
}

// RetainedLen returns the size of the retained prefix.
func (w *Window) RetainedLen() int {
	if w == nil {
		return 0
	}
	return len(w.retained)
}

// RetainedEntries returns a copy of the retained prefix.
func (w *Window) RetainedEntries() []domain.WindowEntry {
	result := make([]domain.WindowEntry, len(w.retained))
	copy(result, w.retained)
	return result
}

// Entries returns the retained prefix followed by the active entries.
func (w *Window) Entries() []domain.WindowEntry {
	result := make([]domain.WindowEntry, 0, len(w.retained)+w.active.Len())
	result = append(result, w.retained...)
	for i := 0; i < w.active.Len(); i++ {
		result = append(result, w.active.At(i))
	}
	return result
}
