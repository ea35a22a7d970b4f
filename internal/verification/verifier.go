// Package verification checks that published regression entries are reproduced
// by replaying the stored tick history through the engine.
package verification

import (
	"context"
	"math"

	"trendline-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string `json:"field"`
	Expected any    `json:"expected"` // stored value
	Actual   any    `json:"actual"`   // replayed value
}

// VerificationResult contains the result of verifying a single entry.
type VerificationResult struct {
	SessionID   string            `json:"session_id"`
	Seq         int64             `json:"seq"`
	Match       bool              `json:"match"`
	Divergences []FieldDivergence `json:"divergences,omitempty"`
}

// VerificationReport contains results for one or more sessions.
type VerificationReport struct {
	TotalEntries     int                  `json:"total_entries"`
	MatchedEntries   int                  `json:"matched_entries"`
	DivergentEntries int                  `json:"divergent_entries"`
	Results          []VerificationResult `json:"results"` // divergent entries only
}

// Match reports whether every verified entry matched.
func (r *VerificationReport) Match() bool {
	return r.DivergentEntries == 0
}

func (r *VerificationReport) add(result VerificationResult) {
	r.TotalEntries++
	if result.Match {
		r.MatchedEntries++
		return
	}
	r.DivergentEntries++
	r.Results = append(r.Results, result)
}

func (r *VerificationReport) merge(other *VerificationReport) {
	r.TotalEntries += other.TotalEntries
	r.MatchedEntries += other.MatchedEntries
	r.DivergentEntries += other.DivergentEntries
	r.Results = append(r.Results, other.Results...)
}

// Verifier verifies published sessions.
type Verifier interface {
	// VerifySession replays the ticks of a session and compares every entry.
	VerifySession(ctx context.Context, sessionID string) (*VerificationReport, error)

	// VerifySessions verifies several sessions into one report.
	VerifySessions(ctx context.Context, sessionIDs []string) (*VerificationReport, error)
}

// CompareEntries compares two window entries and returns divergences.
// Uses FloatTolerance for float64 comparisons; two NaNs are equal.
func CompareEntries(stored, replayed domain.WindowEntry) []FieldDivergence {
	var divergences []FieldDivergence

	if stored.Instrument != replayed.Instrument {
		divergences = append(divergences, FieldDivergence{
			Field:    "Instrument",
			Expected: stored.Instrument,
			Actual:   replayed.Instrument,
		})
	}
	if stored.TimestampMs != replayed.TimestampMs {
		divergences = append(divergences, FieldDivergence{
			Field:    "TimestampMs",
			Expected: stored.TimestampMs,
			Actual:   replayed.TimestampMs,
		})
	}
	if stored.WindowOrigin != replayed.WindowOrigin {
		divergences = append(divergences, FieldDivergence{
			Field:    "WindowOrigin",
			Expected: stored.WindowOrigin,
			Actual:   replayed.WindowOrigin,
		})
	}

	floats := []struct {
		field            string
		stored, replayed float64
	}{
		{"Price", stored.Price, replayed.Price},
		{"PriceScaled", stored.PriceScaled, replayed.PriceScaled},
		{"TimeScaled", stored.TimeScaled, replayed.TimeScaled},
		{"TimePriceProduct", stored.TimePriceProduct, replayed.TimePriceProduct},
		{"TimeSquared", stored.TimeSquared, replayed.TimeSquared},
		{"Sums.PriceScaled", stored.Sums.PriceScaled, replayed.Sums.PriceScaled},
		{"Sums.TimeScaled", stored.Sums.TimeScaled, replayed.Sums.TimeScaled},
		{"Sums.TimePriceProduct", stored.Sums.TimePriceProduct, replayed.Sums.TimePriceProduct},
		{"Sums.TimeSquared", stored.Sums.TimeSquared, replayed.Sums.TimeSquared},
		{"Intercept", stored.Intercept, replayed.Intercept},
		{"Slope", stored.Slope, replayed.Slope},
		{"FittedValue", stored.FittedValue, replayed.FittedValue},
		{"AbsoluteIntercept", stored.AbsoluteIntercept, replayed.AbsoluteIntercept},
		{"HalfWindowSlope", stored.HalfWindowSlope, replayed.HalfWindowSlope},
	}
	for _, f := range floats {
		if !floatEqual(f.stored, f.replayed) {
			divergences = append(divergences, FieldDivergence{
				Field:    f.field,
				Expected: f.stored,
				Actual:   f.replayed,
			})
		}
	}

	return divergences
}

// floatEqual compares with FloatTolerance, relative for large magnitudes.
func floatEqual(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return a == b
	}
	diff := math.Abs(a - b)
	if diff <= FloatTolerance {
		return true
	}
	return diff <= FloatTolerance*math.Max(math.Abs(a), math.Abs(b))
}
