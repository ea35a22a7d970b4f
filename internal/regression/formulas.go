package regression

import (
	"math"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/normalization"
)

// Fit is a least-squares line in original units.
type Fit struct {
	Intercept float64 // price at the window origin
	Slope     float64 // price change per millisecond
}

// Coefficients solves the normal equations over scaled sums for n observations.
// A zero denominator produces NaN or Inf; the result is never clamped.
func Coefficients(s domain.Sums, n float64) Fit {
	denominator := n*s.TimeSquared - s.TimeScaled*s.TimeScaled

	return Fit{
		Intercept: ((s.PriceScaled*s.TimeSquared - s.TimeScaled*s.TimePriceProduct) / denominator) * normalization.PriceScale,
		Slope:     ((n*s.TimePriceProduct - s.TimeScaled*s.PriceScaled) / denominator) / (normalization.TimeScale / normalization.PriceScale),
	}
}

// FittedValue evaluates the line at a scaled time.
func (f Fit) FittedValue(timeScaled float64) float64 {
	return f.Intercept + f.Slope*timeScaled*normalization.TimeScale
}

// AbsoluteIntercept re-anchors the intercept from beginTimestampMs to timestamp zero.
func (f Fit) AbsoluteIntercept(beginTimestampMs int64) float64 {
	return f.Intercept - (float64(beginTimestampMs)/normalization.TimeScale)*f.Slope
}

// Finite reports whether both coefficients are usable.
func (f Fit) Finite() bool {
	return !math.IsNaN(f.Intercept) && !math.IsInf(f.Intercept, 0) &&
		!math.IsNaN(f.Slope) && !math.IsInf(f.Slope, 0)
}
