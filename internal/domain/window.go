package domain

import "math"

// ScaledObservation is a tick rescaled against a window origin.
// Magnitudes stay near 1 so that the running OLS sums remain numerically stable.
type ScaledObservation struct {
	PriceScaled      float64 // price / 1000
	TimeScaled       float64 // (timestamp - origin) / 100000
	TimePriceProduct float64 // TimeScaled * PriceScaled
	TimeSquared      float64 // TimeScaled^2
}

// Sums holds the four sufficient statistics of an OLS fit over scaled observations.
type Sums struct {
	PriceScaled      float64
	TimeScaled       float64
	TimePriceProduct float64
	TimeSquared      float64
}

// Add returns s with the observation folded in.
func (s Sums) Add(o ScaledObservation) Sums {
	s.PriceScaled += o.PriceScaled
	s.TimeScaled += o.TimeScaled
	s.TimePriceProduct += o.TimePriceProduct
	s.TimeSquared += o.TimeSquared
	return s
}

// Sub returns s with the observation removed.
func (s Sums) Sub(o ScaledObservation) Sums {
	s.PriceScaled -= o.PriceScaled
	s.TimeScaled -= o.TimeScaled
	s.TimePriceProduct -= o.TimePriceProduct
	s.TimeSquared -= o.TimeSquared
	return s
}

// WindowEntry is the frozen snapshot recorded for one tick when it entered the window.
// Sums and regression outputs are as of the insertion moment.
type WindowEntry struct {
	Instrument   string
	Price        float64
	TimestampMs  int64
	WindowOrigin int64 // origin timestamp the scaled fields are measured against

	ScaledObservation

	Sums Sums

	Intercept         float64 // price at the window origin
	Slope             float64 // price change per millisecond
	FittedValue       float64 // fit evaluated at this tick's time
	AbsoluteIntercept float64 // intercept re-anchored to timestamp zero
	HalfWindowSlope   float64 // slope recorded near the middle of the window
}

// HasFiniteFit reports whether the regression outputs are usable.
// A zero denominator (all timestamps equal) yields NaN or Inf.
func (e WindowEntry) HasFiniteFit() bool {
	for _, v := range []float64{e.Intercept, e.Slope, e.FittedValue, e.AbsoluteIntercept, e.HalfWindowSlope} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
