package domain

import (
	"encoding/json"
	"math"
)

// entryJSON is the wire form of WindowEntry.
// Non-finite floats are encoded as null; encoding/json rejects NaN and Inf.
type entryJSON struct {
	Instrument          string   `json:"instrument"`
	Price               float64  `json:"price"`
	TimestampMs         int64    `json:"timestamp_ms"`
	WindowOrigin        int64    `json:"window_origin"`
	PriceScaled         float64  `json:"price_scaled"`
	TimeScaled          float64  `json:"time_scaled"`
	TimePriceProduct    float64  `json:"time_price_product"`
	TimeSquared         float64  `json:"time_squared"`
	SumPriceScaled      float64  `json:"sum_price_scaled"`
	SumTimeScaled       float64  `json:"sum_time_scaled"`
	SumTimePriceProduct float64  `json:"sum_time_price_product"`
	SumTimeSquared      float64  `json:"sum_time_squared"`
	Intercept           *float64 `json:"intercept"`
	Slope               *float64 `json:"slope"`
	FittedValue         *float64 `json:"fitted_value"`
	AbsoluteIntercept   *float64 `json:"absolute_intercept"`
	HalfWindowSlope     *float64 `json:"half_window_slope"`
}

// MarshalJSON encodes the entry with snake_case keys.
func (e WindowEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		Instrument:          e.Instrument,
		Price:               e.Price,
		TimestampMs:         e.TimestampMs,
		WindowOrigin:        e.WindowOrigin,
		PriceScaled:         e.PriceScaled,
		TimeScaled:          e.TimeScaled,
		TimePriceProduct:    e.TimePriceProduct,
		TimeSquared:         e.TimeSquared,
		SumPriceScaled:      e.Sums.PriceScaled,
		SumTimeScaled:       e.Sums.TimeScaled,
		SumTimePriceProduct: e.Sums.TimePriceProduct,
		SumTimeSquared:      e.Sums.TimeSquared,
		Intercept:           finiteOrNil(e.Intercept),
		Slope:               finiteOrNil(e.Slope),
		FittedValue:         finiteOrNil(e.FittedValue),
		AbsoluteIntercept:   finiteOrNil(e.AbsoluteIntercept),
		HalfWindowSlope:     finiteOrNil(e.HalfWindowSlope),
	})
}

// UnmarshalJSON decodes the wire form. Null regression outputs become NaN.
func (e *WindowEntry) UnmarshalJSON(data []byte) error {
	var w entryJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*e = WindowEntry{
		Instrument:   w.Instrument,
		Price:        w.Price,
		TimestampMs:  w.TimestampMs,
		WindowOrigin: w.WindowOrigin,
		ScaledObservation: ScaledObservation{
			PriceScaled:      w.PriceScaled,
			TimeScaled:       w.TimeScaled,
			TimePriceProduct: w.TimePriceProduct,
			TimeSquared:      w.TimeSquared,
		},
		Sums: Sums{
			PriceScaled:      w.SumPriceScaled,
			TimeScaled:       w.SumTimeScaled,
			TimePriceProduct: w.SumTimePriceProduct,
			TimeSquared:      w.SumTimeSquared,
		},
		Intercept:         valueOrNaN(w.Intercept),
		Slope:             valueOrNaN(w.Slope),
		FittedValue:       valueOrNaN(w.FittedValue),
		AbsoluteIntercept: valueOrNaN(w.AbsoluteIntercept),
		HalfWindowSlope:   valueOrNaN(w.HalfWindowSlope),
	}
	return nil
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
