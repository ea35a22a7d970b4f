package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowEntry_MarshalNonFinite(t *testing.T) {
	e := WindowEntry{
		Instrument:  "ETHUSDT",
		Price:       100,
		TimestampMs: 1000,
		Intercept:   math.NaN(),
		Slope:       math.Inf(1),
		FittedValue: 42,
	}

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Nil(t, raw["intercept"])
	assert.Nil(t, raw["slope"])
	assert.Equal(t, 42.0, raw["fitted_value"])
	assert.Equal(t, "ETHUSDT", raw["instrument"])
	assert.Equal(t, 1000.0, raw["timestamp_ms"])

	var back WindowEntry
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, math.IsNaN(back.Intercept))
	assert.True(t, math.IsNaN(back.Slope))
	assert.Equal(t, 42.0, back.FittedValue)
	assert.False(t, back.HasFiniteFit())
}

func TestWindowEntry_HasFiniteFit(t *testing.T) {
	e := WindowEntry{Intercept: 1, Slope: 0.01, FittedValue: 2, AbsoluteIntercept: 1, HalfWindowSlope: 0.01}
	assert.True(t, e.HasFiniteFit())

	e.HalfWindowSlope = math.Inf(-1)
	assert.False(t, e.HasFiniteFit())
}

func TestSums_AddSub(t *testing.T) {
	o := ScaledObservation{PriceScaled: 0.1, TimeScaled: 0.2, TimePriceProduct: 0.02, TimeSquared: 0.04}

	s := Sums{}.Add(o).Add(o).Sub(o)
	assert.InDelta(t, 0.1, s.PriceScaled, 1e-12)
	assert.InDelta(t, 0.2, s.TimeScaled, 1e-12)
	assert.InDelta(t, 0.02, s.TimePriceProduct, 1e-12)
	assert.InDelta(t, 0.04, s.TimeSquared, 1e-12)
}
