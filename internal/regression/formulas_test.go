package regression

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/normalization"
)

func sumsOf(ticks []domain.Tick, origin int64) domain.Sums {
	var s domain.Sums
	for _, obs := range normalization.ScaleBatchFrom(ticks, origin) {
		s = s.Add(obs)
	}
	return s
}

func TestCoefficients_PerfectLine(t *testing.T) {
	// price = 100 + 0.01 * (ts - origin)
	ticks := []domain.Tick{
		{Price: 100, TimestampMs: 0},
		{Price: 200, TimestampMs: 10000},
		{Price: 300, TimestampMs: 20000},
	}

	fit := Coefficients(sumsOf(ticks, 0), 3)

	assert.InDelta(t, 100.0, fit.Intercept, 1e-9)
	assert.InDelta(t, 0.01, fit.Slope, 1e-12)
	assert.True(t, fit.Finite())
}

func TestCoefficients_NegativeSlope(t *testing.T) {
	ticks := []domain.Tick{
		{Price: 900, TimestampMs: 5000},
		{Price: 800, TimestampMs: 6000},
		{Price: 700, TimestampMs: 7000},
		{Price: 600, TimestampMs: 8000},
	}

	fit := Coefficients(sumsOf(ticks, 5000), 4)

	assert.InDelta(t, 900.0, fit.Intercept, 1e-9)
	assert.InDelta(t, -0.1, fit.Slope, 1e-12)
}

func TestCoefficients_ZeroDenominator(t *testing.T) {
	ticks := []domain.Tick{
		{Price: 100, TimestampMs: 42},
		{Price: 300, TimestampMs: 42},
	}

	fit := Coefficients(sumsOf(ticks, 42), 2)

	assert.True(t, math.IsNaN(fit.Intercept) || math.IsInf(fit.Intercept, 0))
	assert.True(t, math.IsNaN(fit.Slope) || math.IsInf(fit.Slope, 0))
	assert.False(t, fit.Finite())
}

func TestFit_FittedValue(t *testing.T) {
	fit := Fit{Intercept: 100, Slope: 0.01}

	// scaled time 0.5 is 50000 ms after the origin
	assert.InDelta(t, 600.0, fit.FittedValue(0.5), 1e-9)
	assert.InDelta(t, 100.0, fit.FittedValue(0), 1e-12)
}

func TestFit_AbsoluteIntercept(t *testing.T) {
	fit := Fit{Intercept: 100, Slope: 0.01}

	assert.InDelta(t, 100.0, fit.AbsoluteIntercept(0), 1e-12)
	assert.InDelta(t, 99.9, fit.AbsoluteIntercept(1_000_000), 1e-9)
}

func TestFit_Finite(t *testing.T) {
	tests := []struct {
		name string
		fit  Fit
		want bool
	}{
		{"finite", Fit{Intercept: 1, Slope: 2}, true},
		{"nan intercept", Fit{Intercept: math.NaN(), Slope: 2}, false},
		{"inf slope", Fit{Intercept: 1, Slope: math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fit.Finite())
		})
	}
}
