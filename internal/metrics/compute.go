// Package metrics computes summary statistics over regression outputs.
package metrics

import (
	"math"
	"sort"
)

// Distribution summarizes a series of finite values.
type Distribution struct {
	Count  int
	Mean   float64
	Median float64
	P10    float64
	P90    float64
	Min    float64
	Max    float64
	Stddev float64 // sample stddev, 0 below two values

	// Longest run of strictly negative values, in series order
	MaxNegativeRun int
}

// Compute summarizes values. Non-finite values are skipped.
// All fields are NaN except the counts when no finite value remains.
func Compute(values []float64) Distribution {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}

	n := len(finite)
	if n == 0 {
		nan := math.NaN()
		return Distribution{Mean: nan, Median: nan, P10: nan, P90: nan, Min: nan, Max: nan, Stddev: nan}
	}

	sorted := make([]float64, n)
	copy(sorted, finite)
	sort.Float64s(sorted)

	mean := computeMean(finite)

	return Distribution{
		Count:          n,
		Mean:           mean,
		Median:         computePercentile(sorted, 0.50),
		P10:            computePercentile(sorted, 0.10),
		P90:            computePercentile(sorted, 0.90),
		Min:            sorted[0],
		Max:            sorted[n-1],
		Stddev:         computeStddev(finite, mean),
		MaxNegativeRun: computeMaxNegativeRun(finite),
	}
}

// computeMean calculates arithmetic mean of values.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	// Index for percentile (0-based, continuous)
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxNegativeRun finds the longest streak of values < 0.
func computeMaxNegativeRun(values []float64) int {
	maxStreak := 0
	currentStreak := 0

	for _, v := range values {
		if v < 0 {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}
