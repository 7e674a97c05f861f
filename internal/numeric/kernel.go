// Package numeric provides the primitive safe-math kernel shared by the
// modeling pipeline. Every operation leaves its inputs unmutated and returns
// a caller-supplied fallback instead of NaN/Inf on degenerate input.
package numeric

import (
	"math"
	"sort"
)

// SafeDiv returns num/den, or fallback when the denominator is zero or either
// operand is not finite.
func SafeDiv(num, den, fallback float64) float64 {
	if den == 0 || math.IsNaN(den) || math.IsInf(den, 0) || math.IsNaN(num) || math.IsInf(num, 0) {
		return fallback
	}
	return num / den
}

// Clamp bounds v to [lo, hi].
func Clamp(lo, hi, v float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 bounds v to [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(0, 1, v)
}

// Percentile returns the p-th percentile (0-100) of values using linear index
// selection on a sorted copy: floor(p/100 * (n-1)). Returns fallback for an
// empty slice.
func Percentile(values []float64, p, fallback float64) float64 {
	n := len(values)
	if n == 0 {
		return fallback
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(math.Floor(Clamp(0, 100, p) / 100 * float64(n-1)))
	return sorted[idx]
}

// Median is Percentile(values, 50).
func Median(values []float64, fallback float64) float64 {
	return Percentile(values, 50, fallback)
}

// IQR returns p75 - p25, or fallback for an empty slice.
func IQR(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	return Percentile(values, 75, 0) - Percentile(values, 25, 0)
}

// Mean returns the arithmetic mean, or fallback for an empty slice.
func Mean(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Sum returns the sum of values.
func Sum(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum
}

// WeightedSum returns sum(values[i] * weights[i]) over the common prefix.
func WeightedSum(values, weights []float64) float64 {
	n := len(values)
	if len(weights) < n {
		n = len(weights)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += values[i] * weights[i]
	}
	return sum
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// RoundTo rounds v to the nearest multiple of unit. A unit of 100 reproduces
// round(x, -2) semantics.
func RoundTo(v, unit float64) float64 {
	if unit <= 0 {
		return v
	}
	return math.Round(v/unit) * unit
}
