// Package stats holds the numeric primitives shared by the aggregation and
// analytics layers. Everything here is pure and allocation-light.
package stats

import (
	"math"
	"sort"
)

// WeightedMean returns the weighted average of values. When all weights are
// zero it falls back to the plain mean. Inputs must be the same length.
func WeightedMean(values, weights []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum, wsum float64
	for i, v := range values {
		sum += v * weights[i]
		wsum += weights[i]
	}
	if wsum == 0 {
		return Mean(values)
	}
	return sum / wsum
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)))
}

// Pearson returns the Pearson correlation coefficient of two equal-length
// series. Zero-variance series correlate as 0.
func Pearson(a, b []float64) float64 {
	n := len(a)
	if n != len(b) || n < 2 {
		return 0
	}

	ma, mb := Mean(a), Mean(b)
	var cov, va, vb float64
	for i := 0; i < n; i++ {
		da := a[i] - ma
		db := b[i] - mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		return 0
	}
	return cov / math.Sqrt(va*vb)
}

// Consistency scores how tightly values cluster, 0-100. It maps the
// coefficient of variation onto the score: no dispersion is 100, dispersion
// at or past the mean is 0. Degenerate input resolves to the neutral 100.
func Consistency(values []float64) float64 {
	if len(values) < 2 {
		return 100
	}
	mean := math.Abs(Mean(values))
	if mean == 0 {
		return 100
	}
	return 100 * (1 - Clamp(StdDev(values)/mean, 0, 1))
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampScore bounds a score to [0, 100].
func ClampScore(v float64) float64 {
	return Clamp(v, 0, 100)
}

// SpreadPercent returns (max-min)/min*100, 0 when min is not positive.
func SpreadPercent(min, max float64) float64 {
	if min <= 0 {
		return 0
	}
	return (max - min) / min * 100
}

// PercentChange returns the percent change from to relative to from.
func PercentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

// Percentile returns the p-th percentile (0-100) using linear
// interpolation. The input is not mutated.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// MinMax returns the smallest and largest value in one pass.
func MinMax(values []float64) (min, max float64) {
	if len(values) == 0 {
		return 0, 0
	}
	min, max = values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
