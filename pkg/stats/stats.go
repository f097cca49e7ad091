package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// All functions in this file skip NaN cells, so they can be applied to columns
// that still contain missing markers.

// Observed returns the non-NaN values of x.
func Observed(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Mean computes the average of the observed values. NaN if none are observed.
func Mean(x []float64) float64 {
	obs := Observed(x)
	if len(obs) == 0 {
		return math.NaN()
	}
	return stat.Mean(obs, nil)
}

// Variance computes the population variance of the observed values.
func Variance(x []float64) float64 {
	obs := Observed(x)
	if len(obs) == 0 {
		return math.NaN()
	}
	_, v := stat.PopMeanVariance(obs, nil)
	return v
}

// Std computes the population standard deviation of the observed values.
func Std(x []float64) float64 {
	return math.Sqrt(Variance(x))
}

// Median returns the median of the observed values (allocates a copy).
func Median(x []float64) float64 {
	cp := Observed(x)
	n := len(cp)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(cp)
	mid := n >> 1
	if n&1 == 0 {
		return (cp[mid-1] + cp[mid]) * 0.5
	}
	return cp[mid]
}

// Mode returns the most frequent observed value; ties go to the smallest value.
func Mode(x []float64) float64 {
	obs := Observed(x)
	if len(obs) == 0 {
		return math.NaN()
	}
	counts := make(map[float64]int)
	for _, v := range obs {
		counts[v]++
	}
	mode, maxCount := math.Inf(1), 0
	for v, c := range counts {
		if c > maxCount || (c == maxCount && v < mode) {
			mode, maxCount = v, c
		}
	}
	return mode
}

// MinMax returns the minimum and maximum observed values.
func MinMax(x []float64) (float64, float64) {
	obs := Observed(x)
	if len(obs) == 0 {
		return math.NaN(), math.NaN()
	}
	lo, hi := obs[0], obs[0]
	for _, v := range obs[1:] {
		if v < lo {
			lo = v
		} else if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// MaxAbs returns the largest absolute observed value, 0 if none are observed.
func MaxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// Correlation computes the Pearson correlation over the rows where both x and
// y are observed. Returns 0 when fewer than two such rows exist or either side
// has no variance.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) {
		return 0
	}
	var xs, ys []float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return 0
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}
