package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Quantile returns the q-quantile (0 <= q <= 1) of the observed values with
// linear interpolation. NaN if nothing is observed.
func Quantile(x []float64, q float64) float64 {
	obs := Observed(x)
	if len(obs) == 0 || q < 0 || q > 1 {
		return math.NaN()
	}
	sort.Float64s(obs)
	return stat.Quantile(q, stat.LinInterp, obs, nil)
}

// Fences returns Tukey's fences Q1-k*IQR and Q3+k*IQR of the observed values.
func Fences(x []float64, k float64) (lo, hi float64) {
	q1, q3 := Quantile(x, 0.25), Quantile(x, 0.75)
	iqr := q3 - q1
	return q1 - k*iqr, q3 + k*iqr
}

// CountBeyondFences counts observed values strictly outside Fences(x, k).
func CountBeyondFences(x []float64, k float64) int {
	lo, hi := Fences(x, k)
	n := 0
	for _, v := range x {
		if v < lo || v > hi {
			n++
		}
	}
	return n
}
