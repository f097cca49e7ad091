package model

import (
	"fmt"
	"math"
	"math/rand"

	"skucluster/pkg/core"
)

var _ Clusterer = (*AffinityPropagation)(nil)

// AffinityPropagation clusters by exchanging responsibility and availability
// messages between every pair of rows until a stable set of exemplars emerges.
// The number of clusters is decided by the data.
type AffinityPropagation struct {
	Damping         float64 // in [0.5, 1)
	MaxIter         int
	ConvergenceIter int     // iterations the exemplar set must stay unchanged
	Preference      float64 // NaN => median of the off-diagonal similarities
	Seed            int64   // seeds the tie-breaking noise

	Exemplars []int // row indices of the exemplars after Fit
}

// NewAffinityPropagation returns an engine with the usual defaults.
func NewAffinityPropagation(damping float64) *AffinityPropagation {
	return &AffinityPropagation{
		Damping:         damping,
		MaxIter:         200,
		ConvergenceIter: 15,
		Preference:      math.NaN(),
	}
}

// Validate checks the hyperparameters without touching data.
func (ap *AffinityPropagation) Validate() error {
	if ap.Damping < 0.5 || ap.Damping >= 1 || math.IsNaN(ap.Damping) {
		return fmt.Errorf("%w: affinity propagation: damping must be in [0.5, 1), got %g", core.ErrConfiguration, ap.Damping)
	}
	if ap.MaxIter < 1 {
		return fmt.Errorf("%w: affinity propagation: max iterations must be positive, got %d", core.ErrConfiguration, ap.MaxIter)
	}
	if ap.ConvergenceIter < 1 {
		return fmt.Errorf("%w: affinity propagation: convergence iterations must be positive, got %d", core.ErrConfiguration, ap.ConvergenceIter)
	}
	return nil
}

// FitLabels runs message passing for at most MaxIter rounds. Hitting the cap
// is not an error: the exemplars found so far are used. When no exemplar
// emerges, or every row is identical, all rows form a single cluster.
func (ap *AffinityPropagation) FitLabels(X [][]float64) (*Result, error) {
	if err := ap.Validate(); err != nil {
		return nil, err
	}
	n, _, err := validateMatrix("affinity propagation", X)
	if err != nil {
		return nil, err
	}

	S := make([][]float64, n)
	offDiag := make([]float64, 0, n*(n-1))
	allEqual := true
	for i := 0; i < n; i++ {
		S[i] = make([]float64, n)
		for k := 0; k < n; k++ {
			if i == k {
				continue
			}
			S[i][k] = -euclidSquared(X[i], X[k])
			offDiag = append(offDiag, S[i][k])
			if S[i][k] != 0 {
				allEqual = false
			}
		}
	}
	if n == 1 || allEqual {
		return ap.single(X, S), nil
	}

	pref := ap.Preference
	if math.IsNaN(pref) {
		pref = percentile(offDiag, 50)
	}
	rnd := rand.New(rand.NewSource(ap.Seed))
	for i := 0; i < n; i++ {
		S[i][i] = pref
		// Remove degeneracies so ties between candidate exemplars are broken.
		for k := 0; k < n; k++ {
			S[i][k] += (epsilon*S[i][k] + tiny*100) * rnd.NormFloat64()
		}
	}

	R, A := square(n), square(n)
	window := make([][]bool, ap.ConvergenceIter)
	for w := range window {
		window[w] = make([]bool, n)
	}
	res := &Result{}
	exemplar := make([]bool, n)

	for it := 0; it < ap.MaxIter; it++ {
		res.Iterations = it + 1
		ap.updateResponsibilities(S, A, R)
		ap.updateAvailabilities(R, A)

		nExemplars := 0
		for k := 0; k < n; k++ {
			exemplar[k] = A[k][k]+R[k][k] > 0
			if exemplar[k] {
				nExemplars++
			}
		}
		copy(window[it%ap.ConvergenceIter], exemplar)

		if it+1 >= ap.ConvergenceIter && nExemplars > 0 && stable(window, n) {
			res.Converged = true
			break
		}
	}

	var I []int
	for k := 0; k < n; k++ {
		if exemplar[k] {
			I = append(I, k)
		}
	}
	if len(I) == 0 {
		r := ap.single(X, S)
		r.Iterations, r.Converged = res.Iterations, res.Converged
		return r, nil
	}

	// Refine: each cluster's exemplar becomes the member with the highest
	// total similarity to the other members.
	c := nearestExemplar(S, I)
	for k := range I {
		var members []int
		for i, ci := range c {
			if ci == k {
				members = append(members, i)
			}
		}
		best, bestSum := I[k], math.Inf(-1)
		for _, j := range members {
			sum := 0.0
			for _, m := range members {
				sum += S[m][j]
			}
			if sum > bestSum {
				best, bestSum = j, sum
			}
		}
		I[k] = best
	}
	c = nearestExemplar(S, I)

	ap.Exemplars = I
	centers := make([][]float64, len(I))
	for k, idx := range I {
		centers[k] = append([]float64(nil), X[idx]...)
	}
	res.Labels, res.Centers = compactLabels(c, centers)
	return res, nil
}

const (
	epsilon = 2.220446049250313e-16
	tiny    = 2.2250738585072014e-308
)

// updateResponsibilities sets R(i,k) = S(i,k) - max_{k'≠k} [A(i,k') + S(i,k')], damped.
func (ap *AffinityPropagation) updateResponsibilities(S, A, R [][]float64) {
	n := len(S)
	parallelRows(n, func(start, end int) {
		for i := start; i < end; i++ {
			first, second, arg := math.Inf(-1), math.Inf(-1), -1
			for k := 0; k < n; k++ {
				v := A[i][k] + S[i][k]
				if v > first {
					second = first
					first, arg = v, k
				} else if v > second {
					second = v
				}
			}
			for k := 0; k < n; k++ {
				m := first
				if k == arg {
					m = second
				}
				R[i][k] = ap.Damping*R[i][k] + (1-ap.Damping)*(S[i][k]-m)
			}
		}
	})
}

// updateAvailabilities sets A(i,k) = min(0, R(k,k) + Σ_{i'∉{i,k}} max(0, R(i',k)))
// and A(k,k) = Σ_{i'≠k} max(0, R(i',k)), damped. Columns are independent.
func (ap *AffinityPropagation) updateAvailabilities(R, A [][]float64) {
	n := len(R)
	parallelRows(n, func(start, end int) {
		for k := start; k < end; k++ {
			sum := R[k][k]
			for i := 0; i < n; i++ {
				if i != k {
					sum += math.Max(R[i][k], 0)
				}
			}
			for i := 0; i < n; i++ {
				var a float64
				if i == k {
					a = sum - R[k][k]
				} else {
					a = math.Min(sum-math.Max(R[i][k], 0), 0)
				}
				A[i][k] = ap.Damping*A[i][k] + (1-ap.Damping)*a
			}
		}
	})
}

// single puts every row in one cluster whose exemplar is the row with the
// highest total similarity to all others.
func (ap *AffinityPropagation) single(X [][]float64, S [][]float64) *Result {
	best, bestSum := 0, math.Inf(-1)
	for j := range X {
		sum := 0.0
		for i := range X {
			if i != j {
				sum += S[i][j]
			}
		}
		if sum > bestSum {
			best, bestSum = j, sum
		}
	}
	ap.Exemplars = []int{best}
	return &Result{
		Labels:     make([]int, len(X)),
		Centers:    [][]float64{append([]float64(nil), X[best]...)},
		Iterations: 0,
		Converged:  true,
	}
}

// stable reports whether every row was an exemplar in all or none of the
// recorded iterations.
func stable(window [][]bool, n int) bool {
	for k := 0; k < n; k++ {
		count := 0
		for _, w := range window {
			if w[k] {
				count++
			}
		}
		if count != 0 && count != len(window) {
			return false
		}
	}
	return true
}

// nearestExemplar labels each row with the index (into I) of its most similar
// exemplar; exemplars label themselves.
func nearestExemplar(S [][]float64, I []int) []int {
	c := make([]int, len(S))
	for i := range S {
		best, bestSim := 0, math.Inf(-1)
		for k, idx := range I {
			if S[i][idx] > bestSim {
				best, bestSim = k, S[i][idx]
			}
		}
		c[i] = best
	}
	for k, idx := range I {
		c[idx] = k
	}
	return c
}

func square(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}
