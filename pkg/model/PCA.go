package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"skucluster/pkg/core"
)

// PCA projects data onto its top-K principal components, computed from the
// thin SVD of the centred data.
type PCA struct {
	K              int
	Means          []float64
	Components     [][]float64 // K x p, each a unit vector (or zero past the data rank)
	Explained      []float64   // variance captured by each component
	ExplainedRatio []float64   // Explained / total variance
}

var _ Transformer = (*PCA)(nil)

// NewPCA creates and returns a new PCA model.
func NewPCA(k int) *PCA {
	return &PCA{K: k}
}

// Fit computes the top K principal components of X.
// K must lie in [1, number of features].
func (pca *PCA) Fit(X [][]float64) error {
	n, d, err := validateMatrix("pca", X)
	if err != nil {
		return err
	}
	if pca.K < 1 || pca.K > d {
		return fmt.Errorf("%w: pca: components must be in [1, %d], got %d", core.ErrConfiguration, d, pca.K)
	}

	// --- Step 1: Data Centering ---
	pca.Means = make([]float64, d)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			pca.Means[j] += X[i][j]
		}
	}
	for j := range pca.Means {
		pca.Means[j] /= float64(n)
	}
	Z := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			Z.Set(i, j, X[i][j]-pca.Means[j])
		}
	}

	// --- Step 2: Thin SVD, Z = U Σ Vᵀ ---
	var svd mat.SVD
	if ok := svd.Factorize(Z, mat.SVDThin); !ok {
		return errors.New("pca: svd factorization failed")
	}
	values := svd.Values(nil)
	var v mat.Dense
	svd.VTo(&v)

	total := 0.0
	for _, s := range values {
		total += s * s
	}
	dof := float64(max(n-1, 1))

	// --- Step 3: Keep the first K right singular vectors ---
	pca.Components = make([][]float64, pca.K)
	pca.Explained = make([]float64, pca.K)
	pca.ExplainedRatio = make([]float64, pca.K)
	for c := 0; c < pca.K; c++ {
		comp := make([]float64, d)
		if c < len(values) {
			for j := 0; j < d; j++ {
				comp[j] = v.At(j, c)
			}
			flipSign(comp)
			pca.Explained[c] = values[c] * values[c] / dof
			if total > 0 {
				pca.ExplainedRatio[c] = values[c] * values[c] / total
			}
		}
		pca.Components[c] = comp
	}
	return nil
}

// Transform projects the input data onto the principal components.
func (pca *PCA) Transform(X [][]float64) ([][]float64, error) {
	if pca.Components == nil {
		return nil, errors.New("pca: transform before fit")
	}
	n, d, err := validateMatrix("pca", X)
	if err != nil {
		return nil, err
	}
	if d != len(pca.Means) {
		return nil, fmt.Errorf("%w: pca: input has %d features, fitted on %d", core.ErrDataShape, d, len(pca.Means))
	}

	transformed := make([][]float64, n)
	parallelRows(n, func(start, end int) {
		for i := start; i < end; i++ {
			t := make([]float64, pca.K)
			for k, comp := range pca.Components {
				s := 0.0
				for j := 0; j < d; j++ {
					s += (X[i][j] - pca.Means[j]) * comp[j]
				}
				t[k] = s
			}
			transformed[i] = t
		}
	})
	return transformed, nil
}

// FitTransform fits on X and projects it.
func (pca *PCA) FitTransform(X [][]float64) ([][]float64, error) {
	if err := pca.Fit(X); err != nil {
		return nil, err
	}
	return pca.Transform(X)
}

// RetainedVariance is the fraction of total variance captured by the kept
// components, in [0, 1].
func (pca *PCA) RetainedVariance() float64 {
	s := 0.0
	for _, r := range pca.ExplainedRatio {
		s += r
	}
	return math.Min(s, 1)
}

// flipSign makes the largest-magnitude loading positive so projections are
// deterministic across SVD implementations.
func flipSign(v []float64) {
	best := 0
	for j := range v {
		if math.Abs(v[j]) > math.Abs(v[best]) {
			best = j
		}
	}
	if v[best] < 0 {
		for j := range v {
			v[j] = -v[j]
		}
	}
}
