package model

import (
	"fmt"
	"sort"

	"skucluster/pkg/core"
)

// Clusterer is implemented by every cluster engine. The engine's own
// hyperparameters live on the implementing struct.
type Clusterer interface {
	FitLabels(X [][]float64) (*Result, error)
}

// Transformer is for preprocessing steps (fit on data, then transform it).
type Transformer interface {
	Fit(X [][]float64) error
	Transform(X [][]float64) ([][]float64, error)
	FitTransform(X [][]float64) ([][]float64, error)
}

// Result is the output of one cluster engine invocation.
type Result struct {
	// Labels holds one label per input row, contiguous from zero.
	Labels []int
	// Centers are the fitted centroids, subcluster centroids or exemplars,
	// indexed by label.
	Centers [][]float64
	// Iterations run before stopping and whether the engine converged
	// before hitting its iteration cap.
	Iterations int
	Converged  bool
}

// NClusters returns the number of distinct labels.
func (r *Result) NClusters() int {
	return len(uniqueLabels(r.Labels))
}

// compactLabels renumbers labels to 0..k-1 keeping their relative order and
// drops the centers of labels no row uses.
func compactLabels(labels []int, centers [][]float64) ([]int, [][]float64) {
	uniq := uniqueLabels(labels)
	remap := make(map[int]int, len(uniq))
	out := make([][]float64, 0, len(uniq))
	for i, l := range uniq {
		remap[l] = i
		if l >= 0 && l < len(centers) {
			out = append(out, centers[l])
		}
	}
	relabeled := make([]int, len(labels))
	for i, l := range labels {
		relabeled[i] = remap[l]
	}
	return relabeled, out
}

// uniqueLabels returns the sorted distinct labels.
func uniqueLabels(labels []int) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, l := range labels {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}

// validateMatrix checks X is non-empty and rectangular and returns its shape.
func validateMatrix(name string, X [][]float64) (int, int, error) {
	if len(X) == 0 {
		return 0, 0, fmt.Errorf("%w: %s: empty input", core.ErrDataShape, name)
	}
	p := len(X[0])
	if p == 0 {
		return 0, 0, fmt.Errorf("%w: %s: rows have no features", core.ErrDataShape, name)
	}
	for i := range X {
		if len(X[i]) != p {
			return 0, 0, fmt.Errorf("%w: %s: row %d has %d features, want %d", core.ErrDataShape, name, i, len(X[i]), p)
		}
	}
	return len(X), p, nil
}

func euclidSquared(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
