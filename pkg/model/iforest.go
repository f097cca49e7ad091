package model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"

	"skucluster/pkg/core"
)

// Labels assigned by IsolationForest.Predict.
const (
	Inlier  = 1
	Outlier = -1
)

// autoThreshold is the anomaly score above which a row is an outlier when no
// contamination is configured.
const autoThreshold = 0.5

// scoreTolerance absorbs rounding in the averaged path length, so rows that
// no tree can separate score exactly at the threshold and stay inliers.
const scoreTolerance = 1e-9

// IsolationForest flags anomalies by how quickly random partitioning isolates them.
type IsolationForest struct {
	// Hyperparameters / options
	NEstimators   int
	MaxSamples    int     // rows per tree; 0 => min(256, n)
	MaxFeatures   int     // features per tree; 0 or > p => all features
	Contamination float64 // 0 => auto threshold; (0, 0.5] => expected outlier fraction
	RandomState   int64

	// Internal state
	Trees     []*isolationTree
	Threshold float64 // scores above it are outliers
	psi       int
	p         int
}

// IsolationForestOption functional config for IsolationForest.
type IsolationForestOption func(*IsolationForest)

func WithEstimators(n int) IsolationForestOption {
	return func(f *IsolationForest) { f.NEstimators = n }
}
func WithMaxSamples(n int) IsolationForestOption {
	return func(f *IsolationForest) { f.MaxSamples = n }
}
func WithMaxFeatures(n int) IsolationForestOption {
	return func(f *IsolationForest) { f.MaxFeatures = n }
}
func WithContamination(c float64) IsolationForestOption {
	return func(f *IsolationForest) { f.Contamination = c }
}
func WithRandomState(seed int64) IsolationForestOption {
	return func(f *IsolationForest) { f.RandomState = seed }
}

// NewIsolationForest initializes the forest with sensible defaults.
func NewIsolationForest(opts ...IsolationForestOption) *IsolationForest {
	f := &IsolationForest{
		NEstimators: 100,
		RandomState: 0,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Validate checks the hyperparameters without touching data.
func (f *IsolationForest) Validate() error {
	if f.NEstimators < 1 {
		return fmt.Errorf("%w: isolation forest: estimators must be positive, got %d", core.ErrConfiguration, f.NEstimators)
	}
	if f.MaxSamples < 0 {
		return fmt.Errorf("%w: isolation forest: max samples must not be negative, got %d", core.ErrConfiguration, f.MaxSamples)
	}
	if f.MaxFeatures < 0 {
		return fmt.Errorf("%w: isolation forest: max features must not be negative, got %d", core.ErrConfiguration, f.MaxFeatures)
	}
	if f.Contamination < 0 || f.Contamination > 0.5 {
		return fmt.Errorf("%w: isolation forest: contamination must be in [0, 0.5], got %g", core.ErrConfiguration, f.Contamination)
	}
	return nil
}

// Fit builds the ensemble. Every tree gets its own seed derived from
// RandomState, so the forest is the same however the goroutines are scheduled.
func (f *IsolationForest) Fit(X [][]float64) error {
	if err := f.Validate(); err != nil {
		return err
	}
	n, p, err := validateMatrix("isolation forest", X)
	if err != nil {
		return err
	}

	f.psi = f.MaxSamples
	if f.psi == 0 {
		f.psi = 256
	}
	f.psi = min(f.psi, n)
	f.p = p
	// Requesting more features than exist is clamped, never an error.
	nFeatures := f.MaxFeatures
	if nFeatures == 0 || nFeatures > p {
		nFeatures = p
	}
	heightLimit := int(math.Ceil(math.Log2(float64(max(f.psi, 2)))))

	f.Trees = make([]*isolationTree, f.NEstimators)
	var g errgroup.Group
	for i := 0; i < f.NEstimators; i++ {
		idx := i
		g.Go(func() error {
			// Use a new rand source for each goroutine to avoid contention
			treeRand := rand.New(rand.NewSource(f.RandomState + int64(idx)))
			sample := treeRand.Perm(n)[:f.psi]
			features := treeRand.Perm(p)[:nFeatures]
			sort.Ints(features)
			f.Trees[idx] = buildIsolationTree(X, sample, features, heightLimit, treeRand)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.Threshold = autoThreshold
	if f.Contamination > 0 {
		scores := f.Score(X)
		f.Threshold = percentile(scores, 100*(1-f.Contamination))
	}
	return nil
}

// Score returns the anomaly score 2^(-E[h(x)]/c(psi)) of every row in (0, 1].
// Scores near 1 are anomalies, scores at or below 0.5 are normal.
func (f *IsolationForest) Score(X [][]float64) []float64 {
	scores := make([]float64, len(X))
	norm := avgPathLength(f.psi)
	parallelRows(len(X), func(s, e int) {
		for i := s; i < e; i++ {
			if norm == 0 {
				scores[i] = autoThreshold
				continue
			}
			total := 0.0
			for _, t := range f.Trees {
				total += t.pathLength(X[i])
			}
			mean := total / float64(len(f.Trees))
			scores[i] = math.Pow(2, -mean/norm)
		}
	})
	return scores
}

// Predict labels every row Inlier or Outlier.
func (f *IsolationForest) Predict(X [][]float64) ([]int, error) {
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("isolation forest: predict before fit")
	}
	if _, p, err := validateMatrix("isolation forest", X); err != nil {
		return nil, err
	} else if p != f.p {
		return nil, fmt.Errorf("%w: isolation forest: input has %d features, fitted on %d", core.ErrDataShape, p, f.p)
	}
	scores := f.Score(X)
	labels := make([]int, len(X))
	for i, s := range scores {
		if s > f.Threshold+scoreTolerance {
			labels[i] = Outlier
		} else {
			labels[i] = Inlier
		}
	}
	return labels, nil
}

// FitPredict fits on X and labels the same rows.
func (f *IsolationForest) FitPredict(X [][]float64) ([]int, error) {
	if err := f.Fit(X); err != nil {
		return nil, err
	}
	return f.Predict(X)
}

// percentile returns the p-th percentile (0 <= p <= 100) with linear interpolation.
func percentile(x []float64, p float64) float64 {
	cp := append([]float64(nil), x...)
	sort.Float64s(cp)
	n := len(cp)
	if n == 0 {
		return math.NaN()
	}
	rank := p / 100 * float64(n-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= n {
		return cp[n-1]
	}
	weight := rank - float64(lower)
	return cp[lower]*(1-weight) + cp[upper]*weight
}
