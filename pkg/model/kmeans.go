package model

import (
	"fmt"
	"math"
	"math/rand"

	"skucluster/pkg/core"
)

var _ Clusterer = (*KMeans)(nil)

// KMeans is an unsupervised learning model that partitions data points into K clusters.
type KMeans struct {
	K       int
	MaxIter int
	NInit   int   // k-means++ restarts; the lowest inertia wins
	Seed    int64 // seeds centroid initialisation

	Centroids [][]float64
	Inertia   float64 // Sum of squared distances to nearest centroid
}

// NewKMeans creates and returns a new KMeans model with specified K and seed.
func NewKMeans(k int, seed int64) *KMeans {
	return &KMeans{
		K:       k,
		MaxIter: 300,
		NInit:   10,
		Seed:    seed,
	}
}

// Validate checks the hyperparameters without touching data.
func (m *KMeans) Validate() error {
	if m.K < 1 {
		return fmt.Errorf("%w: kmeans: cluster count must be positive, got %d", core.ErrConfiguration, m.K)
	}
	if m.MaxIter < 1 {
		return fmt.Errorf("%w: kmeans: max iterations must be positive, got %d", core.ErrConfiguration, m.MaxIter)
	}
	if m.NInit < 1 {
		return fmt.Errorf("%w: kmeans: n_init must be positive, got %d", core.ErrConfiguration, m.NInit)
	}
	return nil
}

// FitLabels runs NInit seeded restarts and keeps the one with the lowest inertia.
// Identical points cannot be separated: they all land in one cluster and the
// result reports a single label.
func (m *KMeans) FitLabels(X [][]float64) (*Result, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	n, _, err := validateMatrix("kmeans", X)
	if err != nil {
		return nil, err
	}
	if n < m.K {
		return nil, fmt.Errorf("%w: kmeans: %d rows is less than K=%d", core.ErrConfiguration, n, m.K)
	}

	rnd := rand.New(rand.NewSource(m.Seed))
	var best *Result
	bestInertia := math.Inf(1)
	for run := 0; run < m.NInit; run++ {
		centroids := m.initCenters(X, rnd)
		res, inertia := m.lloyd(X, centroids)
		if inertia < bestInertia {
			best, bestInertia = res, inertia
		}
	}

	m.Centroids = best.Centers
	m.Inertia = bestInertia
	best.Labels, best.Centers = compactLabels(best.Labels, best.Centers)
	return best, nil
}

// lloyd alternates assignment and update steps until no assignment changes
// or MaxIter is reached.
func (m *KMeans) lloyd(X [][]float64, centroids [][]float64) (*Result, float64) {
	n, p := len(X), len(X[0])
	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}
	res := &Result{}

	// Main K-Means loop
	for it := 0; it < m.MaxIter; it++ {
		res.Iterations = it + 1

		// === Parallel Assignment Step ===
		changed := assignNearest(X, centroids, assign)

		// If no assignments changed, the algorithm has converged.
		if !changed {
			res.Converged = true
			break
		}

		// === Update Step ===
		// Calculate the new centroids based on the mean of the assigned points.
		sums := make([][]float64, m.K)
		counts := make([]int, m.K)
		for k := 0; k < m.K; k++ {
			sums[k] = make([]float64, p)
		}
		for i := 0; i < n; i++ {
			k := assign[i]
			counts[k]++
			for j := 0; j < p; j++ {
				sums[k][j] += X[i][j]
			}
		}
		for k := 0; k < m.K; k++ {
			if counts[k] == 0 {
				continue // Skip if a cluster is empty
			}
			for j := 0; j < p; j++ {
				centroids[k][j] = sums[k][j] / float64(counts[k])
			}
		}
	}

	// Hitting MaxIter leaves the last update unassigned; labels must match
	// the returned centroids.
	if !res.Converged {
		assignNearest(X, centroids, assign)
	}

	inertia := 0.0
	for i := 0; i < n; i++ {
		inertia += euclidSquared(X[i], centroids[assign[i]])
	}
	res.Labels = assign
	res.Centers = centroids
	return res, inertia
}

// assignNearest writes the nearest centroid of every row into assign and
// reports whether any assignment changed. Ties go to the lowest centroid index.
func assignNearest(X [][]float64, centroids [][]float64, assign []int) bool {
	n := len(X)
	changedRows := make([]bool, n)
	parallelRows(n, func(start, end int) {
		for i := start; i < end; i++ {
			best, bestdSquared := 0, math.MaxFloat64
			for k, c := range centroids {
				dSquared := euclidSquared(X[i], c)
				if dSquared < bestdSquared {
					bestdSquared = dSquared
					best = k
				}
			}
			if assign[i] != best {
				changedRows[i] = true
			}
			assign[i] = best
		}
	})
	for _, c := range changedRows {
		if c {
			return true
		}
	}
	return false
}

// Predict assigns each data point to its nearest fitted centroid.
func (m *KMeans) Predict(X [][]float64) ([]int, error) {
	if len(m.Centroids) == 0 {
		return nil, fmt.Errorf("kmeans: predict before fit")
	}
	_, p, err := validateMatrix("kmeans", X)
	if err != nil {
		return nil, err
	}
	if p != len(m.Centroids[0]) {
		return nil, fmt.Errorf("%w: kmeans: input has %d features, centroids have %d", core.ErrDataShape, p, len(m.Centroids[0]))
	}
	assign := make([]int, len(X))
	assignNearest(X, m.Centroids, assign)
	return assign, nil
}

// initCenters picks K starting centroids with k-means++ seeding.
func (m *KMeans) initCenters(X [][]float64, rnd *rand.Rand) [][]float64 {
	n := len(X)
	centroids := make([][]float64, m.K)

	// First center: pick randomly
	idx := rnd.Intn(n)
	centroids[0] = append([]float64{}, X[idx]...)

	// Remaining centers, sampled proportionally to squared distance from the
	// nearest center chosen so far.
	distSq := make([]float64, n)
	for k := 1; k < m.K; k++ {
		total := 0.0
		for i, x := range X {
			minDist := math.MaxFloat64
			for _, c := range centroids[:k] {
				if d2 := euclidSquared(x, c); d2 < minDist {
					minDist = d2
				}
			}
			distSq[i] = minDist
			total += minDist
		}

		chosen := n - 1
		r := rnd.Float64() * total
		cumulative := 0.0
		for i, d2 := range distSq {
			cumulative += d2
			if cumulative >= r && d2 > 0 {
				chosen = i
				break
			}
		}
		if total == 0 {
			// Every point coincides with a center already chosen.
			chosen = idx
		}
		centroids[k] = append([]float64{}, X[chosen]...)
	}
	return centroids
}
