package model

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"skucluster/pkg/core"
)

// Internal validation metric names.
const (
	Silhouette       = "silhouette"
	CalinskiHarabasz = "calinski_harabasz"
	DaviesBouldin    = "davies_bouldin"
)

// Evaluation holds the internal quality scores of one clustering. Metrics that
// cannot be computed for the label set are absent from Scores and present in
// Undefined instead.
type Evaluation struct {
	Scores    map[string]float64
	Undefined map[string]error
	NClusters int
}

// Score returns the named score and whether it was defined.
func (e *Evaluation) Score(name string) (float64, bool) {
	v, ok := e.Scores[name]
	return v, ok
}

// Err joins the errors of all undefined metrics, nil if every metric was computed.
func (e *Evaluation) Err() error {
	if len(e.Undefined) == 0 {
		return nil
	}
	names := make([]string, 0, len(e.Undefined))
	for n := range e.Undefined {
		names = append(names, n)
	}
	sort.Strings(names)
	errs := make([]error, len(names))
	for i, n := range names {
		errs[i] = e.Undefined[n]
	}
	return errors.Join(errs...)
}

// Evaluate computes silhouette, Calinski-Harabasz and Davies-Bouldin scores
// of labels over X. All three are always attempted; degenerate label sets
// mark the affected metrics undefined without aborting the others.
func Evaluate(X [][]float64, labels []int) (*Evaluation, error) {
	n, _, err := validateMatrix("evaluate", X)
	if err != nil {
		return nil, err
	}
	if len(labels) != n {
		return nil, fmt.Errorf("%w: evaluate: %d labels for %d rows", core.ErrDataShape, len(labels), n)
	}

	// Normalize labels to the smallest integers so clusters index slices.
	norm, _ := compactLabels(labels, nil)
	k := len(uniqueLabels(norm))
	ev := &Evaluation{
		Scores:    make(map[string]float64, 3),
		Undefined: make(map[string]error),
		NClusters: k,
	}

	undefined := func(metric string) error {
		return fmt.Errorf("%w: %s needs 2 <= clusters <= rows-1, got %d clusters for %d rows", core.ErrMetricUndefined, metric, k, n)
	}

	if k < 2 || k > n-1 {
		ev.Undefined[Silhouette] = undefined(Silhouette)
		ev.Undefined[CalinskiHarabasz] = undefined(CalinskiHarabasz)
	} else {
		ev.Scores[Silhouette] = silhouetteScore(X, norm, k)
		ev.Scores[CalinskiHarabasz] = calinskiHarabaszScore(X, norm, k)
	}
	if k < 2 {
		ev.Undefined[DaviesBouldin] = fmt.Errorf("%w: %s needs at least 2 clusters, got %d", core.ErrMetricUndefined, DaviesBouldin, k)
	} else {
		ev.Scores[DaviesBouldin] = daviesBouldinScore(X, norm, k)
	}
	return ev, nil
}

// silhouetteScore is the mean over rows of (b-a)/max(a,b). Rows alone in their
// cluster score 0.
func silhouetteScore(X [][]float64, labels []int, k int) float64 {
	n := len(X)
	sizes := clusterSizes(labels, k)
	s := make([]float64, n)
	parallelRows(n, func(start, end int) {
		sums := make([]float64, k)
		for i := start; i < end; i++ {
			for c := range sums {
				sums[c] = 0
			}
			for j := 0; j < n; j++ {
				if i != j {
					sums[labels[j]] += math.Sqrt(euclidSquared(X[i], X[j]))
				}
			}
			own := labels[i]
			if sizes[own] == 1 {
				s[i] = 0
				continue
			}
			a := sums[own] / float64(sizes[own]-1)
			b := math.Inf(1)
			for c := 0; c < k; c++ {
				if c != own {
					b = math.Min(b, sums[c]/float64(sizes[c]))
				}
			}
			if m := math.Max(a, b); m > 0 {
				s[i] = (b - a) / m
			}
		}
	})
	total := 0.0
	for _, v := range s {
		total += v
	}
	return total / float64(n)
}

// calinskiHarabaszScore is [B/(k-1)] / [W/(n-k)] with B the between-cluster
// and W the within-cluster dispersion. A zero W scores 1.
func calinskiHarabaszScore(X [][]float64, labels []int, k int) float64 {
	n := len(X)
	centroids, sizes := clusterCentroids(X, labels, k)
	mean := make([]float64, len(X[0]))
	for _, x := range X {
		for j, v := range x {
			mean[j] += v / float64(n)
		}
	}
	between, within := 0.0, 0.0
	for c := 0; c < k; c++ {
		between += float64(sizes[c]) * euclidSquared(centroids[c], mean)
	}
	for i, x := range X {
		within += euclidSquared(x, centroids[labels[i]])
	}
	if within == 0 {
		return 1
	}
	return between * float64(n-k) / (within * float64(k-1))
}

// daviesBouldinScore averages, over clusters, the worst (S_i+S_j)/M_ij where S
// is the mean member-to-centroid distance and M the centroid distance.
func daviesBouldinScore(X [][]float64, labels []int, k int) float64 {
	centroids, sizes := clusterCentroids(X, labels, k)
	scatter := make([]float64, k)
	for i, x := range X {
		scatter[labels[i]] += math.Sqrt(euclidSquared(x, centroids[labels[i]]))
	}
	allZero := true
	for c := range scatter {
		scatter[c] /= float64(sizes[c])
		if scatter[c] > 1e-12 {
			allZero = false
		}
	}
	if allZero {
		return 0
	}
	total := 0.0
	for i := 0; i < k; i++ {
		worst := 0.0
		for j := 0; j < k; j++ {
			if i == j {
				continue
			}
			dist := math.Sqrt(euclidSquared(centroids[i], centroids[j]))
			if dist == 0 {
				continue
			}
			worst = math.Max(worst, (scatter[i]+scatter[j])/dist)
		}
		total += worst
	}
	return total / float64(k)
}

func clusterSizes(labels []int, k int) []int {
	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}
	return sizes
}

func clusterCentroids(X [][]float64, labels []int, k int) ([][]float64, []int) {
	p := len(X[0])
	sizes := clusterSizes(labels, k)
	centroids := make([][]float64, k)
	for c := range centroids {
		centroids[c] = make([]float64, p)
	}
	for i, x := range X {
		for j, v := range x {
			centroids[labels[i]][j] += v
		}
	}
	for c := range centroids {
		for j := range centroids[c] {
			centroids[c][j] /= float64(sizes[c])
		}
	}
	return centroids, sizes
}
