package model

import (
	"fmt"
	"math"

	"skucluster/pkg/core"
)

var _ Clusterer = (*Birch)(nil)

// Birch summarises the data in a clustering-feature (CF) tree built in one
// pass, then merges the leaf subclusters down to K clusters.
type Birch struct {
	K               int     // 0 => every leaf subcluster is a cluster
	Threshold       float64 // max radius of a leaf subcluster
	BranchingFactor int     // max entries per node

	Subclusters [][]float64 // leaf subcluster centroids after Fit
	subLabels   []int       // global cluster of every subcluster
}

// NewBirch creates a Birch model with the given target cluster count,
// threshold and branching factor.
func NewBirch(k int, threshold float64, branchingFactor int) *Birch {
	return &Birch{K: k, Threshold: threshold, BranchingFactor: branchingFactor}
}

// Validate checks the hyperparameters without touching data.
func (b *Birch) Validate() error {
	if b.K < 0 {
		return fmt.Errorf("%w: birch: cluster count must not be negative, got %d", core.ErrConfiguration, b.K)
	}
	if !(b.Threshold > 0) {
		return fmt.Errorf("%w: birch: threshold must be positive, got %g", core.ErrConfiguration, b.Threshold)
	}
	if b.BranchingFactor < 2 {
		return fmt.Errorf("%w: birch: branching factor must be at least 2, got %d", core.ErrConfiguration, b.BranchingFactor)
	}
	return nil
}

// cfEntry is a clustering feature: count, linear sum and squared-norm sum of
// the points it summarises. Entries of internal nodes point at a child node.
type cfEntry struct {
	n     int
	ls    []float64
	ss    float64
	child *cfNode
}

type cfNode struct {
	isLeaf  bool
	entries []*cfEntry
}

func newEntry(x []float64) *cfEntry {
	e := &cfEntry{n: 1, ls: append([]float64(nil), x...)}
	for _, v := range x {
		e.ss += v * v
	}
	return e
}

func (e *cfEntry) centroid() []float64 {
	c := make([]float64, len(e.ls))
	for j, v := range e.ls {
		c[j] = v / float64(e.n)
	}
	return c
}

// add merges o into e.
func (e *cfEntry) add(o *cfEntry) {
	e.n += o.n
	for j := range e.ls {
		e.ls[j] += o.ls[j]
	}
	e.ss += o.ss
}

// radiusWith returns the radius of e merged with x without modifying e.
func (e *cfEntry) radiusWith(x []float64) float64 {
	n := float64(e.n + 1)
	ss := e.ss
	norm := 0.0
	for j, v := range x {
		ss += v * v
		m := (e.ls[j] + v) / n
		norm += m * m
	}
	return math.Sqrt(math.Max(ss/n-norm, 0))
}

// refresh recomputes an internal entry's summary from its child.
func (e *cfEntry) refresh() {
	first := e.child.entries[0]
	e.n, e.ss = 0, 0
	e.ls = make([]float64, len(first.ls))
	for _, c := range e.child.entries {
		e.add(c)
	}
}

// FitLabels builds the CF tree, clusters its leaf subclusters and labels every
// row by its nearest subcluster.
func (b *Birch) FitLabels(X [][]float64) (*Result, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if _, _, err := validateMatrix("birch", X); err != nil {
		return nil, err
	}

	// --- Phase 1: one pass over the data builds the CF tree ---
	root := &cfNode{isLeaf: true}
	for _, x := range X {
		if split := b.insert(root, x); split != nil {
			left, right := &cfEntry{child: root}, &cfEntry{child: split}
			left.refresh()
			right.refresh()
			root = &cfNode{entries: []*cfEntry{left, right}}
		}
	}

	var leaves []*cfEntry
	collectLeaves(root, &leaves)
	b.Subclusters = make([][]float64, len(leaves))
	weights := make([]int, len(leaves))
	for i, e := range leaves {
		b.Subclusters[i] = e.centroid()
		weights[i] = e.n
	}

	// --- Phase 2: global clustering of the subcluster centroids ---
	k := b.K
	if k == 0 || k > len(leaves) {
		k = len(leaves)
	}
	b.subLabels = wardMerge(b.Subclusters, weights, k)

	// --- Phase 3: label rows by nearest subcluster ---
	nearest := make([]int, len(X))
	assignNearest(X, b.Subclusters, nearest)
	labels := make([]int, len(X))
	for i, s := range nearest {
		labels[i] = b.subLabels[s]
	}

	centers := make([][]float64, k)
	counts := make([]int, k)
	for s, l := range b.subLabels {
		if centers[l] == nil {
			centers[l] = make([]float64, len(X[0]))
		}
		for j, v := range b.Subclusters[s] {
			centers[l][j] += v * float64(weights[s])
		}
		counts[l] += weights[s]
	}
	for l := range centers {
		for j := range centers[l] {
			centers[l][j] /= float64(counts[l])
		}
	}

	labels, centers = compactLabels(labels, centers)
	return &Result{Labels: labels, Centers: centers, Iterations: 1, Converged: true}, nil
}

// insert adds x below node and returns a new sibling node when node had to split.
func (b *Birch) insert(node *cfNode, x []float64) *cfNode {
	closest := closestEntry(node.entries, x)

	if node.isLeaf {
		if closest >= 0 && node.entries[closest].radiusWith(x) <= b.Threshold {
			node.entries[closest].add(newEntry(x))
			return nil
		}
		node.entries = append(node.entries, newEntry(x))
		return b.splitIfFull(node)
	}

	entry := node.entries[closest]
	split := b.insert(entry.child, x)
	entry.refresh()
	if split == nil {
		return nil
	}
	sibling := &cfEntry{child: split}
	sibling.refresh()
	node.entries = append(node.entries, sibling)
	return b.splitIfFull(node)
}

// splitIfFull splits an overfull node around its two farthest entries,
// keeping one half in node and returning the other half as a new node.
func (b *Birch) splitIfFull(node *cfNode) *cfNode {
	if len(node.entries) <= b.BranchingFactor {
		return nil
	}
	centroids := make([][]float64, len(node.entries))
	for i, e := range node.entries {
		centroids[i] = e.centroid()
	}
	s1, s2, far := 0, 1, -1.0
	for i := range centroids {
		for j := i + 1; j < len(centroids); j++ {
			if d := euclidSquared(centroids[i], centroids[j]); d > far {
				s1, s2, far = i, j, d
			}
		}
	}
	var keep, move []*cfEntry
	for i, e := range node.entries {
		switch {
		case i == s1:
			keep = append(keep, e)
		case i == s2:
			move = append(move, e)
		case euclidSquared(centroids[i], centroids[s1]) <= euclidSquared(centroids[i], centroids[s2]):
			keep = append(keep, e)
		default:
			move = append(move, e)
		}
	}
	node.entries = keep
	return &cfNode{isLeaf: node.isLeaf, entries: move}
}

func closestEntry(entries []*cfEntry, x []float64) int {
	best, bestDist := -1, math.MaxFloat64
	for i, e := range entries {
		if d := euclidSquared(e.centroid(), x); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func collectLeaves(node *cfNode, out *[]*cfEntry) {
	if node.isLeaf {
		*out = append(*out, node.entries...)
		return
	}
	for _, e := range node.entries {
		collectLeaves(e.child, out)
	}
}

// wardMerge agglomerates weighted points until k groups remain, always
// merging the pair whose union increases the within-group variance least.
// It returns the group (0..k-1) of every point.
func wardMerge(points [][]float64, weights []int, k int) []int {
	type group struct {
		centroid []float64
		weight   float64
		members  []int
	}
	groups := make([]*group, len(points))
	for i, p := range points {
		groups[i] = &group{centroid: append([]float64(nil), p...), weight: float64(weights[i]), members: []int{i}}
	}

	for len(groups) > k {
		bi, bj, best := 0, 1, math.MaxFloat64
		for i := range groups {
			for j := i + 1; j < len(groups); j++ {
				gi, gj := groups[i], groups[j]
				cost := gi.weight * gj.weight / (gi.weight + gj.weight) * euclidSquared(gi.centroid, gj.centroid)
				if cost < best {
					bi, bj, best = i, j, cost
				}
			}
		}
		gi, gj := groups[bi], groups[bj]
		w := gi.weight + gj.weight
		for d := range gi.centroid {
			gi.centroid[d] = (gi.centroid[d]*gi.weight + gj.centroid[d]*gj.weight) / w
		}
		gi.weight = w
		gi.members = append(gi.members, gj.members...)
		groups = append(groups[:bj], groups[bj+1:]...)
	}

	labels := make([]int, len(points))
	for g, grp := range groups {
		for _, m := range grp.members {
			labels[m] = g
		}
	}
	return labels
}
