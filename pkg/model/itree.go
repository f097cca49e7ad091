package model

import (
	"math"
	"math/rand"
)

// eulerGamma is used by the harmonic number approximation in avgPathLength.
const eulerGamma = 0.5772156649015329

// itNode holds a node in an isolation tree.
type itNode struct {
	// internal node fields
	isLeaf    bool
	feature   int
	threshold float64 // x < threshold => left
	left      *itNode
	right     *itNode

	// leaf data
	size int // training rows that reached this leaf
}

// isolationTree is a randomised binary partitioning tree over a subsample.
type isolationTree struct {
	root        *itNode
	features    []int // features this tree may split on
	heightLimit int
}

// buildIsolationTree grows a tree over X[idx], splitting on uniformly chosen
// features and thresholds until rows are isolated or the height limit is hit.
func buildIsolationTree(X [][]float64, idx, features []int, heightLimit int, rnd *rand.Rand) *isolationTree {
	t := &isolationTree{features: features, heightLimit: heightLimit}
	t.root = t.grow(X, idx, 0, rnd)
	return t
}

func (t *isolationTree) grow(X [][]float64, idx []int, depth int, rnd *rand.Rand) *itNode {
	if depth >= t.heightLimit || len(idx) <= 1 {
		return &itNode{isLeaf: true, size: len(idx)}
	}

	// Only features with spread inside this node can isolate anything.
	type span struct {
		feature  int
		min, max float64
	}
	var candidates []span
	for _, f := range t.features {
		lo, hi := X[idx[0]][f], X[idx[0]][f]
		for _, i := range idx[1:] {
			v := X[i][f]
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if hi > lo {
			candidates = append(candidates, span{f, lo, hi})
		}
	}
	if len(candidates) == 0 {
		return &itNode{isLeaf: true, size: len(idx)}
	}

	c := candidates[rnd.Intn(len(candidates))]
	threshold := c.min + rnd.Float64()*(c.max-c.min)
	if threshold <= c.min {
		threshold = math.Nextafter(c.min, c.max)
	}

	var left, right []int
	for _, i := range idx {
		if X[i][c.feature] < threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &itNode{
		feature:   c.feature,
		threshold: threshold,
		left:      t.grow(X, left, depth+1, rnd),
		right:     t.grow(X, right, depth+1, rnd),
	}
}

// pathLength returns the depth at which x is isolated, adjusted by the
// expected remaining depth of the leaf it lands in.
func (t *isolationTree) pathLength(x []float64) float64 {
	node, depth := t.root, 0
	for !node.isLeaf {
		if x[node.feature] < node.threshold {
			node = node.left
		} else {
			node = node.right
		}
		depth++
	}
	return float64(depth) + avgPathLength(node.size)
}

// avgPathLength is c(n), the average path length of an unsuccessful search in
// a binary search tree with n nodes.
func avgPathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}
