package model_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// blobs returns n rows per center, jittered by at most spread in every
// dimension, grouped center by center.
func blobs(centers [][]float64, n int, spread float64, seed int64) [][]float64 {
	rnd := rand.New(rand.NewSource(seed))
	var X [][]float64
	for _, c := range centers {
		for i := 0; i < n; i++ {
			row := make([]float64, len(c))
			for j, v := range c {
				row[j] = v + (rnd.Float64()*2-1)*spread
			}
			X = append(X, row)
		}
	}
	return X
}

func constant(n, p int, v float64) [][]float64 {
	X := make([][]float64, n)
	for i := range X {
		X[i] = make([]float64, p)
		for j := range X[i] {
			X[i][j] = v
		}
	}
	return X
}

// requireGrouped checks that rows [g*n, (g+1)*n) share a label and that
// different groups got different labels.
func requireGrouped(t *testing.T, labels []int, groups, n int) {
	t.Helper()
	require.Len(t, labels, groups*n)
	seen := make(map[int]bool)
	for g := 0; g < groups; g++ {
		l := labels[g*n]
		require.False(t, seen[l], "group %d shares label %d with another group", g, l)
		seen[l] = true
		for i := g * n; i < (g+1)*n; i++ {
			require.Equal(t, l, labels[i], "row %d", i)
		}
	}
}

// requireContiguous checks labels are exactly {0..k-1}.
func requireContiguous(t *testing.T, labels []int) int {
	t.Helper()
	seen := make(map[int]bool)
	top := -1
	for _, l := range labels {
		require.GreaterOrEqual(t, l, 0)
		seen[l] = true
		if l > top {
			top = l
		}
	}
	require.Len(t, seen, top+1)
	return top + 1
}
