package viz_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skucluster/pkg/viz"
)

func TestScatterTitle(t *testing.T) {
	s := viz.Scatter{Algorithm: "Birch", NClusters: 4, Variance: 0.8765}
	assert.Equal(t, "Algorithm: Birch Number of clusters: 4.\n87.65% of variance is preserved after PCA", s.Title())
}

func TestRendererPath(t *testing.T) {
	r := viz.NewRenderer("out")
	assert.Equal(t, filepath.Join("out", "affinity_propagation.png"), r.Path("Affinity Propagation"))
}

func TestRendererWritesPNG(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	r := viz.NewRenderer(dir)
	err := r.Plot(viz.Scatter{
		Algorithm: "KMeans",
		Points:    [][]float64{{0, 0}, {0.1, 0.2}, {3, 3}, {3.2, 2.9}},
		Labels:    []int{0, 0, 1, 1},
		NClusters: 2,
		Variance:  0.97,
		Centers:   [][]float64{{0.05, 0.1}, {3.1, 2.95}},
	})
	require.NoError(t, err)

	b, err := os.ReadFile(r.Path("KMeans"))
	require.NoError(t, err)
	require.Greater(t, len(b), 8)
	assert.Equal(t, []byte("\x89PNG"), b[:4])
}

func TestRendererRejectsBadInput(t *testing.T) {
	r := viz.NewRenderer(t.TempDir())
	tests := map[string]viz.Scatter{
		"empty":         {Algorithm: "x"},
		"label count":   {Algorithm: "x", Points: [][]float64{{0, 0}}, Labels: []int{0, 1}},
		"one dimension": {Algorithm: "x", Points: [][]float64{{0}}, Labels: []int{0}},
	}
	for name, s := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, r.Plot(s))
		})
	}
}
