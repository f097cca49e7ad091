package model_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skucluster/pkg/core"
	"skucluster/pkg/model"
)

func TestEvaluateKnownScores(t *testing.T) {
	X := [][]float64{{0}, {1}, {4}, {5}}
	ev, err := model.Evaluate(X, []int{0, 0, 1, 1})
	require.NoError(t, err)
	require.NoError(t, ev.Err())
	assert.Equal(t, 2, ev.NClusters)

	s, ok := ev.Score(model.Silhouette)
	require.True(t, ok)
	assert.InDelta(t, (3.5/4.5+2.5/3.5)/2, s, 1e-9)

	ch, ok := ev.Score(model.CalinskiHarabasz)
	require.True(t, ok)
	assert.InDelta(t, 32.0, ch, 1e-9)

	db, ok := ev.Score(model.DaviesBouldin)
	require.True(t, ok)
	assert.InDelta(t, 0.25, db, 1e-9)
}

func TestEvaluateIgnoresLabelValues(t *testing.T) {
	X := [][]float64{{0}, {1}, {4}, {5}}
	a, err := model.Evaluate(X, []int{0, 0, 1, 1})
	require.NoError(t, err)
	b, err := model.Evaluate(X, []int{9, 9, 3, 3})
	require.NoError(t, err)
	assert.InDeltaMapValues(t, a.Scores, b.Scores, 1e-12)
}

func TestEvaluateWellSeparated(t *testing.T) {
	X := blobs(twoBlobs, 15, 0.2, 4)
	labels := make([]int, len(X))
	for i := 15; i < 30; i++ {
		labels[i] = 1
	}
	ev, err := model.Evaluate(X, labels)
	require.NoError(t, err)
	assert.Greater(t, ev.Scores[model.Silhouette], 0.9)
	assert.Greater(t, ev.Scores[model.CalinskiHarabasz], 100.0)
	assert.Less(t, ev.Scores[model.DaviesBouldin], 0.1)
}

func TestEvaluateSingleCluster(t *testing.T) {
	ev, err := model.Evaluate(constant(5, 2, 1), make([]int, 5))
	require.NoError(t, err)
	assert.Empty(t, ev.Scores)
	for _, m := range []string{model.Silhouette, model.CalinskiHarabasz, model.DaviesBouldin} {
		require.Contains(t, ev.Undefined, m)
		assert.True(t, errors.Is(ev.Undefined[m], core.ErrMetricUndefined), m)
	}
	assert.True(t, errors.Is(ev.Err(), core.ErrMetricUndefined))
}

func TestEvaluateEveryRowItsOwnCluster(t *testing.T) {
	ev, err := model.Evaluate([][]float64{{0}, {1}, {3}}, []int{0, 1, 2})
	require.NoError(t, err)
	assert.Contains(t, ev.Undefined, model.Silhouette)
	assert.Contains(t, ev.Undefined, model.CalinskiHarabasz)
	db, ok := ev.Score(model.DaviesBouldin)
	require.True(t, ok, "davies-bouldin stays defined")
	assert.Equal(t, 0.0, db)
}

func TestEvaluateShapeErrors(t *testing.T) {
	_, err := model.Evaluate(nil, nil)
	assert.True(t, errors.Is(err, core.ErrDataShape))
	_, err = model.Evaluate([][]float64{{1}, {2}}, []int{0})
	assert.True(t, errors.Is(err, core.ErrDataShape))
}
