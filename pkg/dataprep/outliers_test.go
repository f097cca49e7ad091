package dataprep_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skucluster/pkg/core"
	"skucluster/pkg/dataprep"
	"skucluster/pkg/model"
)

func TestOutlierFilterKeepsOrderAndCounts(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	rows := make([][]float64, 0, 41)
	for i := 0; i < 40; i++ {
		rows = append(rows, []float64{float64(i), rnd.Float64(), rnd.Float64()})
	}
	rows = append(rows, []float64{20, 50, -50})
	ds, err := core.NewDataset([]string{"id", "x", "y"}, rows)
	require.NoError(t, err)

	f := dataprep.NewOutlierFilter(model.WithContamination(0.1), model.WithRandomState(4))
	out, err := f.Filter(ds)
	require.NoError(t, err)

	assert.Equal(t, ds.Len(), out.Len()+f.Removed)
	assert.Greater(t, f.Removed, 0)
	assert.Len(t, f.Scores, ds.Len())
	assert.Equal(t, ds.Names, out.Names)
	for i := 1; i < out.Len(); i++ {
		assert.Less(t, out.Rows[i-1][0], out.Rows[i][0], "kept rows stay in input order")
	}
	for _, r := range out.Rows {
		assert.NotEqual(t, 50.0, r[1], "the planted outlier is removed")
	}
	assert.Equal(t, 41, ds.Len(), "input untouched")
}

func TestOutlierFilterIdenticalRows(t *testing.T) {
	rows := make([][]float64, 25)
	for i := range rows {
		rows[i] = []float64{1, 1, 1}
	}
	ds, err := core.NewDataset([]string{"a", "b", "c"}, rows)
	require.NoError(t, err)

	f := dataprep.NewOutlierFilter(model.WithMaxFeatures(6))
	out, err := f.Filter(ds)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Removed)
	assert.Equal(t, 25, out.Len())
}

func TestOutlierFilterErrors(t *testing.T) {
	ds, err := core.NewDataset([]string{"a"}, [][]float64{{1}, {nan}})
	require.NoError(t, err)
	_, err = dataprep.NewOutlierFilter().Filter(ds)
	assert.True(t, errors.Is(err, core.ErrDataShape))

	err = dataprep.NewOutlierFilter(model.WithContamination(0.9)).Validate()
	assert.True(t, errors.Is(err, core.ErrConfiguration))
}
