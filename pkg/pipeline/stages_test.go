package pipeline_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skucluster/pkg/core"
	"skucluster/pkg/dataprep"
	"skucluster/pkg/model"
	"skucluster/pkg/pipeline"
)

func tenByThree(t *testing.T) *core.Dataset {
	return dataset(t, []string{"price", "weight", "height"}, [][]float64{
		{1.0, 10, 100},
		{1.2, 12, 110},
		{nan, 11, 105},
		{0.9, 9, 95},
		{1.1, 11, 102},
		{5.0, 50, 400},
		{5.2, 52, 410},
		{4.8, 49, 390},
		{5.1, 51, 405},
		{4.9, 48, 395},
	})
}

func TestImputeScaleClusterScenario(t *testing.T) {
	ctx, logs := observed(t)
	runner := pipeline.NewRunner(
		pipeline.ImputeStage(dataprep.ImputerConfig{MaxFeatures: 2}),
		pipeline.ScaleStage(),
	)
	ds, err := runner.Run(ctx, tenByThree(t))
	require.NoError(t, err)

	n, p := ds.Shape()
	assert.Equal(t, 10, n)
	assert.Equal(t, 3, p)
	for _, row := range ds.Rows {
		for _, v := range row {
			assert.False(t, math.IsNaN(v))
			assert.GreaterOrEqual(t, v, -1.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
	require.Len(t, logs.FilterMessage("imputed missing cells").All(), 1)
	assert.EqualValues(t, 1, logs.FilterMessage("imputed missing cells").All()[0].ContextMap()["cells"])

	rep, err := pipeline.Cluster(ctx, ds, pipeline.ClusterSpec{Name: "KMeans", Engine: model.NewKMeans(2, 1)}, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1}, uniq(rep.Result.Labels))
	assert.Equal(t, rep.Result.Labels[0], rep.Result.Labels[2], "row 3 joins the small SKUs")
	assert.NotEqual(t, rep.Result.Labels[0], rep.Result.Labels[5])

	require.Len(t, rep.Evaluation.Scores, 3)
	for name, v := range rep.Evaluation.Scores {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), name)
	}
	sil, _ := rep.Evaluation.Score(model.Silhouette)
	assert.GreaterOrEqual(t, sil, -1.0)
	assert.LessOrEqual(t, sil, 1.0)
	db, _ := rep.Evaluation.Score(model.DaviesBouldin)
	assert.GreaterOrEqual(t, db, 0.0)
	assert.Nil(t, rep.Projection)
}

func TestIdenticalRowsScenario(t *testing.T) {
	rows := make([][]float64, 20)
	for i := range rows {
		rows[i] = []float64{3, 3, 3}
	}
	ctx, logs := observed(t)
	runner := pipeline.NewRunner(
		pipeline.ImputeStage(dataprep.ImputerConfig{MaxFeatures: 2}),
		pipeline.ScaleStage(),
		pipeline.OutlierStage(model.WithMaxFeatures(6)),
	)
	ds, err := runner.Run(ctx, dataset(t, []string{"a", "b", "c"}, rows))
	require.NoError(t, err)
	assert.Equal(t, 20, ds.Len(), "identical rows are never outliers")
	removed := logs.FilterMessage("removed outliers").All()
	require.Len(t, removed, 1)
	assert.EqualValues(t, 0, removed[0].ContextMap()["removed"])

	for _, spec := range []pipeline.ClusterSpec{
		{Name: "KMeans", Engine: model.NewKMeans(3, 1)},
		{Name: "Affinity Propagation", Engine: model.NewAffinityPropagation(0.5)},
	} {
		rep, err := pipeline.Cluster(ctx, ds, spec, nil)
		require.NoError(t, err, spec.Name)
		assert.Equal(t, 1, rep.Result.NClusters(), spec.Name)
		assert.Empty(t, rep.Evaluation.Scores, spec.Name)
		assert.True(t, errors.Is(rep.Evaluation.Err(), core.ErrMetricUndefined), spec.Name)
	}
}

func TestScaleStageSelectedColumns(t *testing.T) {
	ds := dataset(t, []string{"a", "b"}, [][]float64{{2, 10}, {-4, 20}})
	out, err := pipeline.NewRunner(pipeline.ScaleStage(0)).Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.5, 10}, {-1, 20}}, out.Rows)
}

func TestStageConfigurationErrors(t *testing.T) {
	ds := tenByThree(t)
	for _, st := range []pipeline.Stage{
		pipeline.ImputeStage(dataprep.ImputerConfig{}),
		pipeline.OutlierStage(model.WithEstimators(0)),
	} {
		_, err := pipeline.NewRunner(st).Run(context.Background(), ds)
		assert.True(t, errors.Is(err, core.ErrConfiguration), st.Name)
	}
	assert.True(t, math.IsNaN(ds.Rows[2][0]), "validation failures leave the data alone")
}

func TestOutlierStageNeedsCompleteData(t *testing.T) {
	_, err := pipeline.NewRunner(pipeline.OutlierStage()).Run(context.Background(), tenByThree(t))
	var se *pipeline.StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, pipeline.StageOutlier, se.Stage)
	assert.True(t, errors.Is(err, core.ErrDataShape))
}

func uniq(labels []int) []int {
	seen := map[int]bool{}
	var out []int
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}
