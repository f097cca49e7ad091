package pipeline_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"skucluster/pkg/core"
	"skucluster/pkg/logging"
	"skucluster/pkg/pipeline"
)

var nan = math.NaN()

func observed(t *testing.T) (context.Context, *observer.ObservedLogs) {
	t.Helper()
	obs, logs := observer.New(zapcore.DebugLevel)
	return logging.WithLogger(context.Background(), zap.New(obs).Sugar()), logs
}

func dataset(t *testing.T, names []string, rows [][]float64) *core.Dataset {
	t.Helper()
	ds, err := core.NewDataset(names, rows)
	require.NoError(t, err)
	return ds
}

func passthrough(name string) pipeline.Stage {
	return pipeline.Stage{
		Name: name,
		Run:  func(_ context.Context, ds *core.Dataset) (*core.Dataset, error) { return ds, nil },
	}
}

func TestRunnerValidatesBeforeRunning(t *testing.T) {
	ran := false
	first := pipeline.Stage{
		Name: "first",
		Run: func(_ context.Context, ds *core.Dataset) (*core.Dataset, error) {
			ran = true
			return ds, nil
		},
	}
	second := passthrough("second")
	second.Validate = func() error { return core.ErrConfiguration }

	_, err := pipeline.NewRunner(first, second).Run(context.Background(), dataset(t, []string{"a"}, [][]float64{{1}}))
	var se *pipeline.StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "second", se.Stage)
	assert.True(t, errors.Is(err, core.ErrConfiguration))
	assert.False(t, ran, "no stage runs when any stage is misconfigured")
}

func TestRunnerStageFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name   string
		run    func(context.Context, *core.Dataset) (*core.Dataset, error)
		target error
	}{
		{
			name:   "stage error",
			run:    func(context.Context, *core.Dataset) (*core.Dataset, error) { return nil, boom },
			target: boom,
		},
		{
			name: "no rows left",
			run: func(_ context.Context, ds *core.Dataset) (*core.Dataset, error) {
				return ds.SelectRows(nil), nil
			},
			target: core.ErrDataShape,
		},
		{
			name: "rows added",
			run: func(_ context.Context, ds *core.Dataset) (*core.Dataset, error) {
				out := ds.Clone()
				out.Rows = append(out.Rows, []float64{9, 9})
				return out, nil
			},
			target: core.ErrDataShape,
		},
		{
			name: "columns changed",
			run: func(_ context.Context, ds *core.Dataset) (*core.Dataset, error) {
				return ds.DropColumns("b"), nil
			},
			target: core.ErrDataShape,
		},
		{
			name:   "no run function",
			target: core.ErrConfiguration,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ds := dataset(t, []string{"a", "b"}, [][]float64{{1, 2}, {3, 4}})
			afterRan := false
			after := pipeline.Stage{
				Name: "after",
				Run: func(_ context.Context, ds *core.Dataset) (*core.Dataset, error) {
					afterRan = true
					return ds, nil
				},
			}
			_, err := pipeline.NewRunner(pipeline.Stage{Name: "bad", Run: tc.run}, after).Run(context.Background(), ds)

			var se *pipeline.StageError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, "bad", se.Stage)
			assert.True(t, errors.Is(err, tc.target))
			assert.False(t, afterRan)
		})
	}
}

func TestRunnerEmptyInput(t *testing.T) {
	_, err := pipeline.NewRunner(passthrough("a")).Run(context.Background(), dataset(t, []string{"a"}, nil))
	assert.True(t, errors.Is(err, core.ErrDataShape))

	_, err = pipeline.NewRunner().Run(context.Background(), nil)
	assert.True(t, errors.Is(err, core.ErrDataShape))
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pipeline.NewRunner(passthrough("a")).Run(ctx, dataset(t, []string{"a"}, [][]float64{{1}}))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunnerLogsRunID(t *testing.T) {
	ctx, logs := observed(t)
	out, err := pipeline.NewRunner(passthrough("a"), passthrough("b")).Run(ctx, dataset(t, []string{"a"}, [][]float64{{1}, {2}}))
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len())

	finished := logs.FilterMessage("stage finished").All()
	require.Len(t, finished, 2)
	id := finished[0].ContextMap()["run_id"]
	assert.NotEmpty(t, id)
	assert.Equal(t, id, finished[1].ContextMap()["run_id"])
	assert.Equal(t, "b", finished[1].ContextMap()["stage"])
}
