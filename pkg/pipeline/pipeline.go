// Package pipeline composes preparation stages over a core.Dataset and runs
// cluster engines on the result.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"skucluster/pkg/core"
	"skucluster/pkg/logging"
)

// Stage is one lazily evaluated step. Run receives the current dataset and
// returns the dataset handed to the next stage; it may modify its input in
// place or return a derivative with fewer rows, but never different columns.
type Stage struct {
	Name string
	// Validate checks the stage configuration before any stage runs. Optional.
	Validate func() error
	Run      func(ctx context.Context, ds *core.Dataset) (*core.Dataset, error)
}

// StageError reports which stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %q: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Runner executes stages in order over one dataset.
type Runner struct {
	Stages []Stage
}

// NewRunner returns a Runner over stages.
func NewRunner(stages ...Stage) *Runner {
	return &Runner{Stages: stages}
}

// Run validates every stage, then runs them in order. After each stage it
// checks that rows remain, that none were added and that the columns are
// unchanged; a failing stage's output is never passed on.
func (r *Runner) Run(ctx context.Context, ds *core.Dataset) (*core.Dataset, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("%w: pipeline: input dataset is empty", core.ErrDataShape)
	}
	for _, st := range r.Stages {
		if st.Run == nil {
			return nil, &StageError{Stage: st.Name, Err: fmt.Errorf("%w: stage has no run function", core.ErrConfiguration)}
		}
		if st.Validate == nil {
			continue
		}
		if err := st.Validate(); err != nil {
			return nil, &StageError{Stage: st.Name, Err: err}
		}
	}

	runID := uuid.NewString()
	logger := logging.FromContext(ctx).With("run_id", runID)
	ctx = logging.WithLogger(ctx, logger)
	logger.Infow("pipeline started", "stages", len(r.Stages), "rows", ds.Len(), "columns", len(ds.Names))

	cur := ds
	for _, st := range r.Stages {
		if err := ctx.Err(); err != nil {
			return nil, &StageError{Stage: st.Name, Err: err}
		}
		start := time.Now()
		rowsIn := cur.Len()
		out, err := st.Run(ctx, cur)
		if err != nil {
			logger.Errorw("stage failed", "stage", st.Name, "error", err)
			return nil, &StageError{Stage: st.Name, Err: err}
		}
		if err := checkOutput(cur, out); err != nil {
			logger.Errorw("stage produced an invalid dataset", "stage", st.Name, "error", err)
			return nil, &StageError{Stage: st.Name, Err: err}
		}
		logger.Infow("stage finished",
			"stage", st.Name,
			"rows_in", rowsIn,
			"rows_out", out.Len(),
			"elapsed", time.Since(start),
		)
		cur = out
	}
	logger.Infow("pipeline finished", "rows", cur.Len())
	return cur, nil
}

func checkOutput(in, out *core.Dataset) error {
	switch {
	case out == nil || out.Len() == 0:
		return fmt.Errorf("%w: no rows left", core.ErrDataShape)
	case out.Len() > in.Len():
		return fmt.Errorf("%w: row count grew from %d to %d", core.ErrDataShape, in.Len(), out.Len())
	case !out.SameColumns(in):
		return fmt.Errorf("%w: columns changed from %v to %v", core.ErrDataShape, in.Names, out.Names)
	}
	return nil
}
