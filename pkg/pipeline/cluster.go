package pipeline

import (
	"context"
	"fmt"

	"skucluster/pkg/core"
	"skucluster/pkg/logging"
	"skucluster/pkg/model"
	"skucluster/pkg/viz"
)

// Plotter draws a finished clustering. Everything it needs is in the
// argument.
type Plotter interface {
	Plot(s viz.Scatter) error
}

// ClusterSpec describes one engine run.
type ClusterSpec struct {
	Name   string
	Engine model.Clusterer
	// Compress > 0 reduces the data to that many principal components before
	// clustering. It is clamped to the feature count.
	Compress int
	// Project computes the 2-D reporting projection even without a Plotter.
	Project bool
}

// Projection is a 2-D view of the rows that were clustered.
type Projection struct {
	Points   [][]float64
	Variance float64 // share of variance kept, in [0, 1]
}

// ClusterReport is the outcome of one engine run.
type ClusterReport struct {
	Algorithm  string
	Result     *model.Result
	Evaluation *model.Evaluation
	Projection *Projection // nil unless projected or plotted
	// CompressVariance is the variance kept by pre-clustering compression,
	// 1 when the data was clustered uncompressed.
	CompressVariance float64
}

// RunEngines runs every spec against its own copy of ds, so each engine
// starts from the same data. plotter may be nil.
func RunEngines(ctx context.Context, ds *core.Dataset, specs []ClusterSpec, plotter Plotter) ([]*ClusterReport, error) {
	reports := make([]*ClusterReport, 0, len(specs))
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep, err := Cluster(ctx, ds, spec, plotter)
		if err != nil {
			return reports, fmt.Errorf("%s: %w", spec.Name, err)
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// Cluster compresses (optionally), fits the engine, projects and plots
// (optionally) and scores one clustering of ds. ds is not modified.
func Cluster(ctx context.Context, ds *core.Dataset, spec ClusterSpec, plotter Plotter) (*ClusterReport, error) {
	logger := logging.FromContext(ctx).With("algorithm", spec.Name)
	if spec.Engine == nil {
		return nil, fmt.Errorf("%w: no engine configured", core.ErrConfiguration)
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("%w: no rows to cluster", core.ErrDataShape)
	}
	if ds.HasMissing() {
		return nil, fmt.Errorf("%w: dataset has missing cells", core.ErrDataShape)
	}

	X := ds.Matrix()
	rep := &ClusterReport{Algorithm: spec.Name, CompressVariance: 1}
	if spec.Compress > 0 {
		k := min(spec.Compress, len(ds.Names))
		pca := model.NewPCA(k)
		Z, err := pca.FitTransform(X)
		if err != nil {
			return nil, fmt.Errorf("compress: %w", err)
		}
		X = Z
		rep.CompressVariance = pca.RetainedVariance()
		logger.Infow("compressed features", "components", k, "variance", rep.CompressVariance)
	}

	res, err := spec.Engine.FitLabels(X)
	if err != nil {
		return nil, err
	}
	if err := checkLabels(res.Labels, len(X)); err != nil {
		return nil, err
	}
	rep.Result = res
	logger.Infow("clustered",
		"clusters", res.NClusters(),
		"iterations", res.Iterations,
		"converged", res.Converged,
	)

	if spec.Project || plotter != nil {
		proj, centers, err := project(X, res.Centers)
		if err != nil {
			return nil, fmt.Errorf("project: %w", err)
		}
		rep.Projection = proj
		if plotter != nil {
			err := plotter.Plot(viz.Scatter{
				Algorithm: spec.Name,
				Points:    proj.Points,
				Labels:    res.Labels,
				NClusters: res.NClusters(),
				Variance:  proj.Variance,
				Centers:   centers,
			})
			if err != nil {
				return nil, err
			}
		}
	}

	ev, err := model.Evaluate(X, res.Labels)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	rep.Evaluation = ev
	fields := []interface{}{"clusters", ev.NClusters}
	for name, v := range ev.Scores {
		fields = append(fields, name, v)
	}
	for name, e := range ev.Undefined {
		fields = append(fields, name+"_undefined", e.Error())
	}
	logger.Infow("scored", fields...)
	return rep, nil
}

// checkLabels verifies one non-negative label per row, forming a contiguous
// set starting at zero.
func checkLabels(labels []int, n int) error {
	if len(labels) != n {
		return fmt.Errorf("%w: engine returned %d labels for %d rows", core.ErrDataShape, len(labels), n)
	}
	top := -1
	seen := make(map[int]bool)
	for i, l := range labels {
		if l < 0 {
			return fmt.Errorf("%w: row %d has negative label %d", core.ErrDataShape, i, l)
		}
		seen[l] = true
		if l > top {
			top = l
		}
	}
	if len(seen) != top+1 {
		return fmt.Errorf("%w: labels are not contiguous from zero", core.ErrDataShape)
	}
	return nil
}

// project fits a fresh 2-component PCA on X (one component when X has a
// single feature, padded with zeros) and maps the rows and centers onto it.
func project(X, centers [][]float64) (*Projection, [][]float64, error) {
	k := min(2, len(X[0]))
	pca := model.NewPCA(k)
	pts, err := pca.FitTransform(X)
	if err != nil {
		return nil, nil, err
	}
	var cpts [][]float64
	if len(centers) > 0 && len(centers[0]) == len(X[0]) {
		if cpts, err = pca.Transform(centers); err != nil {
			return nil, nil, err
		}
	}
	return &Projection{Points: pad2(pts), Variance: pca.RetainedVariance()}, pad2(cpts), nil
}

func pad2(pts [][]float64) [][]float64 {
	for i, p := range pts {
		if len(p) < 2 {
			pts[i] = append(p, 0)
		}
	}
	return pts
}
