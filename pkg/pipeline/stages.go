package pipeline

import (
	"context"

	"skucluster/pkg/core"
	"skucluster/pkg/dataprep"
	"skucluster/pkg/logging"
	"skucluster/pkg/model"
	"skucluster/pkg/stats"
)

var _ model.Transformer = (*stats.MaxAbsScaler)(nil)

// Stage names used by the constructors below.
const (
	StageImpute  = "impute"
	StageScale   = "scale"
	StageOutlier = "outlier"
)

// ImputeStage fills missing cells in place with an IterativeImputer.
func ImputeStage(cfg dataprep.ImputerConfig) Stage {
	imputer := dataprep.NewIterativeImputer(cfg)
	return Stage{
		Name:     StageImpute,
		Validate: imputer.Validate,
		Run: func(ctx context.Context, ds *core.Dataset) (*core.Dataset, error) {
			missing := ds.MissingCounts()
			if err := imputer.Impute(ds); err != nil {
				return nil, err
			}
			total := 0
			for _, c := range missing {
				total += c
			}
			logging.FromContext(ctx).Infow("imputed missing cells",
				"cells", total,
				"rounds", imputer.Rounds,
				"converged", imputer.Converged,
			)
			return ds, nil
		},
	}
}

// ScaleStage divides the selected columns (all when none are given) by their
// maximum absolute value, in place.
func ScaleStage(columns ...int) Stage {
	return Stage{
		Name: StageScale,
		Run: func(ctx context.Context, ds *core.Dataset) (*core.Dataset, error) {
			scaler := stats.NewMaxAbsScaler(columns...)
			if _, err := scaler.FitTransform(ds.Rows); err != nil {
				return nil, err
			}
			logging.FromContext(ctx).Debugw("scaled columns", "max_abs", scaler.MaxAbs)
			return ds, nil
		},
	}
}

// OutlierStage drops the rows an isolation forest built with opts labels as
// outliers. The removed count is always logged.
func OutlierStage(opts ...model.IsolationForestOption) Stage {
	filter := dataprep.NewOutlierFilter(opts...)
	return Stage{
		Name:     StageOutlier,
		Validate: filter.Validate,
		Run: func(ctx context.Context, ds *core.Dataset) (*core.Dataset, error) {
			out, err := filter.Filter(ds)
			if err != nil {
				return nil, err
			}
			logging.FromContext(ctx).Infow("removed outliers",
				"removed", filter.Removed,
				"kept", out.Len(),
				"threshold", filter.Forest.Threshold,
			)
			return out, nil
		},
	}
}
