package dataprep

import (
	"fmt"

	"skucluster/pkg/core"
	"skucluster/pkg/model"
)

// OutlierFilter removes the rows an isolation forest labels as outliers.
type OutlierFilter struct {
	Options []model.IsolationForestOption

	// Set by the last Filter call.
	Removed int
	Scores  []float64
	Forest  *model.IsolationForest
}

// NewOutlierFilter returns a filter whose forest is built with opts.
func NewOutlierFilter(opts ...model.IsolationForestOption) *OutlierFilter {
	return &OutlierFilter{Options: opts}
}

// Validate builds the forest and checks its options without touching data.
func (f *OutlierFilter) Validate() error {
	return model.NewIsolationForest(f.Options...).Validate()
}

// Filter fits a fresh forest on ds and returns a new dataset holding only the
// rows labelled inlier, in their original order. ds is not modified.
func (f *OutlierFilter) Filter(ds *core.Dataset) (*core.Dataset, error) {
	if ds.HasMissing() {
		return nil, fmt.Errorf("%w: outlier filter: dataset still has missing cells", core.ErrDataShape)
	}
	X := ds.Matrix()
	forest := model.NewIsolationForest(f.Options...)
	labels, err := forest.FitPredict(X)
	if err != nil {
		return nil, fmt.Errorf("outlier filter: %w", err)
	}

	keep := make([]int, 0, len(labels))
	for i, l := range labels {
		if l == model.Inlier {
			keep = append(keep, i)
		}
	}
	f.Forest = forest
	f.Scores = forest.Score(X)
	f.Removed = len(labels) - len(keep)
	return ds.SelectRows(keep), nil
}
