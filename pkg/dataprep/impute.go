package dataprep

import (
	"fmt"
	"math"
	"sort"

	"skucluster/pkg/core"
	"skucluster/pkg/model"
	"skucluster/pkg/stats"
)

// Strategy names the statistic used to seed missing cells before the first
// regression round.
type Strategy string

const (
	StrategyMean         Strategy = "mean"
	StrategyMedian       Strategy = "median"
	StrategyMostFrequent Strategy = "most_frequent"
	StrategyConstant     Strategy = "constant"
)

// ImputerConfig configures IterativeImputer. Zero values take the defaults
// noted on each field.
type ImputerConfig struct {
	InitialStrategy Strategy // mean
	FillValue       float64  // used by StrategyConstant
	MaxFeatures     int      // predictors per regression, required (> 0)
	MaxIter         int      // 10
	Tol             float64  // 1e-3
	Alpha           float64  // ridge penalty, 1e-6
}

// IterativeImputer fills missing cells with multivariate chained equations:
// every incomplete feature is regressed on its most correlated peers, round
// after round, until the imputed values stop moving.
type IterativeImputer struct {
	ImputerConfig

	Rounds    int  // rounds run by the last Impute
	Converged bool // whether the last Impute met Tol before MaxIter
}

// NewIterativeImputer returns an imputer with defaults applied to cfg.
func NewIterativeImputer(cfg ImputerConfig) *IterativeImputer {
	if cfg.InitialStrategy == "" {
		cfg.InitialStrategy = StrategyMean
	}
	if cfg.MaxIter == 0 {
		cfg.MaxIter = 10
	}
	if cfg.Tol == 0 {
		cfg.Tol = 1e-3
	}
	if cfg.Alpha == 0 {
		cfg.Alpha = 1e-6
	}
	return &IterativeImputer{ImputerConfig: cfg}
}

// Validate checks the configuration without touching data.
func (im *IterativeImputer) Validate() error {
	switch im.InitialStrategy {
	case StrategyMean, StrategyMedian, StrategyMostFrequent, StrategyConstant:
	default:
		return fmt.Errorf("%w: imputer: unknown initial strategy %q", core.ErrConfiguration, im.InitialStrategy)
	}
	if im.MaxFeatures < 1 {
		return fmt.Errorf("%w: imputer: max features must be positive, got %d", core.ErrConfiguration, im.MaxFeatures)
	}
	if im.MaxIter < 1 {
		return fmt.Errorf("%w: imputer: max iterations must be positive, got %d", core.ErrConfiguration, im.MaxIter)
	}
	if im.Tol < 0 || im.Alpha < 0 {
		return fmt.Errorf("%w: imputer: tol and alpha must not be negative", core.ErrConfiguration)
	}
	return nil
}

// Impute replaces every missing cell of ds in place. The dataset is only
// modified once every column is known to be imputable.
func (im *IterativeImputer) Impute(ds *core.Dataset) error {
	if err := im.Validate(); err != nil {
		return err
	}
	n, p := ds.Shape()
	if n == 0 {
		return fmt.Errorf("%w: imputer: dataset has no rows", core.ErrDataShape)
	}

	// ---------- Initial fill ----------
	missing := make([][]int, p) // missing row indices per column
	lo, hi := make([]float64, p), make([]float64, p)
	fill := make([]float64, p)
	maxAbsObserved := 0.0
	for j := 0; j < p; j++ {
		col := ds.Col(j)
		obs := stats.Observed(col)
		if len(obs) == 0 {
			return fmt.Errorf("%w: imputer: column %q has no observed value", core.ErrConfiguration, ds.Names[j])
		}
		for i, v := range col {
			if core.IsMissing(v) {
				missing[j] = append(missing[j], i)
			}
		}
		lo[j], hi[j] = stats.MinMax(obs)
		maxAbsObserved = math.Max(maxAbsObserved, stats.MaxAbs(obs))
		fill[j] = im.initialValue(obs)
	}

	var order []int
	for j := 0; j < p; j++ {
		if len(missing[j]) > 0 {
			order = append(order, j)
		}
	}
	im.Rounds, im.Converged = 0, true
	if len(order) == 0 {
		return nil
	}
	// Fewest missing values first.
	sort.SliceStable(order, func(a, b int) bool { return len(missing[order[a]]) < len(missing[order[b]]) })

	X := ds.Rows
	for _, j := range order {
		for _, i := range missing[j] {
			X[i][j] = fill[j]
		}
	}

	predictors := im.predictors(X, order)

	// ---------- Chained-equation rounds ----------
	im.Converged = false
	for round := 0; round < im.MaxIter; round++ {
		im.Rounds = round + 1
		maxChange := 0.0
		for _, j := range order {
			change, err := im.regressColumn(X, j, predictors[j], missing[j], lo[j], hi[j])
			if err != nil {
				return fmt.Errorf("imputer: column %q: %w", ds.Names[j], err)
			}
			maxChange = math.Max(maxChange, change)
		}
		if maxAbsObserved > 0 {
			maxChange /= maxAbsObserved
		}
		if maxChange < im.Tol {
			im.Converged = true
			break
		}
	}
	return nil
}

// initialValue returns the seed for missing cells of a column.
func (im *IterativeImputer) initialValue(obs []float64) float64 {
	switch im.InitialStrategy {
	case StrategyMedian:
		return stats.Median(obs)
	case StrategyMostFrequent:
		return stats.Mode(obs)
	case StrategyConstant:
		return im.FillValue
	default:
		return stats.Mean(obs)
	}
}

// predictors picks, for every incomplete column, the MaxFeatures other columns
// with the largest absolute correlation on the initially filled data.
func (im *IterativeImputer) predictors(X [][]float64, order []int) map[int][]int {
	p := len(X[0])
	cols := make([][]float64, p)
	for j := range cols {
		cols[j] = make([]float64, len(X))
		for i := range X {
			cols[j][i] = X[i][j]
		}
	}
	out := make(map[int][]int, len(order))
	for _, j := range order {
		var peers []int
		for k := 0; k < p; k++ {
			if k != j {
				peers = append(peers, k)
			}
		}
		if len(peers) > im.MaxFeatures {
			corr := make(map[int]float64, len(peers))
			for _, k := range peers {
				corr[k] = math.Abs(stats.Correlation(cols[j], cols[k]))
			}
			sort.SliceStable(peers, func(a, b int) bool { return corr[peers[a]] > corr[peers[b]] })
			peers = peers[:im.MaxFeatures]
			sort.Ints(peers)
		}
		out[j] = peers
	}
	return out
}

// regressColumn refits column j on its predictors using rows where j is
// observed, rewrites the missing cells and returns the largest change.
func (im *IterativeImputer) regressColumn(X [][]float64, j int, predictors, missingRows []int, lo, hi float64) (float64, error) {
	isMissing := make(map[int]bool, len(missingRows))
	for _, i := range missingRows {
		isMissing[i] = true
	}
	project := func(i int) []float64 {
		row := make([]float64, len(predictors))
		for k, c := range predictors {
			row[k] = X[i][c]
		}
		return row
	}

	var trainX [][]float64
	var trainY []float64
	for i := range X {
		if !isMissing[i] {
			trainX = append(trainX, project(i))
			trainY = append(trainY, X[i][j])
		}
	}
	reg := model.NewRidge(im.Alpha)
	if err := reg.Fit(trainX, trainY); err != nil {
		return 0, err
	}

	predX := make([][]float64, len(missingRows))
	for k, i := range missingRows {
		predX[k] = project(i)
	}
	maxChange := 0.0
	for k, v := range reg.Predict(predX) {
		// Keep estimates inside the observed range of the feature.
		v = math.Min(math.Max(v, lo), hi)
		i := missingRows[k]
		maxChange = math.Max(maxChange, math.Abs(v-X[i][j]))
		X[i][j] = v
	}
	return maxChange, nil
}
