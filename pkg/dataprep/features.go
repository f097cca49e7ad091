package dataprep

import (
	"fmt"
	"math"

	"skucluster/pkg/core"
	"skucluster/pkg/stats"
)

// CorrelationMatrix returns the pairwise Pearson correlation of every column
// pair, computed over rows where both cells are observed.
func CorrelationMatrix(ds *core.Dataset) [][]float64 {
	_, p := ds.Shape()
	cols := make([][]float64, p)
	for j := range cols {
		cols[j] = ds.Col(j)
	}
	out := make([][]float64, p)
	for i := range out {
		out[i] = make([]float64, p)
		out[i][i] = 1
	}
	for i := 0; i < p; i++ {
		for j := i + 1; j < p; j++ {
			r := stats.Correlation(cols[i], cols[j])
			out[i][j], out[j][i] = r, r
		}
	}
	return out
}

// Ratio describes a derived feature numerator/denominator that replaces its
// two source columns.
type Ratio struct {
	Name        string
	Numerator   string
	Denominator string
}

// DeriveRatio appends r.Name = numerator / denominator to a copy of ds, drops
// the two source columns and returns the new dataset together with the
// Pearson correlation between the sources. Rows where either source is
// missing, or the denominator is zero, get a missing ratio.
func DeriveRatio(ds *core.Dataset, r Ratio) (*core.Dataset, float64, error) {
	num, den := ds.Index(r.Numerator), ds.Index(r.Denominator)
	if num < 0 || den < 0 {
		return nil, 0, fmt.Errorf("%w: ratio %q needs columns %q and %q", core.ErrDataShape, r.Name, r.Numerator, r.Denominator)
	}
	numCol, denCol := ds.Col(num), ds.Col(den)
	corr := stats.Correlation(numCol, denCol)

	ratio := make([]float64, len(numCol))
	for i := range ratio {
		if core.IsMissing(numCol[i]) || core.IsMissing(denCol[i]) || denCol[i] == 0 {
			ratio[i] = core.Missing()
			continue
		}
		ratio[i] = numCol[i] / denCol[i]
		if math.IsInf(ratio[i], 0) {
			ratio[i] = core.Missing()
		}
	}

	out := ds.DropColumns(r.Numerator, r.Denominator)
	if err := out.AddColumn(r.Name, ratio); err != nil {
		return nil, 0, err
	}
	return out, corr, nil
}
