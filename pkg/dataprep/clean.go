package dataprep

import (
	"fmt"

	"skucluster/pkg/core"
	"skucluster/pkg/stats"
)

// ZeroAsMissing replaces literal zeros in the named columns with the missing
// marker and returns how many cells were replaced. For these fields a zero
// means "not recorded", not an observed value.
func ZeroAsMissing(ds *core.Dataset, columns ...string) (int, error) {
	replaced := 0
	for _, name := range columns {
		j := ds.Index(name)
		if j < 0 {
			return replaced, fmt.Errorf("%w: column %q not found", core.ErrDataShape, name)
		}
		for _, row := range ds.Rows {
			if row[j] == 0 {
				row[j] = core.Missing()
				replaced++
			}
		}
	}
	return replaced, nil
}

// ColumnCount pairs a column name with a count.
type ColumnCount struct {
	Column string
	Count  int
}

// MissingReport counts missing cells per column, in column order.
func MissingReport(ds *core.Dataset) []ColumnCount {
	counts := ds.MissingCounts()
	out := make([]ColumnCount, len(counts))
	for j, c := range counts {
		out[j] = ColumnCount{Column: ds.Names[j], Count: c}
	}
	return out
}

// DropIncompleteRows removes rows that still contain a missing cell and
// returns the filtered dataset together with the removed count.
func DropIncompleteRows(ds *core.Dataset) (*core.Dataset, int) {
	var keep []int
	for i, row := range ds.Rows {
		complete := true
		for _, v := range row {
			if core.IsMissing(v) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}
	return ds.SelectRows(keep), ds.Len() - len(keep)
}

// FenceReport counts, per column, the observed values beyond Tukey's fences
// at k interquartile ranges. Missing cells are ignored.
func FenceReport(ds *core.Dataset, k float64) []ColumnCount {
	_, p := ds.Shape()
	out := make([]ColumnCount, p)
	for j := 0; j < p; j++ {
		out[j] = ColumnCount{Column: ds.Names[j], Count: stats.CountBeyondFences(ds.Col(j), k)}
	}
	return out
}
