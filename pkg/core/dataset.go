package core

import (
	"fmt"
	"math"
)

// Dataset is an in-memory numeric table with named columns.
// Missing cells hold math.NaN().
type Dataset struct {
	Names []string
	Rows  [][]float64
}

// NewDataset validates that every row has one cell per column name.
// The rows are used as-is, not copied.
func NewDataset(names []string, rows [][]float64) (*Dataset, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: dataset needs at least one column", ErrDataShape)
	}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrDataShape, n)
		}
		seen[n] = struct{}{}
	}
	for i, r := range rows {
		if len(r) != len(names) {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrDataShape, i, len(r), len(names))
		}
	}
	return &Dataset{Names: names, Rows: rows}, nil
}

// Missing returns the missing-cell marker.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether v is the missing-cell marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Shape returns (rows, columns).
func (d *Dataset) Shape() (int, int) { return len(d.Rows), len(d.Names) }

// Len returns the row count.
func (d *Dataset) Len() int { return len(d.Rows) }

// Index returns the position of the named column or -1.
func (d *Dataset) Index(name string) int {
	for j, n := range d.Names {
		if n == name {
			return j
		}
	}
	return -1
}

// Col returns a copy of column j.
func (d *Dataset) Col(j int) []float64 {
	out := make([]float64, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r[j]
	}
	return out
}

// SetCol overwrites column j with v.
func (d *Dataset) SetCol(j int, v []float64) {
	for i := range d.Rows {
		d.Rows[i][j] = v[i]
	}
}

// Clone deep copies the dataset.
func (d *Dataset) Clone() *Dataset {
	names := append([]string(nil), d.Names...)
	rows := make([][]float64, len(d.Rows))
	for i, r := range d.Rows {
		rows[i] = append([]float64(nil), r...)
	}
	return &Dataset{Names: names, Rows: rows}
}

// Matrix returns a deep copy of the cells, suitable for handing to models.
func (d *Dataset) Matrix() [][]float64 {
	return d.Clone().Rows
}

// SelectRows returns a new dataset holding the rows at idx, renumbered from zero.
func (d *Dataset) SelectRows(idx []int) *Dataset {
	rows := make([][]float64, len(idx))
	for k, i := range idx {
		rows[k] = append([]float64(nil), d.Rows[i]...)
	}
	return &Dataset{Names: append([]string(nil), d.Names...), Rows: rows}
}

// DropColumns returns a new dataset without the named columns. Unknown names are ignored.
func (d *Dataset) DropColumns(names ...string) *Dataset {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	var keep []int
	var kept []string
	for j, n := range d.Names {
		if !drop[n] {
			keep = append(keep, j)
			kept = append(kept, n)
		}
	}
	rows := make([][]float64, len(d.Rows))
	for i, r := range d.Rows {
		row := make([]float64, len(keep))
		for k, j := range keep {
			row[k] = r[j]
		}
		rows[i] = row
	}
	return &Dataset{Names: kept, Rows: rows}
}

// AddColumn appends a named column. len(v) must equal the row count.
func (d *Dataset) AddColumn(name string, v []float64) error {
	if len(v) != len(d.Rows) {
		return fmt.Errorf("%w: column %q has %d values, want %d", ErrDataShape, name, len(v), len(d.Rows))
	}
	if d.Index(name) >= 0 {
		return fmt.Errorf("%w: duplicate column %q", ErrDataShape, name)
	}
	d.Names = append(d.Names, name)
	for i := range d.Rows {
		d.Rows[i] = append(d.Rows[i], v[i])
	}
	return nil
}

// MissingCounts returns the number of missing cells per column.
func (d *Dataset) MissingCounts() []int {
	counts := make([]int, len(d.Names))
	for _, r := range d.Rows {
		for j, v := range r {
			if IsMissing(v) {
				counts[j]++
			}
		}
	}
	return counts
}

// HasMissing reports whether any cell is missing.
func (d *Dataset) HasMissing() bool {
	for _, r := range d.Rows {
		for _, v := range r {
			if IsMissing(v) {
				return true
			}
		}
	}
	return false
}

// SameColumns reports whether o has exactly the same column names in the same order.
func (d *Dataset) SameColumns(o *Dataset) bool {
	if len(d.Names) != len(o.Names) {
		return false
	}
	for j := range d.Names {
		if d.Names[j] != o.Names[j] {
			return false
		}
	}
	return true
}
