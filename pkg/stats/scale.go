package stats

import (
	"errors"
	"fmt"
)

// MaxAbsScaler rescales each column by its maximum absolute value so every
// value lands in [-1, 1]. Zeros stay zero, which keeps sparse monetary and
// count features sparse.
type MaxAbsScaler struct {
	// Columns restricts scaling to these column indices. nil scales all columns.
	Columns []int

	MaxAbs []float64
	fit    bool
}

// NewMaxAbsScaler returns a scaler over the given columns (none = all).
func NewMaxAbsScaler(columns ...int) *MaxAbsScaler {
	return &MaxAbsScaler{Columns: columns}
}

func (s *MaxAbsScaler) columns(c int) ([]int, error) {
	if s.Columns == nil {
		cols := make([]int, c)
		for j := range cols {
			cols[j] = j
		}
		return cols, nil
	}
	for _, j := range s.Columns {
		if j < 0 || j >= c {
			return nil, fmt.Errorf("maxabs: column %d out of range [0,%d)", j, c)
		}
	}
	return s.Columns, nil
}

// Fit records the maximum absolute value of every selected column. NaN cells are ignored.
func (s *MaxAbsScaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return errors.New("maxabs: empty X")
	}
	c := len(X[0])
	cols, err := s.columns(c)
	if err != nil {
		return err
	}
	s.MaxAbs = make([]float64, c)
	for _, j := range cols {
		col := make([]float64, len(X))
		for i := range X {
			col[i] = X[i][j]
		}
		s.MaxAbs[j] = MaxAbs(col)
	}
	s.fit = true
	return nil
}

// Transform scales X in place and returns it. Columns whose maximum absolute
// value is zero are left as all zeros.
func (s *MaxAbsScaler) Transform(X [][]float64) ([][]float64, error) {
	if !s.fit {
		return nil, errors.New("maxabs: transform before fit")
	}
	for i, row := range X {
		if len(row) != len(s.MaxAbs) {
			return nil, fmt.Errorf("maxabs: row %d has %d columns, fitted on %d", i, len(row), len(s.MaxAbs))
		}
	}
	cols, _ := s.columns(len(s.MaxAbs))
	for _, row := range X {
		for _, j := range cols {
			if s.MaxAbs[j] != 0 {
				row[j] /= s.MaxAbs[j]
			}
		}
	}
	return X, nil
}

// FitTransform fits on X and scales it in place.
func (s *MaxAbsScaler) FitTransform(X [][]float64) ([][]float64, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}
