package model

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Ridge is an L2-penalised least squares regressor solved in closed form.
// Features and target are centred before solving, so the intercept is not penalised.
type Ridge struct {
	Alpha float64
	W     []float64 // weights
	b     float64   // bias
}

// NewRidge creates a ridge regressor with penalty alpha (>= 0).
func NewRidge(alpha float64) *Ridge {
	return &Ridge{Alpha: alpha}
}

// Fit solves (XᵀX + αI) w = Xᵀy on centred X and y.
// X may have zero columns, in which case the model predicts the mean of y.
func (m *Ridge) Fit(X [][]float64, y []float64) error {
	n := len(X)
	if n == 0 {
		return errors.New("ridge: empty X")
	}
	if len(y) != n {
		return fmt.Errorf("ridge: X has %d rows, y has %d", n, len(y))
	}
	p := len(X[0])

	yMean := 0.0
	for _, v := range y {
		yMean += v
	}
	yMean /= float64(n)

	xMean := make([]float64, p)
	for i := range X {
		for j := 0; j < p; j++ {
			xMean[j] += X[i][j]
		}
	}
	for j := range xMean {
		xMean[j] /= float64(n)
	}

	m.W = make([]float64, p)
	if p == 0 {
		m.b = yMean
		return nil
	}

	xc := mat.NewDense(n, p, nil)
	yc := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			xc.Set(i, j, X[i][j]-xMean[j])
		}
		yc.SetVec(i, y[i]-yMean)
	}

	var gram mat.Dense
	gram.Mul(xc.T(), xc)
	for j := 0; j < p; j++ {
		gram.Set(j, j, gram.At(j, j)+m.Alpha)
	}
	var rhs mat.VecDense
	rhs.MulVec(xc.T(), yc)

	var w mat.VecDense
	if err := w.SolveVec(&gram, &rhs); !solved(err) {
		// Singular normal equations (e.g. constant predictors with alpha 0):
		// fall back to least squares on the centred data.
		if err := w.SolveVec(xc, yc); !solved(err) {
			return fmt.Errorf("ridge: solve: %w", err)
		}
	}
	m.b = yMean
	for j := 0; j < p; j++ {
		m.W[j] = w.AtVec(j)
		m.b -= m.W[j] * xMean[j]
	}
	return nil
}

// solved treats an ill-conditioned solve as usable; gonum still fills the result.
func solved(err error) bool {
	if err == nil {
		return true
	}
	var c mat.Condition
	return errors.As(err, &c)
}

// Predict returns predictions for rows in X, parallelised across workers.
func (m *Ridge) Predict(X [][]float64) []float64 {
	if len(X) == 0 {
		return nil
	}
	pred := make([]float64, len(X))
	parallelRows(len(X), func(s, e int) {
		for i := s; i < e; i++ {
			sum := m.b
			for j, v := range X[i] {
				sum += m.W[j] * v
			}
			pred[i] = sum
		}
	})
	return pred
}

// Bias returns the fitted intercept.
func (m *Ridge) Bias() float64 {
	return m.b
}
