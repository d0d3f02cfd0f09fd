package regression

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LinearRegression is an ordinary least squares fit with an intercept.
type LinearRegression struct {
	intercept float64
	coef      []float64
}

// NewLinearRegression returns an unfitted model.
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

// Fit solves the least squares problem on centered data. Rank deficient
// designs get the minimum norm solution.
func (lr *LinearRegression) Fit(ctx context.Context, X [][]float64, y []float64) error {
	n, p, err := validate(X, y)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	xMean := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			col[i] = X[i][j]
		}
		xMean[j] = stat.Mean(col, nil)
	}
	yMean := stat.Mean(y, nil)

	a := mat.NewDense(n, p, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			a.Set(i, j, X[i][j]-xMean[j])
		}
		b.SetVec(i, y[i]-yMean)
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return errors.New("least squares factorization failed")
	}

	coef := make([]float64, p)
	eps := math.Nextafter(1, 2) - 1
	if rank := svd.Rank(eps * float64(max(n, p))); rank > 0 {
		var beta mat.VecDense
		svd.SolveVecTo(&beta, b, rank)
		for j := range coef {
			coef[j] = beta.AtVec(j)
		}
	}

	intercept := yMean
	for j := range coef {
		intercept -= coef[j] * xMean[j]
	}
	lr.coef = coef
	lr.intercept = intercept
	return nil
}

// Predict returns intercept + coef·x.
func (lr *LinearRegression) Predict(x []float64) float64 {
	if lr.coef == nil || len(x) != len(lr.coef) {
		return math.NaN()
	}
	v := lr.intercept
	for j, c := range lr.coef {
		v += c * x[j]
	}
	return v
}

// Intercept returns the fitted bias term.
func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept
}

// Coef returns a copy of the fitted coefficients.
func (lr *LinearRegression) Coef() []float64 {
	return append([]float64(nil), lr.coef...)
}
