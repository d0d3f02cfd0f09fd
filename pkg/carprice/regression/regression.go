// Package regression implements the estimators behind the price model.
package regression

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Regressor maps a feature row to a scalar.
type Regressor interface {
	// Fit trains the estimator on the rows of X and targets y.
	Fit(ctx context.Context, X [][]float64, y []float64) error
	// Predict returns the estimate for one row. It returns NaN if the
	// estimator is not fitted or x has the wrong width.
	Predict(x []float64) float64
}

// PredictAll applies r to every row of X.
func PredictAll(r Regressor, X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = r.Predict(x)
	}
	return out
}

// MeanSquaredError returns the mean squared difference of two series.
func MeanSquaredError(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return math.NaN()
	}
	d := floats.Distance(yTrue, yPred, 2)
	return d * d / float64(len(yTrue))
}

// R2Score returns the coefficient of determination of yPred against yTrue.
func R2Score(yTrue, yPred []float64) float64 {
	if len(yTrue) < 2 || len(yTrue) != len(yPred) {
		return math.NaN()
	}
	return stat.RSquaredFrom(yPred, yTrue, nil)
}

func validate(X [][]float64, y []float64) (rows, width int, err error) {
	if len(X) == 0 {
		return 0, 0, errors.New("no training rows")
	}
	if len(X) != len(y) {
		return 0, 0, fmt.Errorf("%d rows but %d targets", len(X), len(y))
	}
	width = len(X[0])
	if width == 0 {
		return 0, 0, errors.New("training rows have no columns")
	}
	for i, row := range X {
		if len(row) != width {
			return 0, 0, fmt.Errorf("row %d has %d columns, want %d", i, len(row), width)
		}
		if floats.HasNaN(row) {
			return 0, 0, fmt.Errorf("row %d has missing values", i)
		}
		if math.IsNaN(y[i]) {
			return 0, 0, fmt.Errorf("row %d has a missing target", i)
		}
	}
	return len(X), width, nil
}
