// Package preprocess holds the column transforms fitted on the training split
// and replayed on every prediction.
package preprocess

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Strategy selects the statistic used to fill missing values.
type Strategy string

const (
	Mean   Strategy = "mean"
	Median Strategy = "median"
)

var errNotFitted = errors.New("transform used before fit")

// Imputer replaces NaN cells with a per-column statistic.
type Imputer struct {
	strategy   Strategy
	statistics []float64
}

// NewImputer returns an unfitted imputer.
func NewImputer(strategy Strategy) *Imputer {
	return &Imputer{strategy: strategy}
}

// Fit computes the fill value of every column, ignoring NaN cells.
func (im *Imputer) Fit(X [][]float64) error {
	cols, err := columns(X)
	if err != nil {
		return err
	}
	stats := make([]float64, len(cols))
	for j, col := range cols {
		observed := dropNaN(col)
		if len(observed) == 0 {
			return fmt.Errorf("column %d has no observed values", j)
		}
		switch im.strategy {
		case Mean:
			stats[j] = stat.Mean(observed, nil)
		case Median:
			stats[j] = median(observed)
		default:
			return fmt.Errorf("unknown imputation strategy %q", im.strategy)
		}
	}
	im.statistics = stats
	return nil
}

// Statistics returns a copy of the fitted fill values.
func (im *Imputer) Statistics() []float64 {
	return append([]float64(nil), im.statistics...)
}

// Transform returns a filled copy of X.
func (im *Imputer) Transform(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		r, err := im.TransformRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// TransformRow returns a filled copy of x.
func (im *Imputer) TransformRow(x []float64) ([]float64, error) {
	if im.statistics == nil {
		return nil, errNotFitted
	}
	if len(x) != len(im.statistics) {
		return nil, fmt.Errorf("row has %d columns, imputer fitted on %d", len(x), len(im.statistics))
	}
	out := make([]float64, len(x))
	for j, v := range x {
		if math.IsNaN(v) {
			v = im.statistics[j]
		}
		out[j] = v
	}
	return out, nil
}

// StandardScaler rescales columns to zero mean and unit variance.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// NewStandardScaler returns an unfitted scaler.
func NewStandardScaler() *StandardScaler {
	return &StandardScaler{}
}

// Fit computes the population mean and standard deviation of every column.
// Constant columns get a scale of 1.
func (s *StandardScaler) Fit(X [][]float64) error {
	cols, err := columns(X)
	if err != nil {
		return err
	}
	s.mean = make([]float64, len(cols))
	s.scale = make([]float64, len(cols))
	for j, col := range cols {
		m, v := stat.PopMeanVariance(col, nil)
		s.mean[j] = m
		s.scale[j] = math.Sqrt(v)
		if s.scale[j] == 0 {
			s.scale[j] = 1
		}
	}
	return nil
}

// Mean returns a copy of the fitted column means.
func (s *StandardScaler) Mean() []float64 {
	return append([]float64(nil), s.mean...)
}

// Scale returns a copy of the fitted column deviations.
func (s *StandardScaler) Scale() []float64 {
	return append([]float64(nil), s.scale...)
}

// Transform returns a scaled copy of X.
func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		r, err := s.TransformRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// TransformRow returns a scaled copy of x.
func (s *StandardScaler) TransformRow(x []float64) ([]float64, error) {
	if s.mean == nil {
		return nil, errNotFitted
	}
	if len(x) != len(s.mean) {
		return nil, fmt.Errorf("row has %d columns, scaler fitted on %d", len(x), len(s.mean))
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.mean[j]) / s.scale[j]
	}
	return out, nil
}

func columns(X [][]float64) ([][]float64, error) {
	if len(X) == 0 {
		return nil, errors.New("no rows to fit")
	}
	width := len(X[0])
	cols := make([][]float64, width)
	for j := range cols {
		cols[j] = make([]float64, len(X))
	}
	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), width)
		}
		for j, v := range row {
			cols[j][i] = v
		}
	}
	return cols, nil
}

func dropNaN(col []float64) []float64 {
	out := make([]float64, 0, len(col))
	for _, v := range col {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// median sorts x in place.
func median(x []float64) float64 {
	sort.Float64s(x)
	n := len(x)
	if n%2 == 1 {
		return x[n/2]
	}
	return (x[n/2-1] + x[n/2]) / 2
}
