// Package dataset loads the used car table and prepares training splits.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/dal"
)

// DefaultTarget is the price column of the used car dataset.
const DefaultTarget = "price(in lakhs)"

// ErrTooSmall is returned when a split would leave one side empty.
var ErrTooSmall = errors.New("dataset too small to split")

// Dataset holds feature rows and their target prices.
type Dataset struct {
	Features []dal.Features
	Target   []float64
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Target)
}

// Load reads the CSV file at path.
func Load(path, target string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return Read(f, target)
}

// Read parses a CSV stream with a header row. Every cell of the feature and
// target columns is coerced to a number; cells that do not parse become NaN.
// Other columns are ignored.
func Read(r io.Reader, target string) (*Dataset, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", df.Err)
	}

	columns := make([][]string, 0, dal.NumFeatures+1)
	for _, name := range append(dal.FeatureNames[:], target) {
		col := df.Col(name)
		if col.Err != nil {
			return nil, fmt.Errorf("dataset column %q: %w", name, col.Err)
		}
		columns = append(columns, col.Records())
	}

	n := df.Nrow()
	ds := &Dataset{
		Features: make([]dal.Features, n),
		Target:   make([]float64, n),
	}
	for i := 0; i < n; i++ {
		for j := 0; j < dal.NumFeatures; j++ {
			ds.Features[i][j] = dal.ParseNumber(columns[j][i])
		}
		ds.Target[i] = dal.ParseNumber(columns[dal.NumFeatures][i])
	}
	return ds, nil
}

// DropIncomplete returns the rows whose features and target are all numeric.
func (d *Dataset) DropIncomplete() *Dataset {
	return d.filter(func(i int) bool {
		return len(d.Features[i].Missing()) == 0 && !math.IsNaN(d.Target[i])
	})
}

// DropMissingTarget returns the rows with a numeric target. Feature values
// may still be missing.
func (d *Dataset) DropMissingTarget() *Dataset {
	return d.filter(func(i int) bool {
		return !math.IsNaN(d.Target[i])
	})
}

func (d *Dataset) filter(keep func(i int) bool) *Dataset {
	out := &Dataset{}
	for i := range d.Target {
		if keep(i) {
			out.Features = append(out.Features, d.Features[i])
			out.Target = append(out.Target, d.Target[i])
		}
	}
	return out
}

// Split shuffles the rows with a seeded source and puts ceil(testRatio*n)
// of them in the test split. The same seed always yields the same split.
func (d *Dataset) Split(testRatio float64, seed int64) (train, test *Dataset, err error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, fmt.Errorf("test ratio must be in (0, 1): %v", testRatio)
	}
	n := d.Len()
	nTest := int(math.Ceil(testRatio * float64(n)))
	if nTest < 1 || n-nTest < 1 {
		return nil, nil, fmt.Errorf("%w: %d rows", ErrTooSmall, n)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	test = d.subset(perm[:nTest])
	train = d.subset(perm[nTest:])
	return train, test, nil
}

func (d *Dataset) subset(idx []int) *Dataset {
	out := &Dataset{
		Features: make([]dal.Features, len(idx)),
		Target:   make([]float64, len(idx)),
	}
	for i, j := range idx {
		out.Features[i] = d.Features[j]
		out.Target[i] = d.Target[j]
	}
	return out
}

// Matrix returns the feature rows as plain slices.
func (d *Dataset) Matrix() [][]float64 {
	X := make([][]float64, len(d.Features))
	for i := range d.Features {
		row := d.Features[i]
		X[i] = row[:]
	}
	return X
}
