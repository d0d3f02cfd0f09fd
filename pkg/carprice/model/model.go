// Package model fits the price pipeline and packages it as an immutable
// Bundle shared by the request handlers.
package model

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/dal"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/dataset"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/preprocess"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/regression"
)

// Kind names a model variant.
type Kind string

const (
	// Forest drops incomplete training rows, imputes medians, standardizes
	// and clamps predictions to [0, 1000].
	Forest Kind = "forest"
	// Linear keeps incomplete rows, imputes means and returns raw output.
	Linear Kind = "linear"
)

// ParseKind validates a variant name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case Forest, Linear:
		return k, nil
	default:
		return "", fmt.Errorf("unknown model kind %q", s)
	}
}

// Options controls cleaning, splitting, fitting and output policy.
type Options struct {
	Kind           Kind
	Seed           int64
	TestRatio      float64
	DropIncomplete bool
	Impute         preprocess.Strategy
	Scale          bool
	Clamp          *dal.Range

	// Forest only.
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	Workers         int
}

// DefaultOptions returns the settings of the given variant.
func DefaultOptions(kind Kind) Options {
	opts := Options{
		Kind:            kind,
		Seed:            42,
		TestRatio:       0.2,
		Trees:           100,
		MinSamplesSplit: 2,
	}
	switch kind {
	case Linear:
		opts.Impute = preprocess.Mean
	default:
		opts.DropIncomplete = true
		opts.Impute = preprocess.Median
		opts.Scale = true
		opts.Clamp = &dal.Range{Min: 0, Max: 1000}
	}
	return opts
}

// Evaluation holds held-out metrics of unclamped predictions.
type Evaluation struct {
	TrainRows int
	TestRows  int
	MSE       float64
	R2        float64
}

// Bundle is a fitted pipeline. It is never mutated after Train returns, so
// it may be used from any number of goroutines.
type Bundle struct {
	kind      Kind
	version   string
	trainedAt time.Time
	imputer   *preprocess.Imputer
	scaler    *preprocess.StandardScaler
	regressor regression.Regressor
	clamp     *dal.Range
	eval      Evaluation
}

// Train cleans ds, splits it, fits the pipeline on the training rows and
// scores it on the test rows.
func Train(ctx context.Context, ds *dataset.Dataset, opts Options, logger *zap.Logger) (*Bundle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var cleaned *dataset.Dataset
	if opts.DropIncomplete {
		cleaned = ds.DropIncomplete()
	} else {
		cleaned = ds.DropMissingTarget()
	}
	logger.Info("dataset cleaned",
		zap.Int("rows", ds.Len()),
		zap.Int("kept", cleaned.Len()),
		zap.Bool("drop_incomplete", opts.DropIncomplete),
	)

	train, test, err := cleaned.Split(opts.TestRatio, opts.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to split dataset: %w", err)
	}

	b := &Bundle{
		kind:    opts.Kind,
		version: fmt.Sprintf("model-%s", uuid.New().String()),
		imputer: preprocess.NewImputer(opts.Impute),
		clamp:   opts.Clamp,
	}

	X := train.Matrix()
	if err := b.imputer.Fit(X); err != nil {
		return nil, fmt.Errorf("failed to fit imputer: %w", err)
	}
	if X, err = b.imputer.Transform(X); err != nil {
		return nil, err
	}
	if opts.Scale {
		b.scaler = preprocess.NewStandardScaler()
		if err := b.scaler.Fit(X); err != nil {
			return nil, fmt.Errorf("failed to fit scaler: %w", err)
		}
		if X, err = b.scaler.Transform(X); err != nil {
			return nil, err
		}
	}

	b.regressor = newRegressor(opts)
	started := time.Now()
	if err := b.regressor.Fit(ctx, X, train.Target); err != nil {
		return nil, fmt.Errorf("failed to fit %s model: %w", opts.Kind, err)
	}
	b.trainedAt = time.Now()

	predictions := make([]float64, test.Len())
	for i, f := range test.Features {
		predictions[i] = b.predictRaw(f)
	}
	b.eval = Evaluation{
		TrainRows: train.Len(),
		TestRows:  test.Len(),
		MSE:       regression.MeanSquaredError(test.Target, predictions),
		R2:        regression.R2Score(test.Target, predictions),
	}

	logger.Info("model trained",
		zap.String("kind", string(b.kind)),
		zap.String("version", b.version),
		zap.Duration("took", b.trainedAt.Sub(started)),
		zap.Int("train_rows", b.eval.TrainRows),
		zap.Int("test_rows", b.eval.TestRows),
		zap.Float64("mse", b.eval.MSE),
		zap.Float64("r2", b.eval.R2),
	)
	return b, nil
}

func newRegressor(opts Options) regression.Regressor {
	if opts.Kind == Linear {
		return regression.NewLinearRegression()
	}
	rf := regression.NewRandomForest(opts.Seed)
	rf.NEstimators = opts.Trees
	rf.MaxDepth = opts.MaxDepth
	rf.MinSamplesSplit = opts.MinSamplesSplit
	rf.Workers = opts.Workers
	return rf
}

// Predict estimates the price of one car. Missing fields are filled with the
// training statistics before inference.
func (b *Bundle) Predict(f dal.Features) float64 {
	v := b.predictRaw(f)
	if b.clamp != nil && !math.IsNaN(v) {
		v = math.Max(b.clamp.Min, math.Min(v, b.clamp.Max))
	}
	return v
}

func (b *Bundle) predictRaw(f dal.Features) float64 {
	x, err := b.imputer.TransformRow(f[:])
	if err != nil {
		return math.NaN()
	}
	if b.scaler != nil {
		if x, err = b.scaler.TransformRow(x); err != nil {
			return math.NaN()
		}
	}
	return b.regressor.Predict(x)
}

// Kind returns the variant of the bundle.
func (b *Bundle) Kind() Kind { return b.kind }

// Version returns the identifier assigned at training time.
func (b *Bundle) Version() string { return b.version }

// Evaluation returns the held-out metrics.
func (b *Bundle) Evaluation() Evaluation { return b.eval }

// Summary describes the bundle for the GET /model route.
func (b *Bundle) Summary() dal.ModelResponse {
	resp := dal.ModelResponse{
		Kind:       string(b.kind),
		Version:    b.version,
		TrainedAt:  b.trainedAt,
		TrainRows:  b.eval.TrainRows,
		TestRows:   b.eval.TestRows,
		MSE:        finite(b.eval.MSE),
		R2:         finite(b.eval.R2),
		Imputation: make(map[string]float64, dal.NumFeatures),
		Scaled:     b.scaler != nil,
	}
	for i, v := range b.imputer.Statistics() {
		resp.Imputation[dal.FeatureNames[i]] = v
	}
	if b.clamp != nil {
		c := *b.clamp
		resp.Clamp = &c
	}
	return resp
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
