package dal

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Feature names as they appear in the dataset header and in request bodies.
const (
	RegistrationYear  = "registration_year"
	KmsDriven         = "kms_driven"
	ManufacturingYear = "manufacturing_year"
	Mileage           = "mileage(kmpl)"
	Engine            = "engine(cc)"
	MaxPower          = "max_power(bhp)"
	Torque            = "torque(Nm)"
)

// NumFeatures is the width of a feature vector.
const NumFeatures = 7

// FeatureNames lists the features in vector order.
var FeatureNames = [NumFeatures]string{
	RegistrationYear,
	KmsDriven,
	ManufacturingYear,
	Mileage,
	Engine,
	MaxPower,
	Torque,
}

// Features is an ordered car feature vector. NaN marks a missing value.
type Features [NumFeatures]float64

// Missing returns the names of the fields that hold no usable number.
func (f Features) Missing() []string {
	var names []string
	for i, v := range f {
		if math.IsNaN(v) {
			names = append(names, FeatureNames[i])
		}
	}
	return names
}

// FeaturesFromMap picks the named features out of a decoded JSON object.
// Absent keys and values that are not numbers become NaN.
func FeaturesFromMap(raw map[string]interface{}) Features {
	var f Features
	for i, name := range FeatureNames {
		v, ok := raw[name]
		if !ok {
			f[i] = math.NaN()
			continue
		}
		f[i] = CoerceValue(v)
	}
	return f
}

// CoerceValue converts a decoded JSON value to a float, returning NaN when
// the value is not a number or a numeric string.
func CoerceValue(v interface{}) float64 {
	switch t := v.(type) {
	case json.Number:
		return ParseNumber(t.String())
	case float64:
		return finiteOrNaN(t)
	case string:
		return ParseNumber(t)
	default:
		return math.NaN()
	}
}

// ParseNumber parses s as a float. Blank, malformed and non-finite input
// yields NaN.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return finiteOrNaN(v)
}

func finiteOrNaN(v float64) float64 {
	if math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// PredictResponse defines the POST /predict response
type PredictResponse struct {
	PredictedPrice float64 `json:"predicted_price"`
}

// ErrorResponse defines an HTTP error body
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse defines the GET /healthz response
type HealthResponse struct {
	Status       string `json:"status"`
	ModelVersion string `json:"model_version"`
}

// ModelResponse describes the fitted model served by the process.
type ModelResponse struct {
	Kind       string             `json:"kind"`
	Version    string             `json:"version"`
	TrainedAt  time.Time          `json:"trained_at"`
	TrainRows  int                `json:"train_rows"`
	TestRows   int                `json:"test_rows"`
	MSE        *float64           `json:"mse,omitempty"`
	R2         *float64           `json:"r2,omitempty"`
	Imputation map[string]float64 `json:"imputation"`
	Scaled     bool               `json:"scaled"`
	Clamp      *Range             `json:"clamp,omitempty"`
}

// Range is a closed numeric interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}
