package server

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/dal"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/dataset"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/model"
)

const exampleBody = `{
	"registration_year": 2018,
	"kms_driven": 40000,
	"manufacturing_year": 2017,
	"mileage(kmpl)": 18.5,
	"engine(cc)": 1197,
	"max_power(bhp)": 82,
	"torque(Nm)": 113
}`

func newTestServer(t *testing.T, kind model.Kind) (*httptest.Server, *model.Bundle) {
	t.Helper()
	ds, err := dataset.Load("../dataset/testdata/cars.csv", dataset.DefaultTarget)
	require.NoError(t, err)

	opts := model.DefaultOptions(kind)
	opts.Trees = 20
	bundle, err := model.Train(context.Background(), ds, opts, nil)
	require.NoError(t, err)

	server := newHTTPServer(bundle, nil)
	ts := httptest.NewServer(server.router())
	t.Cleanup(ts.Close)
	return ts, bundle
}

func postPredict(t *testing.T, ts *httptest.Server, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/predict", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, respBody
}

func TestPredict(t *testing.T) {
	ts, bundle := newTestServer(t, model.Forest)

	tests := []struct {
		name string
		body string
	}{
		{name: "AllFields", body: exampleBody},
		{name: "NumericStrings", body: `{"registration_year": "2018", "kms_driven": "40000", "manufacturing_year": "2017",
			"mileage(kmpl)": "18.5", "engine(cc)": "1197", "max_power(bhp)": "82", "torque(Nm)": "113"}`},
		{name: "MissingField", body: `{"registration_year": 2018, "kms_driven": 40000, "manufacturing_year": 2017,
			"mileage(kmpl)": 18.5, "engine(cc)": 1197, "max_power(bhp)": 82}`},
		{name: "NonNumericField", body: `{"registration_year": 2018, "kms_driven": "lots", "manufacturing_year": 2017,
			"mileage(kmpl)": 18.5, "engine(cc)": 1197, "max_power(bhp)": 82, "torque(Nm)": null}`},
		{name: "EmptyObject", body: `{}`},
		{name: "ExtremeValues", body: `{"registration_year": 1e9, "kms_driven": -1e12, "manufacturing_year": 0,
			"mileage(kmpl)": 1e300, "engine(cc)": -5, "max_power(bhp)": 9e9, "torque(Nm)": 1}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := postPredict(t, ts, tc.body)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

			var raw map[string]interface{}
			require.NoError(t, json.Unmarshal(body, &raw))
			assert.Len(t, raw, 1)

			var pr dal.PredictResponse
			require.NoError(t, json.Unmarshal(body, &pr))
			assert.False(t, math.IsNaN(pr.PredictedPrice))
			assert.GreaterOrEqual(t, pr.PredictedPrice, 0.0)
			assert.LessOrEqual(t, pr.PredictedPrice, 1000.0)
		})
	}

	t.Run("MatchesBundle", func(t *testing.T) {
		_, body := postPredict(t, ts, exampleBody)
		var pr dal.PredictResponse
		require.NoError(t, json.Unmarshal(body, &pr))
		want := bundle.Predict(dal.Features{2018, 40000, 2017, 18.5, 1197, 82, 113})
		assert.Equal(t, want, pr.PredictedPrice)
	})
}

func TestPredictLinear(t *testing.T) {
	ts, _ := newTestServer(t, model.Linear)

	resp, body := postPredict(t, ts, exampleBody)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var pr dal.PredictResponse
	require.NoError(t, json.Unmarshal(body, &pr))
	assert.False(t, math.IsNaN(pr.PredictedPrice))

	resp, body = postPredict(t, ts, `{"kms_driven": 10000}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
}

func TestPredictBadRequest(t *testing.T) {
	ts, _ := newTestServer(t, model.Forest)

	tests := []struct {
		name string
		body string
	}{
		{name: "NotJSON", body: `registration_year=2018`},
		{name: "Array", body: `[2018, 40000]`},
		{name: "Null", body: `null`},
		{name: "Empty", body: ``},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := postPredict(t, ts, tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var er dal.ErrorResponse
			require.NoError(t, json.Unmarshal(body, &er))
			assert.NotEmpty(t, er.Error)
		})
	}
}

func TestPredictMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t, model.Forest)

	resp, err := http.Get(ts.URL + "/predict")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestGetModel(t *testing.T) {
	ts, bundle := newTestServer(t, model.Forest)

	resp, err := http.Get(ts.URL + "/model")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var mr dal.ModelResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&mr))
	assert.Equal(t, "forest", mr.Kind)
	assert.Equal(t, bundle.Version(), mr.Version)
	assert.Equal(t, 44, mr.TrainRows)
	assert.Equal(t, 12, mr.TestRows)
	assert.Equal(t, &dal.Range{Min: 0, Max: 1000}, mr.Clamp)
	assert.Len(t, mr.Imputation, dal.NumFeatures)
}

func TestGetHealth(t *testing.T) {
	ts, bundle := newTestServer(t, model.Forest)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
	var hr dal.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hr))
	assert.Equal(t, dal.HealthResponse{Status: "ok", ModelVersion: bundle.Version()}, hr)
}

func TestMetrics(t *testing.T) {
	ts, _ := newTestServer(t, model.Forest)

	postPredict(t, ts, exampleBody)
	postPredict(t, ts, `{"registration_year": 2018}`)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `carprice_predictions_total{model="forest"} 2`)
	assert.Contains(t, text, `carprice_imputed_features_total{feature="torque(Nm)"} 1`)
	assert.Contains(t, text, `carprice_model_evaluation{metric="mse"}`)
	assert.Contains(t, text, "carprice_prediction_duration_seconds_count 2")
}
