package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/dal"
)

// PostPredict defines a POST handler returning the predicted price of one car
func (h *httpServer) PostPredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	w.Header().Add("Content-Type", "application/json")

	features, err := validateFeatures(w, r)
	if err != nil {
		h.log.Warn("predict request rejected", zap.Error(err))
		return
	}

	if missing := features.Missing(); len(missing) > 0 {
		h.log.Debug("imputing request features", zap.Strings("features", missing))
		for _, name := range missing {
			h.metrics.imputed.WithLabelValues(name).Inc()
		}
	}

	price := h.bundle.Predict(features)
	if math.IsNaN(price) || math.IsInf(price, 0) {
		h.log.Error("non-finite prediction", zap.Float64s("features", features[:]))
		writeError(w, http.StatusInternalServerError, "model produced a non-finite prediction")
		return
	}
	h.metrics.predictions.WithLabelValues(string(h.bundle.Kind())).Inc()
	h.metrics.latency.Observe(time.Since(start).Seconds())

	err = json.NewEncoder(w).Encode(dal.PredictResponse{PredictedPrice: price})
	if err != nil {
		h.log.Error("failed to encode prediction", zap.Error(err))
	}
}

// GetModel defines a GET handler describing the served model
func (h *httpServer) GetModel(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(h.bundle.Summary())
	if err != nil {
		h.log.Error("failed to encode model summary", zap.Error(err))
	}
}

// GetHealth defines a GET liveness handler
func (h *httpServer) GetHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(dal.HealthResponse{
		Status:       "ok",
		ModelVersion: h.bundle.Version(),
	})
	if err != nil {
		h.log.Error("failed to encode health", zap.Error(err))
	}
}

// validateFeatures decodes the request body. Only a body that is not a JSON
// object is rejected; bad field values are left for imputation.
func validateFeatures(w http.ResponseWriter, r *http.Request) (dal.Features, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return dal.Features{}, err
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("request body must be a JSON object: %v", err))
		return dal.Features{}, err
	}
	if raw == nil {
		err := errors.New("request body must be a JSON object")
		writeError(w, http.StatusBadRequest, err.Error())
		return dal.Features{}, err
	}
	return dal.FeaturesFromMap(raw), nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dal.ErrorResponse{Error: msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestLogger tags every request with an id and writes one access log line.
func (h *httpServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		h.log.Info("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}
