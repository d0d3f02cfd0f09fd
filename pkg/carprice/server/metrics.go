package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/model"
)

type metrics struct {
	predictions     *prometheus.CounterVec
	latency         prometheus.Histogram
	imputed         *prometheus.CounterVec
	modelEvaluation *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carprice_predictions_total",
				Help: "Total number of served predictions",
			},
			[]string{"model"},
		),
		latency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "carprice_prediction_duration_seconds",
				Help:    "Predict handler duration",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
		),
		imputed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carprice_imputed_features_total",
				Help: "Request fields that were missing or not numeric and got imputed",
			},
			[]string{"feature"},
		),
		modelEvaluation: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "carprice_model_evaluation",
				Help: "Held-out evaluation of the served model",
			},
			[]string{"metric"},
		),
	}
	reg.MustRegister(m.predictions, m.latency, m.imputed, m.modelEvaluation)
	return m
}

func (m *metrics) observeModel(b *model.Bundle) {
	if b == nil {
		return
	}
	eval := b.Evaluation()
	m.modelEvaluation.WithLabelValues("mse").Set(eval.MSE)
	m.modelEvaluation.WithLabelValues("r2").Set(eval.R2)
}
