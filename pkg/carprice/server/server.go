package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/model"
)

// maxBodyBytes bounds a /predict request body.
const maxBodyBytes = 1 << 20

// NewHTTPServer returns a new HTTP server serving predictions from bundle
func NewHTTPServer(addr string, bundle *model.Bundle, logger *zap.Logger) *http.Server {
	server := newHTTPServer(bundle, logger)
	return &http.Server{
		Addr:    addr,
		Handler: server.router(),
	}
}

type httpServer struct {
	log      *zap.Logger
	bundle   *model.Bundle
	registry *prometheus.Registry
	metrics  *metrics
}

func newHTTPServer(bundle *model.Bundle, logger *zap.Logger) *httpServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := prometheus.NewRegistry()
	m := newMetrics(registry)
	m.observeModel(bundle)
	return &httpServer{
		log:      logger,
		bundle:   bundle,
		registry: registry,
		metrics:  m,
	}
}

func (h *httpServer) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.requestLogger)
	r.HandleFunc("/predict", h.PostPredict).Methods(http.MethodPost)
	r.HandleFunc("/model", h.GetModel).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.GetHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}
