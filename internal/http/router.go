package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/storm-tracker-wx/internal/observability"
)

// RouterConfig holds what NewRouter wires together.
type RouterConfig struct {
	Handler            *Handler
	Static             http.Handler
	Logger             *zap.Logger
	RequestTimeout     time.Duration
	CompressionMinSize int
}

// NewRouter builds the service routes:
//
//	GET /health         health status
//	GET /metrics        Prometheus exposition
//	GET /api/forecast   two-hop NWS forecast lookup
//	/*                  static site with entry-document fallback
func NewRouter(cfg RouterConfig) (*mux.Router, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	compress, err := CompressionMiddleware(cfg.CompressionMinSize)
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.Use(AccessLogMiddleware)
	router.Use(SecurityHeadersMiddleware())
	router.Use(compress)

	router.HandleFunc("/health", cfg.Handler.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	if cfg.RequestTimeout > 0 {
		api.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	api.HandleFunc("/forecast", cfg.Handler.GetForecast).Methods(http.MethodGet, http.MethodHead)

	if cfg.Static != nil {
		router.PathPrefix("/").Handler(cfg.Static)
	}
	return router, nil
}
