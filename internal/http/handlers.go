package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/storm-tracker-wx/internal/circuitbreaker"
	"github.com/kjstillabower/storm-tracker-wx/internal/client"
	"github.com/kjstillabower/storm-tracker-wx/internal/forecast"
	"github.com/kjstillabower/storm-tracker-wx/internal/lifecycle"
	"github.com/kjstillabower/storm-tracker-wx/internal/observability"
	"github.com/kjstillabower/storm-tracker-wx/internal/traffic"
	"github.com/kjstillabower/storm-tracker-wx/internal/validation"
)

const (
	msgInvalidCoordinates = "Invalid lat/lon."
	msgPointsFailed       = "Failed to fetch gridpoint metadata"
	msgForecastFailed     = "Failed to fetch forecast"
	msgNoForecastURL      = "No forecast URL returned for that location."
	msgServerError        = "Server error"
)

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// Breaker, when set, reports degraded while the upstream circuit is open.
	Breaker *circuitbreaker.CircuitBreaker
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	forecasts        *forecast.Service
	healthConfig     *HealthConfig
	logger           *zap.Logger
	enforceRange     bool
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. enforceRange rejects latitudes outside [-90,90] and
// longitudes outside [-180,180].
func NewHandler(forecasts *forecast.Service, healthConfig *HealthConfig, logger *zap.Logger, enforceRange bool) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		forecasts:    forecasts,
		healthConfig: healthConfig,
		logger:       logger,
		enforceRange: enforceRange,
	}
}

type errorBody struct {
	Error   string  `json:"error"`
	Details *string `json:"details,omitempty"`
}

// GetForecast handles GET /api/forecast?lat=..&lon=..
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFrom(r.Context())
	q := r.URL.Query()

	lat, lon, err := validation.ParseCoordinate(q.Get("lat"), q.Get("lon"), h.enforceRange)
	if err != nil {
		logger.Debug("invalid coordinates", zap.String("lat", q.Get("lat")), zap.String("lon", q.Get("lon")), zap.Error(err))
		observability.ForecastLookupsTotal.WithLabelValues("invalid_input").Inc()
		writeError(w, http.StatusBadRequest, msgInvalidCoordinates, nil)
		return
	}

	report, err := h.forecasts.Lookup(r.Context(), forecast.Coordinate{Lat: lat, Lon: lon})
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	traffic.RecordSuccess()
	observability.ForecastLookupsTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, report)
}

// writeLookupError maps Lookup errors to responses:
// forwarded upstream status, 502 for a missing forecast URL, 500 otherwise.
func (h *Handler) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.LoggerFrom(r.Context())

	var upErr *forecast.UpstreamError
	switch {
	case errors.As(err, &upErr):
		if upErr.StatusCode >= http.StatusInternalServerError {
			traffic.RecordError()
		} else {
			traffic.RecordSuccess()
		}
		observability.ForecastLookupsTotal.WithLabelValues("upstream_status").Inc()
		logger.Warn("upstream rejected request", zap.String("hop", string(upErr.Hop)), zap.Int("status", upErr.StatusCode))

		msg := msgPointsFailed
		if upErr.Hop != client.HopPoints {
			msg = msgForecastFailed
		}
		details := string(upErr.Body)
		writeError(w, upErr.StatusCode, msg, &details)

	case errors.Is(err, forecast.ErrNoForecastURL):
		traffic.RecordError()
		observability.ForecastLookupsTotal.WithLabelValues("no_forecast_url").Inc()
		logger.Warn("gridpoint metadata without forecast URL")
		writeError(w, http.StatusBadGateway, msgNoForecastURL, nil)

	default:
		// client went away; not an upstream fault
		if !errors.Is(err, context.Canceled) {
			traffic.RecordError()
		}
		observability.ForecastLookupsTotal.WithLabelValues("server_error").Inc()
		logger.Error("forecast lookup failed", zap.Error(err))
		details := err.Error()
		writeError(w, http.StatusInternalServerError, msgServerError, &details)
	}
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"nws": "healthy"}
	if result.status == "degraded" {
		checks["nws"] = "unhealthy"
	}
	if h.healthConfig != nil && h.healthConfig.Breaker != nil {
		checks["circuitBreaker"] = h.healthConfig.Breaker.State().String()
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "storm-tracker-wx",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates, in order: shutting-down, open circuit, upstream error rate.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if b := h.healthConfig.Breaker; b != nil && b.State() == circuitbreaker.StateOpen {
		return healthResult{"degraded", http.StatusServiceUnavailable, "circuit_open"}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errs, total := traffic.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 && float64(errs)*100/float64(total) >= float64(h.healthConfig.DegradedErrorPct) {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, details *string) {
	writeJSON(w, status, errorBody{Error: message, Details: details})
}
