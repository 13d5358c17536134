package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/storm-tracker-wx/internal/traffic"
)

// TestMetrics_Usable verifies label dimensions match usage in client, http and main.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/api/forecast", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/api/forecast").Observe(0.01)
	UpstreamCallsTotal.WithLabelValues("points", "success").Inc()
	UpstreamCallsTotal.WithLabelValues("forecast", "server_error").Inc()
	UpstreamDuration.WithLabelValues("points", "success").Observe(0.2)
	ForecastLookupsTotal.WithLabelValues("success").Inc()
	StaticResponsesTotal.WithLabelValues("fallback").Inc()
	RecordCircuitBreakerTransition("nws", "closed", "open")
	SetCircuitBreakerStateGauge("nws", 1)
}

// TestMetricsHandler_ServesPrometheusFormat verifies the exposition endpoint.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()
	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "httpRequestsTotal") {
		t.Error("MetricsHandler response should contain metric output")
	}
}

func TestRegisterUpstreamGauges_ReflectsTraffic(t *testing.T) {
	traffic.Reset()
	defer traffic.Reset()
	RegisterUpstreamGauges(time.Minute)
	RegisterUpstreamGauges(time.Minute) // second call is a no-op

	traffic.RecordError()
	traffic.RecordSuccess()

	w := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body := w.Body.String()
	if !strings.Contains(body, "upstreamErrorsInWindow 1") {
		t.Errorf("expected upstreamErrorsInWindow 1 in output")
	}
	if !strings.Contains(body, "upstreamLookupsInWindow 2") {
		t.Errorf("expected upstreamLookupsInWindow 2 in output")
	}
}
