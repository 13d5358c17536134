package http

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/storm-tracker-wx/internal/observability"
)

func TestCorrelationIDMiddleware(t *testing.T) {
	var seenID string
	var seenLogger *zap.Logger
	core, logs := observer.New(zapcore.InfoLevel)

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.New(core)))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		seenID = observability.CorrelationID(r.Context())
		seenLogger = observability.LoggerFrom(r.Context())
		seenLogger.Info("inside")
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Correlation-ID", "client-provided-id")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "client-provided-id" {
		t.Errorf("X-Correlation-ID = %q, want client-provided-id", got)
	}
	if seenID != "client-provided-id" {
		t.Errorf("context correlation ID = %q", seenID)
	}
	entries := logs.FilterMessage("inside").All()
	if len(entries) != 1 || entries[0].ContextMap()["correlation_id"] != "client-provided-id" {
		t.Errorf("request logger fields = %v", entries)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	generated := w.Header().Get("X-Correlation-ID")
	if len(generated) != 36 || seenID != generated {
		t.Errorf("generated ID = %q, context = %q", generated, seenID)
	}
}

func TestMetricsMiddleware_RecordsRouteAndStatus(t *testing.T) {
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if InFlightCount() < 1 {
			t.Error("request should be counted in flight while served")
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	counter := observability.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/forecast", "5xx")
	before := counterValue(t, counter)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/forecast?lat=1&lon=2", nil))

	if got := counterValue(t, counter); got != before+1 {
		t.Errorf("httpRequestsTotal = %v, want %v", got, before+1)
	}
	if InFlightCount() != 0 {
		t.Errorf("InFlightCount() = %d after request, want 0", InFlightCount())
	}
}

func TestGetRoute(t *testing.T) {
	tests := map[string]string{
		"/health":        "/health",
		"/metrics":       "/metrics",
		"/api/forecast":  "/api/forecast",
		"/api/other":     "static",
		"/css/site.css":  "static",
		"/radar/atlanta": "static",
	}
	for path, want := range tests {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if got := getRoute(req); got != want {
			t.Errorf("getRoute(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestAccessLogMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := CorrelationIDMiddleware(zap.New(core))(AccessLogMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/pot?size=small", nil))

	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 {
		t.Fatalf("got %d access log entries, want 1", len(entries))
	}
	f := entries[0].ContextMap()
	if f["method"] != "GET" || f["url"] != "/pot?size=small" || f["status"] != int64(418) || f["bytes"] != int64(15) {
		t.Errorf("access log fields = %v", f)
	}
}

func TestStatusRecorder_FirstWriteHeaderWins(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())
	_, _ = rec.Write([]byte("ok"))
	rec.WriteHeader(http.StatusInternalServerError)
	if rec.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want 200 after implicit header", rec.statusCode)
	}
}

func TestTimeoutMiddleware_SetsDeadline(t *testing.T) {
	var hasDeadline bool
	handler := TimeoutMiddleware(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/forecast", nil))
	if !hasDeadline {
		t.Error("request context should carry a deadline")
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	handler := SecurityHeadersMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	want := map[string]string{
		"X-Frame-Options":                   "SAMEORIGIN",
		"X-Content-Type-Options":            "nosniff",
		"Referrer-Policy":                   "no-referrer",
		"Strict-Transport-Security":         "max-age=15552000; includeSubDomains",
		"X-XSS-Protection":                  "0",
		"X-DNS-Prefetch-Control":            "off",
		"X-Download-Options":                "noopen",
		"X-Permitted-Cross-Domain-Policies": "none",
		"Origin-Agent-Cluster":              "?1",
		"Cross-Origin-Opener-Policy":        "same-origin",
		"Cross-Origin-Resource-Policy":      "same-origin",
	}
	for k, v := range want {
		if got := w.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if csp := w.Header().Get("Content-Security-Policy"); csp != "" {
		t.Errorf("Content-Security-Policy = %q, want none", csp)
	}
}

func TestCompressionMiddleware(t *testing.T) {
	payload := strings.Repeat(`{"name":"Tonight","detailedForecast":"Mostly clear"}`, 100)
	mw, err := CompressionMiddleware(1024)
	if err != nil {
		t.Fatalf("CompressionMiddleware() error = %v", err)
	}
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/forecast", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", w.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	got, _ := io.ReadAll(zr)
	if string(got) != payload {
		t.Error("decompressed body differs from payload")
	}

	// below MinSize and without Accept-Encoding stay plain
	for _, tc := range []struct {
		body, enc string
	}{{"tiny", "gzip"}, {payload, ""}} {
		h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(tc.body))
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.enc != "" {
			req.Header.Set("Accept-Encoding", tc.enc)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Header().Get("Content-Encoding") != "" || w.Body.String() != tc.body {
			t.Errorf("len %d enc %q: got Content-Encoding %q", len(tc.body), tc.enc, w.Header().Get("Content-Encoding"))
		}
	}
}

func TestCompressionMiddleware_SkipsRangeRequests(t *testing.T) {
	mw, err := CompressionMiddleware(1)
	if err != nil {
		t.Fatalf("CompressionMiddleware() error = %v", err)
	}
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 2048)))
	}))
	req := httptest.NewRequest(http.MethodGet, "/big.txt", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Range", "bytes=0-9")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if enc := w.Header().Get("Content-Encoding"); enc != "" {
		t.Errorf("Content-Encoding = %q, want none for range request", enc)
	}
}
