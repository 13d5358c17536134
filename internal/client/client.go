package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/storm-tracker-wx/internal/circuitbreaker"
	"github.com/kjstillabower/storm-tracker-wx/internal/observability"
)

// Hop names one of the two upstream calls. Used in metrics labels and error messages.
type Hop string

const (
	HopPoints   Hop = "points"
	HopForecast Hop = "forecast"
)

// Outcome classifies a single upstream call.
type Outcome int

const (
	// OutcomeOK: 2xx; Body holds the full response.
	OutcomeOK Outcome = iota
	// OutcomeHTTPError: non-2xx; StatusCode and the raw Body are forwarded to the caller.
	OutcomeHTTPError
	// OutcomeTransportFailure: no usable response (dial, timeout, body read, open circuit); Err is set.
	OutcomeTransportFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeHTTPError:
		return "http_error"
	case OutcomeTransportFailure:
		return "transport_failure"
	default:
		return "unknown"
	}
}

// Result is the explicit outcome of one upstream GET.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Body       []byte
	Err        error
}

// WeatherClient fetches the two NWS documents a forecast lookup needs.
type WeatherClient interface {
	GetPoint(ctx context.Context, lat, lon float64) Result
	GetForecast(ctx context.Context, forecastURL string) Result
}

// maxBodyBytes caps how much of an upstream body is read. NWS forecast documents are
// well under 1 MiB.
const maxBodyBytes = 8 << 20

const defaultTimeout = 10 * time.Second

// errBodyTooLarge is reported when an upstream body exceeds maxBodyBytes.
var errBodyTooLarge = errors.New("upstream body exceeds size limit")

// NWSClient calls api.weather.gov (or a compatible base URL) with the geo+json Accept
// header and the configured User-Agent. It never retries.
type NWSClient struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	client    *http.Client
	breaker   *circuitbreaker.CircuitBreaker
}

// NewNWSClient returns a client for baseURL. timeout bounds each hop separately.
func NewNWSClient(baseURL, userAgent string, timeout time.Duration) (*NWSClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid NWS base URL %q", baseURL)
	}
	if userAgent == "" {
		return nil, errors.New("user agent is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &NWSClient{
		baseURL:   baseURL,
		userAgent: userAgent,
		timeout:   timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker routes every call through cb. Upstream 5xx and transport failures
// count as breaker failures; 4xx do not.
func (c *NWSClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

// GetPoint resolves gridpoint metadata at {base}/points/{lat},{lon}.
func (c *NWSClient) GetPoint(ctx context.Context, lat, lon float64) Result {
	return c.get(ctx, HopPoints, PointsURL(c.baseURL, lat, lon))
}

// GetForecast fetches the forecast document at the URL taken from gridpoint metadata.
func (c *NWSClient) GetForecast(ctx context.Context, forecastURL string) Result {
	return c.get(ctx, HopForecast, forecastURL)
}

// PointsURL formats coordinates in their shortest round-trip decimal form
// (34.54, not 34.540000).
func PointsURL(baseURL string, lat, lon float64) string {
	return baseURL + "/points/" + formatCoord(lat) + "," + formatCoord(lon)
}

func formatCoord(v float64) string {
	if v == 0 {
		v = 0 // normalise -0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (c *NWSClient) get(ctx context.Context, hop Hop, rawURL string) Result {
	if c.breaker == nil {
		return c.do(ctx, hop, rawURL)
	}
	var (
		res Result
		ran bool
	)
	err := c.breaker.Call(ctx, func() error {
		ran = true
		res = c.do(ctx, hop, rawURL)
		return breakerError(res)
	})
	if ran {
		return res
	}
	// refused without calling upstream: open circuit or cancelled ctx
	res = Result{Outcome: OutcomeTransportFailure, Err: fmt.Errorf("%s: %w", hop, err)}
	observability.UpstreamCallsTotal.WithLabelValues(string(hop), string(Categorize(res))).Inc()
	return res
}

// breakerError reports which results count against the circuit.
func breakerError(res Result) error {
	if !IsUpstreamFault(res) {
		return nil
	}
	if res.Err != nil {
		return res.Err
	}
	return fmt.Errorf("upstream HTTP %d", res.StatusCode)
}

func (c *NWSClient) do(ctx context.Context, hop Hop, rawURL string) Result {
	start := time.Now()
	res := c.call(ctx, hop, rawURL)
	label := string(Categorize(res))
	observability.UpstreamCallsTotal.WithLabelValues(string(hop), label).Inc()
	observability.UpstreamDuration.WithLabelValues(string(hop), label).Observe(time.Since(start).Seconds())

	logger := observability.LoggerFrom(ctx)
	if res.Outcome == OutcomeTransportFailure {
		logger.Debug("upstream call failed", zap.String("hop", string(hop)), zap.String("url", rawURL), zap.Error(res.Err))
	} else {
		logger.Debug("upstream call",
			zap.String("hop", string(hop)),
			zap.String("url", rawURL),
			zap.Int("status", res.StatusCode),
			zap.Duration("duration", time.Since(start)))
	}
	return res
}

func (c *NWSClient) call(ctx context.Context, hop Hop, rawURL string) Result {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, rawURL)
	if err != nil {
		return Result{Outcome: OutcomeTransportFailure, Err: fmt.Errorf("%s: build request: %w", hop, err)}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return Result{Outcome: OutcomeTransportFailure, Err: fmt.Errorf("%s: request timeout: %w", hop, err)}
		}
		return Result{Outcome: OutcomeTransportFailure, Err: fmt.Errorf("%s: http request failed: %w", hop, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return Result{Outcome: OutcomeTransportFailure, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s: read response body: %w", hop, err)}
	}
	if len(body) > maxBodyBytes {
		return Result{Outcome: OutcomeTransportFailure, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s: %w", hop, errBodyTooLarge)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{Outcome: OutcomeHTTPError, StatusCode: resp.StatusCode, Body: body}
	}
	return Result{Outcome: OutcomeOK, StatusCode: resp.StatusCode, Body: body}
}

func (c *NWSClient) buildRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json")
	req.Header.Set("User-Agent", c.userAgent)
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
	return req, nil
}
