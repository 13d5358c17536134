package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/storm-tracker-wx/internal/client"
	"github.com/kjstillabower/storm-tracker-wx/internal/observability"
)

// ErrNoForecastURL is returned when gridpoint metadata arrives without properties.forecast.
var ErrNoForecastURL = errors.New("no forecast URL returned for that location")

// UpstreamError is a non-2xx answer from one hop. Status and Body are forwarded to the
// caller verbatim.
type UpstreamError struct {
	Hop        client.Hop
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream HTTP %d", e.Hop, e.StatusCode)
}

// Service resolves a coordinate to a forecast through two sequential NWS calls.
type Service struct {
	client client.WeatherClient
}

// NewService returns a Service backed by c.
func NewService(c client.WeatherClient) *Service {
	return &Service{client: c}
}

// Lookup runs points -> forecast. Errors are one of *UpstreamError, ErrNoForecastURL,
// or a wrapped transport/parse failure. The second hop only runs after the first
// produced a forecast URL.
func (s *Service) Lookup(ctx context.Context, coord Coordinate) (Report, error) {
	start := time.Now()
	logger := observability.LoggerFrom(ctx)

	point := s.client.GetPoint(ctx, coord.Lat, coord.Lon)
	body, err := unwrap(client.HopPoints, point)
	if err != nil {
		return Report{}, err
	}

	meta, err := parsePoints(body)
	if err != nil {
		return Report{}, fmt.Errorf("parse gridpoint metadata: %w", err)
	}
	forecastURL := meta.forecastURL()
	if forecastURL == "" {
		return Report{}, ErrNoForecastURL
	}

	fc := s.client.GetForecast(ctx, forecastURL)
	body, err = unwrap(client.HopForecast, fc)
	if err != nil {
		return Report{}, err
	}
	if !json.Valid(body) {
		return Report{}, fmt.Errorf("parse forecast: invalid JSON in %d-byte body", len(body))
	}

	logger.Debug("forecast resolved",
		zap.Float64("lat", coord.Lat),
		zap.Float64("lon", coord.Lon),
		zap.String("forecast_url", forecastURL),
		zap.Duration("duration", time.Since(start)))

	return Report{Location: meta.location(), Forecast: json.RawMessage(body)}, nil
}

// unwrap matches one hop's Result: body on success, *UpstreamError on a non-2xx, the
// transport error otherwise.
func unwrap(hop client.Hop, res client.Result) ([]byte, error) {
	switch res.Outcome {
	case client.OutcomeOK:
		return res.Body, nil
	case client.OutcomeHTTPError:
		return nil, &UpstreamError{Hop: hop, StatusCode: res.StatusCode, Body: res.Body}
	case client.OutcomeTransportFailure:
		if res.Err == nil {
			return nil, fmt.Errorf("%s: transport failure", hop)
		}
		return nil, res.Err
	}
	return nil, fmt.Errorf("%s: unknown outcome %v", hop, res.Outcome)
}
