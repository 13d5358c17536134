package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/kjstillabower/storm-tracker-wx/internal/circuitbreaker"
)

// ErrorCategory is a stable label for upstream outcome classification in metrics.
type ErrorCategory string

// Category constants used as the status label of upstreamCallsTotal.
const (
	CategorySuccess     ErrorCategory = "success"
	CategoryClientError ErrorCategory = "client_error"
	CategoryRateLimited ErrorCategory = "rate_limited"
	CategoryServerError ErrorCategory = "server_error"
	CategoryTimeout     ErrorCategory = "timeout"
	CategoryNetwork     ErrorCategory = "network"
	CategoryCircuitOpen ErrorCategory = "circuit_open"
	CategoryUnknown     ErrorCategory = "unknown"
)

// Categorize maps a Result to a stable ErrorCategory.
func Categorize(res Result) ErrorCategory {
	switch res.Outcome {
	case OutcomeOK:
		return CategorySuccess
	case OutcomeHTTPError:
		return categorizeStatus(res.StatusCode)
	case OutcomeTransportFailure:
		return categorizeErr(res.Err)
	}
	return CategoryUnknown
}

func categorizeStatus(code int) ErrorCategory {
	switch {
	case code == http.StatusTooManyRequests:
		return CategoryRateLimited
	case code >= 400 && code < 500:
		return CategoryClientError
	case code >= 500:
		return CategoryServerError
	}
	return CategoryUnknown
}

func categorizeErr(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return CategoryCircuitOpen
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CategoryTimeout
		}
		return CategoryNetwork
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return CategoryTimeout
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return CategoryNetwork
	}
	return CategoryUnknown
}

// IsUpstreamFault reports whether res reflects a problem on the NWS side (5xx or no
// usable response) rather than a request NWS rejected.
func IsUpstreamFault(res Result) bool {
	switch res.Outcome {
	case OutcomeTransportFailure:
		return true
	case OutcomeHTTPError:
		return res.StatusCode >= 500
	}
	return false
}
