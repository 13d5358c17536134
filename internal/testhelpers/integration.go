//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/storm-tracker-wx/internal/client"
	"github.com/kjstillabower/storm-tracker-wx/internal/forecast"
)

// IntegrationTestConfig holds configuration for live NWS tests.
type IntegrationTestConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test when NWS_INTEGRATION is unset: api.weather.gov asks callers not to
// hammer it from CI.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	if os.Getenv("NWS_INTEGRATION") == "" {
		t.Skip("NWS_INTEGRATION not set, skipping live NWS test")
	}

	baseURL := os.Getenv("NWS_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.weather.gov"
	}
	contact := os.Getenv("CONTACT_EMAIL")
	if contact == "" {
		contact = "you@example.com"
	}

	return IntegrationTestConfig{
		BaseURL:   baseURL,
		UserAgent: "Storm Tracker WX integration (contact: " + contact + ")",
		Timeout:   15 * time.Second,
	}
}

// SetupIntegrationClient creates an NWS client for integration tests.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) *client.NWSClient {
	t.Helper()
	c, err := client.NewNWSClient(cfg.BaseURL, cfg.UserAgent, cfg.Timeout)
	if err != nil {
		t.Fatalf("NewNWSClient() error = %v", err)
	}
	return c
}

// SetupIntegrationService creates a forecast service over a live NWS client.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) *forecast.Service {
	t.Helper()
	return forecast.NewService(SetupIntegrationClient(t, cfg))
}
