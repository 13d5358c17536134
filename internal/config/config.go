package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultAppName      = "Storm Tracker WX"
	defaultContactEmail = "you@example.com"
	defaultNWSBaseURL   = "https://api.weather.gov"
)

// Config holds service configuration loaded from .env, YAML and env.
type Config struct {
	ServerPort string

	AppName      string
	ContactEmail string

	NWSBaseURL      string
	UpstreamTimeout time.Duration
	RequestTimeout  time.Duration

	EnforceCoordinateRange bool

	StaticDir          string
	EntryDocument      string
	CacheControl       string
	CompressionMinSize int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration
}

// UserAgent is the client identification sent on every upstream call.
func (c *Config) UserAgent() string {
	return fmt.Sprintf("%s (contact: %s)", c.AppName, c.ContactEmail)
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	App struct {
		Name         string `yaml:"name"`
		ContactEmail string `yaml:"contact_email"`
	} `yaml:"app"`

	Upstream struct {
		BaseURL        string `yaml:"base_url"`
		Timeout        string `yaml:"timeout"`
		CircuitBreaker struct {
			Enabled          *bool  `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"upstream"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Validation struct {
		EnforceRange *bool `yaml:"enforce_range"`
	} `yaml:"validation"`

	Static struct {
		Dir                string `yaml:"dir"`
		EntryDocument      string `yaml:"entry_document"`
		CacheControl       string `yaml:"cache_control"`
		CompressionMinSize int    `yaml:"compression_min_size"`
	} `yaml:"static"`

	Health struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`
}

// Load builds the configuration in three layers: .env (optional), config/{ENV_NAME}.yaml
// (optional, default dev), then environment overrides for PORT, APP_NAME, CONTACT_EMAIL,
// NWS_BASE_URL and STATIC_DIR. Call from project root.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}

	var fc fileConfig
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case os.IsNotExist(err):
		// defaults and environment only
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(os.Getenv("PORT"), fc.Server.Port, "8080")
	cfg.AppName = firstNonEmpty(os.Getenv("APP_NAME"), fc.App.Name, defaultAppName)
	cfg.ContactEmail = firstNonEmpty(os.Getenv("CONTACT_EMAIL"), fc.App.ContactEmail, defaultContactEmail)

	cfg.NWSBaseURL = strings.TrimRight(firstNonEmpty(os.Getenv("NWS_BASE_URL"), fc.Upstream.BaseURL, defaultNWSBaseURL), "/")
	cfg.UpstreamTimeout = parseDurationOrZero(fc.Upstream.Timeout, 10*time.Second)
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 25*time.Second)

	// Range checking is opt-in; by default any finite pair is forwarded upstream.
	cfg.EnforceCoordinateRange = fc.Validation.EnforceRange != nil && *fc.Validation.EnforceRange

	cfg.StaticDir = firstNonEmpty(os.Getenv("STATIC_DIR"), fc.Static.Dir, "public")
	cfg.EntryDocument = firstNonEmpty(fc.Static.EntryDocument, "index.html")
	cfg.CacheControl = firstNonEmpty(fc.Static.CacheControl, "public, max-age=3600")
	cfg.CompressionMinSize = fc.Static.CompressionMinSize
	if cfg.CompressionMinSize <= 0 {
		cfg.CompressionMinSize = 1024
	}

	if fc.Upstream.CircuitBreaker.Enabled != nil {
		cfg.CircuitBreakerEnabled = *fc.Upstream.CircuitBreaker.Enabled
	}
	cfg.CircuitBreakerFailureThreshold = fc.Upstream.CircuitBreaker.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = fc.Upstream.CircuitBreaker.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.Upstream.CircuitBreaker.Timeout, 30*time.Second)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero or negative durations are returned as-is so validate can reject them.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. RequestTimeout is raised to cover at least one
// upstream hop.
func validate(cfg *Config) error {
	if cfg.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.UpstreamTimeout {
		cfg.RequestTimeout = cfg.UpstreamTimeout + time.Second
	}
	u, err := url.Parse(cfg.NWSBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream.base_url must be an absolute URL, got %q", cfg.NWSBaseURL)
	}
	if strings.ContainsAny(cfg.EntryDocument, `/\`) {
		return fmt.Errorf("static.entry_document must be a file name, got %q", cfg.EntryDocument)
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("health.degraded_error_pct must be <= 100, got %d", cfg.DegradedErrorPct)
	}
	return nil
}
