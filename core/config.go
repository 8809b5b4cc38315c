// Configuration for the vendline client.
//
// Precedence, highest first:
//  1. Explicit options passed to NewConfig
//  2. Environment variables (VENDLINE_*)
//  3. Config file (YAML, via WithConfigFile or VENDLINE_CONFIG_FILE)
//  4. Built-in defaults
package core

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL        = "http://localhost:8080/api/vending"
	DefaultRequestTimeout = 10 * time.Second
)

// Config holds all client configuration.
type Config struct {
	// BaseURL is the vending service endpoint, including the API base path.
	BaseURL string `yaml:"base_url"`

	// RequestTimeout bounds every remote call. A call that does not settle
	// within this window fails with ErrTimeout instead of leaving the
	// session gate held forever.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// CircuitBreaker configures the client transport breaker.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`

	// Telemetry enables span emission around remote calls.
	TelemetryEnabled bool `yaml:"telemetry_enabled"`

	// RedisURL, when set, backs the receipt journal with Redis instead of
	// the in-memory store.
	RedisURL string `yaml:"redis_url"`

	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string `yaml:"log_level"`

	// LogFormat is "text" or "json".
	LogFormat string `yaml:"log_format"`
}

// CircuitBreakerConfig holds the breaker thresholds used by the client
// transport.
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Threshold        int           `yaml:"threshold"`
	SleepWindow      time.Duration `yaml:"sleep_window"`
	HalfOpenRequests int           `yaml:"half_open_requests"`
}

// Option configures a Config.
type Option func(*Config) error

// WithBaseURL sets the vending service endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) error {
		if url == "" {
			return fmt.Errorf("base URL cannot be empty")
		}
		c.BaseURL = url
		return nil
	}
}

// WithRequestTimeout sets the per-call timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("request timeout must be positive, got %v", d)
		}
		c.RequestTimeout = d
		return nil
	}
}

// WithCircuitBreaker sets the transport breaker thresholds.
func WithCircuitBreaker(threshold int, sleepWindow time.Duration) Option {
	return func(c *Config) error {
		c.CircuitBreaker.Enabled = true
		c.CircuitBreaker.Threshold = threshold
		c.CircuitBreaker.SleepWindow = sleepWindow
		return nil
	}
}

// WithTelemetry enables span emission.
func WithTelemetry(enabled bool) Option {
	return func(c *Config) error {
		c.TelemetryEnabled = enabled
		return nil
	}
}

// WithRedisURL backs the receipt journal with Redis.
func WithRedisURL(url string) Option {
	return func(c *Config) error {
		c.RedisURL = url
		return nil
	}
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.LogLevel = level
		return nil
	}
}

// WithLogFormat sets the log output format ("text" or "json").
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		if format != "text" && format != "json" {
			return fmt.Errorf("log format must be \"text\" or \"json\", got %q", format)
		}
		c.LogFormat = format
		return nil
	}
}

// WithConfigFile loads settings from a YAML file. File values sit below
// environment variables and explicit options in precedence.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing config file %s: %w", path, err)
		}
		return nil
	}
}

// NewConfig builds a Config from defaults, an optional config file,
// environment variables, and explicit options, in that order.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{
		BaseURL:        DefaultBaseURL,
		RequestTimeout: DefaultRequestTimeout,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			Threshold:        5,
			SleepWindow:      30 * time.Second,
			HalfOpenRequests: 3,
		},
		LogLevel:  "INFO",
		LogFormat: "text",
	}

	if path := os.Getenv("VENDLINE_CONFIG_FILE"); path != "" {
		if err := WithConfigFile(path)(c); err != nil {
			return nil, err
		}
	}

	c.applyEnvironment()

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// applyEnvironment overlays VENDLINE_* environment variables.
func (c *Config) applyEnvironment() {
	if v := os.Getenv("VENDLINE_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("VENDLINE_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.RequestTimeout = d
		}
	}
	if v := os.Getenv("VENDLINE_CB_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.CircuitBreaker.Threshold = n
		}
	}
	if v := os.Getenv("VENDLINE_CB_ENABLED"); v != "" {
		c.CircuitBreaker.Enabled = v == "true"
	}
	if v := os.Getenv("VENDLINE_TELEMETRY_ENABLED"); v != "" {
		c.TelemetryEnabled = v == "true"
	}
	if v := os.Getenv("VENDLINE_REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("VENDLINE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("VENDLINE_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.CircuitBreaker.Enabled && c.CircuitBreaker.Threshold <= 0 {
		return fmt.Errorf("circuit breaker threshold must be positive")
	}
	return nil
}
