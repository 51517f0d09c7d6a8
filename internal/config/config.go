// Package config loads the scorecard-search configuration: built-in
// defaults, then an optional YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/scorecard-search/pkg/client"
	"github.com/Sternrassler/scorecard-search/pkg/dispatch"
	"github.com/Sternrassler/scorecard-search/pkg/logging"
	"github.com/Sternrassler/scorecard-search/pkg/search"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full process configuration.
type Config struct {
	Endpoint  string        `yaml:"endpoint"`
	CSRFToken string        `yaml:"csrf_token"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`

	Search struct {
		IdentifierStart int64 `yaml:"identifier_start"`
		IdentifierEnd   int64 `yaml:"identifier_end"`
		YearHigh        int   `yaml:"year_high"`
		YearLow         int   `yaml:"year_low"`
		Concurrency     int   `yaml:"concurrency"`

		// LookupTimeout bounds each lookup of a batch on top of Timeout.
		// Zero disables it.
		LookupTimeout time.Duration `yaml:"lookup_timeout"`
	} `yaml:"search"`

	RedisAddr   string `yaml:"redis_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Default returns the built-in configuration. It has no token.
func Default() *Config {
	cfg := &Config{
		Endpoint:  client.DefaultEndpoint,
		UserAgent: "scorecard-search/0.1.0",
		Timeout:   30 * time.Second,
	}
	cfg.Search.IdentifierStart = search.DefaultIdentifierStart
	cfg.Search.IdentifierEnd = search.DefaultIdentifierEnd
	cfg.Search.YearHigh = search.DefaultYearHigh
	cfg.Search.YearLow = search.DefaultYearLow
	cfg.Search.Concurrency = dispatch.DefaultConfig().MaxConcurrency
	cfg.Log.Level = string(logging.LevelInfo)
	return cfg
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("unable to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("unable to parse config file: %w", err)
	}
	return nil
}

// applyEnv overrides fields from environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	int64v := func(key string, dst *int64) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("SCORECARD_ENDPOINT", &c.Endpoint)
	str("SCORECARD_CSRF_TOKEN", &c.CSRFToken)
	str("USER_AGENT", &c.UserAgent)
	duration("SCORECARD_TIMEOUT", &c.Timeout)

	int64v("SCORECARD_ID_START", &c.Search.IdentifierStart)
	int64v("SCORECARD_ID_END", &c.Search.IdentifierEnd)
	integer("SCORECARD_YEAR_HIGH", &c.Search.YearHigh)
	integer("SCORECARD_YEAR_LOW", &c.Search.YearLow)
	integer("SCORECARD_CONCURRENCY", &c.Search.Concurrency)
	duration("SCORECARD_LOOKUP_TIMEOUT", &c.Search.LookupTimeout)

	str("REDIS_URL", &c.RedisAddr)
	str("METRICS_ADDR", &c.MetricsAddr)

	str("LOG_LEVEL", &c.Log.Level)
	if v, ok := lookup("LOG_PRETTY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LOG_PRETTY: %w", err))
		} else {
			c.Log.Pretty = b
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: environment: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var problems []string

	if c.Endpoint == "" {
		problems = append(problems, "endpoint is required")
	}
	if strings.TrimSpace(c.CSRFToken) == "" {
		problems = append(problems, "csrf_token is required (set SCORECARD_CSRF_TOKEN)")
	}
	if c.Timeout <= 0 {
		problems = append(problems, fmt.Sprintf("timeout must be positive (got %s)", c.Timeout))
	}
	if c.Search.Concurrency < 1 {
		problems = append(problems, fmt.Sprintf("search.concurrency must be >= 1 (got %d)", c.Search.Concurrency))
	}
	if c.Search.LookupTimeout < 0 {
		problems = append(problems, fmt.Sprintf("search.lookup_timeout must not be negative (got %s)", c.Search.LookupTimeout))
	}
	if err := c.SearchConfig().Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if !logging.ValidLevel(logging.LogLevel(c.Log.Level)) {
		problems = append(problems, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// ClientConfig returns the lookup client configuration.
func (c *Config) ClientConfig() client.Config {
	return client.Config{
		Endpoint:  c.Endpoint,
		Token:     c.CSRFToken,
		UserAgent: c.UserAgent,
		Timeout:   c.Timeout,
	}
}

// DispatchConfig returns the batch dispatcher configuration.
func (c *Config) DispatchConfig() dispatch.Config {
	return dispatch.Config{
		MaxConcurrency: c.Search.Concurrency,
		Timeout:        c.Search.LookupTimeout,
	}
}

// SearchConfig returns the controller bounds. Reporter and Store are left
// for the caller to wire.
func (c *Config) SearchConfig() search.Config {
	return search.Config{
		IdentifierStart: c.Search.IdentifierStart,
		IdentifierEnd:   c.Search.IdentifierEnd,
		YearHigh:        c.Search.YearHigh,
		YearLow:         c.Search.YearLow,
	}
}

// LoggingConfig returns the logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}
