// Package config provides configuration management for the catalog server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/vyrodovalexey/catalog-api/internal/catalog"
)

// Default configuration values.
const (
	DefaultServerPort      = 5000
	DefaultProbePort       = 0
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMetricsEnabled  = true
	DefaultDataDir         = "data"
	DefaultReviewRateBurst = 5
	DefaultEventsEnabled   = true
)

// DefaultDomains lists the catalogs served when none are configured.
var DefaultDomains = []string{"books", "games", "movies"}

// Environment variable names.
const (
	EnvServerPort      = "APP_SERVER_PORT"
	EnvProbePort       = "APP_PROBE_PORT"
	EnvLogLevel        = "APP_LOG_LEVEL"
	EnvShutdownTimeout = "APP_SHUTDOWN_TIMEOUT"
	EnvMetricsEnabled  = "APP_METRICS_ENABLED"
	EnvDataDir         = "APP_DATA_DIR"
	EnvDomains         = "APP_DOMAINS"
	EnvStaticDir       = "APP_STATIC_DIR"
	EnvCORSOrigins     = "APP_CORS_ORIGINS"
	EnvReviewRateLimit = "APP_REVIEW_RATE_LIMIT"
	EnvReviewRateBurst = "APP_REVIEW_RATE_BURST"
	EnvEventsEnabled   = "APP_EVENTS_ENABLED"
)

// Config holds the application configuration.
type Config struct {
	// Server settings.
	ServerPort      int
	ProbePort       int // Probe server port (0 = disabled).
	LogLevel        string
	ShutdownTimeout time.Duration
	MetricsEnabled  bool

	// Catalog settings.
	DataDir   string
	Domains   []string
	StaticDir string // Empty disables static asset serving.

	// HTTP surface.
	CORSOrigins     []string
	ReviewRateLimit float64 // Review submissions per second per client, 0 = unlimited.
	ReviewRateBurst int
	EventsEnabled   bool
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidProbePort       = errors.New("probe port must be between 0 and 65535")
	ErrProbePortConflict      = errors.New("probe port must differ from server port when probe port is not 0")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrEmptyDataDir           = errors.New("data directory must be set")
	ErrNoDomains              = errors.New("at least one domain must be configured")
	ErrUnknownDomain          = errors.New("domain must be one of: books, games, movies")
	ErrDuplicateDomain        = errors.New("domains must not repeat")
	ErrInvalidRateLimit       = errors.New("review rate limit must not be negative")
	ErrInvalidRateBurst       = errors.New("review rate burst must be at least 1 when the limit is enabled")
)

// New returns a Config populated with default values.
func New() *Config {
	return &Config{
		ServerPort:      DefaultServerPort,
		ProbePort:       DefaultProbePort,
		LogLevel:        DefaultLogLevel,
		ShutdownTimeout: DefaultShutdownTimeout,
		MetricsEnabled:  DefaultMetricsEnabled,
		DataDir:         DefaultDataDir,
		Domains:         append([]string(nil), DefaultDomains...),
		CORSOrigins:     []string{"*"},
		ReviewRateBurst: DefaultReviewRateBurst,
		EventsEnabled:   DefaultEventsEnabled,
	}
}

// Load reads configuration from environment variables with defaults.
// Environment variables have priority over default values.
func Load() (*Config, error) {
	cfg := New()

	if err := cfg.LoadEnv(); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadEnv overrides fields with the environment variables that are set.
func (c *Config) LoadEnv() error {
	if err := c.loadServerEnv(); err != nil {
		return err
	}

	return c.loadCatalogEnv()
}

// loadServerEnv loads server-related environment variables.
func (c *Config) loadServerEnv() error {
	if err := envInt(EnvServerPort, &c.ServerPort); err != nil {
		return err
	}

	if err := envInt(EnvProbePort, &c.ProbePort); err != nil {
		return err
	}

	if val := os.Getenv(EnvLogLevel); val != "" {
		c.LogLevel = val
	}

	if val := os.Getenv(EnvShutdownTimeout); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvShutdownTimeout, err)
		}
		c.ShutdownTimeout = timeout
	}

	return envBool(EnvMetricsEnabled, &c.MetricsEnabled)
}

// loadCatalogEnv loads catalog and HTTP surface environment variables.
func (c *Config) loadCatalogEnv() error {
	if val := os.Getenv(EnvDataDir); val != "" {
		c.DataDir = val
	}

	if val := os.Getenv(EnvDomains); val != "" {
		c.Domains = splitList(val)
	}

	if val := os.Getenv(EnvStaticDir); val != "" {
		c.StaticDir = val
	}

	if val := os.Getenv(EnvCORSOrigins); val != "" {
		c.CORSOrigins = splitList(val)
	}

	if val := os.Getenv(EnvReviewRateLimit); val != "" {
		limit, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvReviewRateLimit, err)
		}
		c.ReviewRateLimit = limit
	}

	if err := envInt(EnvReviewRateBurst, &c.ReviewRateBurst); err != nil {
		return err
	}

	return envBool(EnvEventsEnabled, &c.EventsEnabled)
}

// BindFlags registers command line flags for every setting. The current
// field values become the flag defaults, so flags override the environment.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.IntVar(&c.ServerPort, "port", c.ServerPort, "API server port")
	fs.IntVar(&c.ProbePort, "probe-port", c.ProbePort, "probe server port (0 disables the probe server)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "graceful shutdown timeout")
	fs.BoolVar(&c.MetricsEnabled, "metrics", c.MetricsEnabled, "expose Prometheus metrics")
	fs.StringVar(&c.DataDir, "data-dir", c.DataDir, "directory holding <domain>.json documents")
	fs.StringSliceVar(&c.Domains, "domains", c.Domains, "catalog domains to serve")
	fs.StringVar(&c.StaticDir, "static-dir", c.StaticDir, "directory with the front-end assets")
	fs.StringSliceVar(&c.CORSOrigins, "cors-origins", c.CORSOrigins, "allowed CORS origins")
	fs.Float64Var(&c.ReviewRateLimit, "review-rate-limit", c.ReviewRateLimit,
		"review submissions per second per client (0 disables)")
	fs.IntVar(&c.ReviewRateBurst, "review-rate-burst", c.ReviewRateBurst, "review submission burst per client")
	fs.BoolVar(&c.EventsEnabled, "events", c.EventsEnabled, "stream review events over WebSocket")
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	return c.validateCatalog()
}

// validateServer validates server-related configuration.
func (c *Config) validateServer() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	if c.ProbePort < 0 || c.ProbePort > 65535 {
		return ErrInvalidProbePort
	}

	if c.ProbePort != 0 && c.ProbePort == c.ServerPort {
		return ErrProbePortConflict
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	return nil
}

// validateCatalog validates catalog and HTTP surface configuration.
func (c *Config) validateCatalog() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return ErrEmptyDataDir
	}

	if len(c.Domains) == 0 {
		return ErrNoDomains
	}

	seen := make(map[string]bool, len(c.Domains))
	for _, name := range c.Domains {
		if _, err := catalog.LookupDomain(name); err != nil {
			return fmt.Errorf("%w: %q", ErrUnknownDomain, name)
		}
		if seen[name] {
			return fmt.Errorf("%w: %q", ErrDuplicateDomain, name)
		}
		seen[name] = true
	}

	if c.ReviewRateLimit < 0 {
		return ErrInvalidRateLimit
	}

	if c.ReviewRateLimit > 0 && c.ReviewRateBurst < 1 {
		return ErrInvalidRateBurst
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

// ProbeAddress returns the probe server address in host:port format.
func (c *Config) ProbeAddress() string {
	return fmt.Sprintf(":%d", c.ProbePort)
}

func envInt(name string, dst *int) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = n
	return nil
}

func envBool(name string, dst *bool) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = b
	return nil
}

// splitList splits a comma separated value, dropping empty entries.
func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
