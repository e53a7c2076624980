// ABOUTME: Configuration loading and parsing for hookgate
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when the config file omits a setting.
const (
	DefaultWindow        = time.Minute
	DefaultQuota         = 60
	DefaultExecTimeout   = 30 * time.Second
	DefaultCredentialTTL = 5 * time.Second
)

// Config represents the complete hookgate configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration.
// JWTSecret protects the management API; TokenPepper keys the webhook
// secret hash and must be identical across gateway replicas.
type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`
	TokenPepper string `yaml:"token_pepper"`
}

// RateLimitConfig holds fixed-window rate limiter configuration
type RateLimitConfig struct {
	Backend      string `yaml:"backend"` // "sqlite" (default) or "redis"
	RedisAddr    string `yaml:"redis_addr"`
	DefaultQuota int    `yaml:"default_quota"`

	Window time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	WindowRaw string `yaml:"window"`
}

// ExecutorConfig holds agent executor endpoint configuration
type ExecutorConfig struct {
	BaseURL string `yaml:"base_url"`

	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// CacheConfig holds credential lookup cache configuration
type CacheConfig struct {
	CredentialTTL time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	CredentialTTLRaw string `yaml:"credential_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in defaults for optional settings.
func (c *Config) applyDefaults() {
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "sqlite"
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = DefaultWindow
	}
	if c.RateLimit.DefaultQuota <= 0 {
		c.RateLimit.DefaultQuota = DefaultQuota
	}
	if c.Executor.Timeout <= 0 {
		c.Executor.Timeout = DefaultExecTimeout
	}
	if c.Cache.CredentialTTL <= 0 {
		c.Cache.CredentialTTL = DefaultCredentialTTL
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.TokenPepper == "" {
		return fmt.Errorf("auth.token_pepper is required")
	}

	if c.Executor.BaseURL == "" {
		return fmt.Errorf("executor.base_url is required")
	}

	switch c.RateLimit.Backend {
	case "sqlite":
	case "redis":
		if c.RateLimit.RedisAddr == "" {
			return fmt.Errorf("ratelimit.redis_addr is required when backend is redis")
		}
	default:
		return fmt.Errorf("ratelimit.backend must be sqlite or redis, got %q", c.RateLimit.Backend)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.RateLimit.WindowRaw != "" {
		cfg.RateLimit.Window, err = time.ParseDuration(cfg.RateLimit.WindowRaw)
		if err != nil {
			return fmt.Errorf("parsing ratelimit.window %q: %w", cfg.RateLimit.WindowRaw, err)
		}
	}

	if cfg.Executor.TimeoutRaw != "" {
		cfg.Executor.Timeout, err = time.ParseDuration(cfg.Executor.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing executor.timeout %q: %w", cfg.Executor.TimeoutRaw, err)
		}
	}

	if cfg.Cache.CredentialTTLRaw != "" {
		cfg.Cache.CredentialTTL, err = time.ParseDuration(cfg.Cache.CredentialTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing cache.credential_ttl %q: %w", cfg.Cache.CredentialTTLRaw, err)
		}
	}

	return nil
}
