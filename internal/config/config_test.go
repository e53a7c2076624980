// ABOUTME: Tests for configuration loading, env expansion and validation
// ABOUTME: Uses temp YAML files per test

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes YAML content to a temp file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const minimalConfig = `
server:
  http_addr: ":8080"
database:
  path: "/var/lib/hookgate/gateway.db"
auth:
  token_pepper: "pepper-value"
executor:
  base_url: "http://executor:9090"
`

func TestLoad_Minimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "/var/lib/hookgate/gateway.db", cfg.Database.Path)
	assert.Equal(t, "http://executor:9090", cfg.Executor.BaseURL)

	// Defaults
	assert.Equal(t, "sqlite", cfg.RateLimit.Backend)
	assert.Equal(t, DefaultWindow, cfg.RateLimit.Window)
	assert.Equal(t, DefaultQuota, cfg.RateLimit.DefaultQuota)
	assert.Equal(t, DefaultExecTimeout, cfg.Executor.Timeout)
	assert.Equal(t, DefaultCredentialTTL, cfg.Cache.CredentialTTL)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_Full(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  http_addr: ":9999"
database:
  path: "test.db"
auth:
  jwt_secret: "jwt-secret"
  token_pepper: "pepper"
ratelimit:
  backend: redis
  redis_addr: "localhost:6379"
  default_quota: 120
  window: 30s
executor:
  base_url: "http://exec:9090"
  timeout: 10s
cache:
  credential_ttl: 2s
logging:
  level: debug
  format: json
metrics:
  enabled: true
  path: /internal/metrics
`))
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.RateLimit.Backend)
	assert.Equal(t, "localhost:6379", cfg.RateLimit.RedisAddr)
	assert.Equal(t, 120, cfg.RateLimit.DefaultQuota)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 10*time.Second, cfg.Executor.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Cache.CredentialTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/internal/metrics", cfg.Metrics.Path)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("HOOKGATE_TEST_PEPPER", "from-env")

	cfg, err := Load(writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "test.db"
auth:
  token_pepper: "${HOOKGATE_TEST_PEPPER}"
executor:
  base_url: "http://exec:9090"
`))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.TokenPepper)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "{{{not yaml"))
	assert.Error(t, err)
}

func TestLoad_BadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
ratelimit:
  window: "soon"
`))
	assert.Error(t, err)
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing http_addr", func(c *Config) { c.Server.HTTPAddr = "" }},
		{"missing database path", func(c *Config) { c.Database.Path = "" }},
		{"missing token pepper", func(c *Config) { c.Auth.TokenPepper = "" }},
		{"missing executor url", func(c *Config) { c.Executor.BaseURL = "" }},
		{"unknown backend", func(c *Config) { c.RateLimit.Backend = "memcached" }},
		{"redis without addr", func(c *Config) { c.RateLimit.Backend = "redis" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, minimalConfig))
			require.NoError(t, err)

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
