package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/portal/pkg/middleware"
	"github.com/platinummonkey/portal/pkg/observability"
	"github.com/platinummonkey/portal/pkg/tokenstore"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{"true string", "true", false, true},
		{"TRUE uppercase", "TRUE", false, true},
		{"one", "1", false, true},
		{"false string", "false", true, false},
		{"garbage is false", "yes", true, false},
		{"unset uses default", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_BOOL", tt.envValue)
			}
			if got := getEnvBool("TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvInt tests the getEnvInt helper function
func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	assert.Equal(t, 42, getEnvInt("TEST_INT", 7))

	t.Setenv("TEST_INT", "not-a-number")
	assert.Equal(t, 7, getEnvInt("TEST_INT", 7))

	assert.Equal(t, 7, getEnvInt("TEST_INT_NOT_SET", 7))
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "45s")
	assert.Equal(t, 45*time.Second, getEnvDuration("TEST_DURATION", time.Second))

	t.Setenv("TEST_DURATION", "45")
	assert.Equal(t, time.Second, getEnvDuration("TEST_DURATION", time.Second))
}

// TestParseLogLevel tests log level parsing
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  observability.LogLevel
	}{
		{"debug", observability.DebugLevel},
		{"DEBUG", observability.DebugLevel},
		{"info", observability.InfoLevel},
		{"warn", observability.WarnLevel},
		{"warning", observability.WarnLevel},
		{"error", observability.ErrorLevel},
		{"verbose", observability.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "listens on loopback unless told otherwise")
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, "http://localhost:8080", cfg.Identity.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Identity.Timeout)
	assert.Equal(t, "file", cfg.TokenStore.Type)
	assert.Contains(t, cfg.TokenStore.FilePath, "tokens.json")
	assert.Equal(t, "@every 5m", cfg.Portal.RevalidateSchedule)
	assert.True(t, cfg.Portal.WatchTokenFile)
	assert.Equal(t, 256, cfg.Portal.UserCache.CacheSize)
	assert.Equal(t, 30*time.Second, cfg.Portal.UserCache.CacheTTL)
	assert.Empty(t, cfg.Portal.AuditDir)
	assert.Equal(t, middleware.LoginRateLimitConfig(), cfg.Portal.LoginRateLimit)
	assert.Empty(t, cfg.Portal.TrustedProxies)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.False(t, cfg.Observability.OTelEnabled)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("PORTAL_PORT", "4000")
	t.Setenv("PORTAL_HEALTH_PORT", "4001")
	t.Setenv("PORTAL_IDENTITY_URL", "https://id.example.com/")
	t.Setenv("PORTAL_IDENTITY_TIMEOUT", "3s")
	t.Setenv("PORTAL_TOKEN_STORE", "Redis")
	t.Setenv("PORTAL_REDIS_URL", "redis://cache:6379/0")
	t.Setenv("PORTAL_REDIS_DB", "2")
	t.Setenv("PORTAL_REDIS_PREFIX", "ops:")
	t.Setenv("PORTAL_REVALIDATE_SCHEDULE", "*/10 * * * *")
	t.Setenv("PORTAL_WATCH_TOKEN_FILE", "false")
	t.Setenv("PORTAL_USER_CACHE_SIZE", "0")
	t.Setenv("PORTAL_AUDIT_DIR", "/var/log/portal/audit")
	t.Setenv("PORTAL_LOGIN_RATE_LIMIT", "0")
	t.Setenv("PORTAL_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")
	t.Setenv("PORTAL_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "4000", cfg.Server.Port)
	assert.Equal(t, "https://id.example.com/", cfg.Identity.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Identity.Timeout)
	assert.Equal(t, "redis", cfg.TokenStore.Type)
	assert.Equal(t, "redis://cache:6379/0", cfg.TokenStore.RedisURL)
	assert.Equal(t, 2, cfg.TokenStore.RedisDB)
	assert.Equal(t, "ops:", cfg.TokenStore.RedisPrefix)
	assert.Equal(t, "*/10 * * * *", cfg.Portal.RevalidateSchedule)
	assert.False(t, cfg.Portal.WatchTokenFile)
	assert.Equal(t, 0, cfg.Portal.UserCache.CacheSize)
	assert.Equal(t, "/var/log/portal/audit", cfg.Portal.AuditDir)
	assert.Zero(t, cfg.Portal.LoginRateLimit.RequestsPerWindow)
	assert.Equal(t, "10.0.0.0/8, 192.0.2.1", cfg.Portal.TrustedProxies)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: "3000", HealthPort: "9090"},
			Identity: IdentityConfig{BaseURL: "http://localhost:8080", Timeout: time.Second},
			TokenStore: tokenstore.Config{Type: "memory"},
			Portal: PortalConfig{RevalidateSchedule: "@every 5m"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "server port is required"},
		{"same ports", func(c *Config) { c.Server.HealthPort = "3000" }, "must be different"},
		{"relative identity url", func(c *Config) { c.Identity.BaseURL = "/api" }, "identity URL"},
		{"ftp identity url", func(c *Config) { c.Identity.BaseURL = "ftp://id" }, "identity URL"},
		{"zero timeout", func(c *Config) { c.Identity.Timeout = 0 }, "identity timeout"},
		{"file without path", func(c *Config) { c.TokenStore.Type = "file" }, "token file path"},
		{"redis without url", func(c *Config) { c.TokenStore.Type = "redis" }, "redis URL"},
		{"postgres without dsn", func(c *Config) { c.TokenStore.Type = "postgres" }, "SQL DSN is required for postgres"},
		{"unknown store", func(c *Config) { c.TokenStore.Type = "etcd" }, "invalid token store type: etcd"},
		{"bad schedule", func(c *Config) { c.Portal.RevalidateSchedule = "every so often" }, "invalid revalidate schedule"},
		{"schedule disabled", func(c *Config) { c.Portal.RevalidateSchedule = "" }, ""},
		{"negative login limit", func(c *Config) { c.Portal.LoginRateLimit.RequestsPerWindow = -1 }, "must not be negative"},
		{"login limit without window", func(c *Config) { c.Portal.LoginRateLimit.RequestsPerWindow = 5 }, "login rate window"},
		{"bad trusted proxy", func(c *Config) { c.Portal.TrustedProxies = "10.0.0.0/8, lb.internal" }, "invalid trusted proxy"},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelServiceName = "portal"
		}, "OpenTelemetry endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
