package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/portal/pkg/httputil"
	"github.com/platinummonkey/portal/pkg/identity"
	"github.com/platinummonkey/portal/pkg/middleware"
	"github.com/platinummonkey/portal/pkg/observability"
	"github.com/platinummonkey/portal/pkg/tokenstore"
	"github.com/platinummonkey/portal/pkg/users"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Identity service configuration
	Identity IdentityConfig

	// Token persistence configuration
	TokenStore tokenstore.Config

	// Portal behaviour
	Portal PortalConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// IdentityConfig locates the remote identity and user service
type IdentityConfig struct {
	BaseURL string
	Timeout time.Duration
}

// PortalConfig holds portal behaviour settings
type PortalConfig struct {
	CatalogPath        string
	RevalidateSchedule string // cron spec, empty disables
	WatchTokenFile     bool
	UserCache          users.Config
	AuditDir           string                     // empty disables the audit trail
	LoginRateLimit     middleware.RateLimitConfig // zero requests disables throttling
	TrustedProxies     string                     // comma separated IPs and CIDRs, empty trusts none
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Identity:      loadIdentityConfig(),
		TokenStore:    loadTokenStoreConfig(),
		Portal:        loadPortalConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("PORTAL_HOST", "127.0.0.1"),
		Port:            getEnv("PORTAL_PORT", "3000"),
		ReadTimeout:     getEnvDuration("PORTAL_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("PORTAL_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("PORTAL_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("PORTAL_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("PORTAL_HEALTH_PORT", "9090"),
	}
}

// loadIdentityConfig loads the identity service location from environment
func loadIdentityConfig() IdentityConfig {
	return IdentityConfig{
		BaseURL: getEnv("PORTAL_IDENTITY_URL", "http://localhost:8080"),
		Timeout: getEnvDuration("PORTAL_IDENTITY_TIMEOUT", identity.DefaultTimeout),
	}
}

// loadTokenStoreConfig loads token persistence configuration from environment
func loadTokenStoreConfig() tokenstore.Config {
	cfg := tokenstore.DefaultConfig()

	if storeType := getEnv("PORTAL_TOKEN_STORE", ""); storeType != "" {
		cfg.Type = strings.ToLower(storeType)
	}

	// File config
	if path := getEnv("PORTAL_TOKEN_FILE", ""); path != "" {
		cfg.FilePath = path
	}

	// Redis config
	if redisURL := getEnv("PORTAL_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("PORTAL_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("PORTAL_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if prefix := getEnv("PORTAL_REDIS_PREFIX", ""); prefix != "" {
		cfg.RedisPrefix = prefix
	}

	// SQL config
	if dsn := getEnv("PORTAL_SQL_DSN", ""); dsn != "" {
		cfg.SQLDSN = dsn
	}
	if table := getEnv("PORTAL_SQL_TABLE", ""); table != "" {
		cfg.SQLTable = table
	}
	if timeout := getEnvDuration("PORTAL_SQL_TIMEOUT", 0); timeout > 0 {
		cfg.SQLTimeout = timeout
	}

	return cfg
}

// loadPortalConfig loads portal behaviour from environment
func loadPortalConfig() PortalConfig {
	cache := users.DefaultConfig()
	cache.CacheSize = getEnvInt("PORTAL_USER_CACHE_SIZE", cache.CacheSize)
	cache.CacheTTL = getEnvDuration("PORTAL_USER_CACHE_TTL", cache.CacheTTL)

	login := middleware.LoginRateLimitConfig()
	login.RequestsPerWindow = getEnvInt("PORTAL_LOGIN_RATE_LIMIT", login.RequestsPerWindow)
	login.WindowDuration = getEnvDuration("PORTAL_LOGIN_RATE_WINDOW", login.WindowDuration)
	login.BurstSize = getEnvInt("PORTAL_LOGIN_BURST", login.BurstSize)

	return PortalConfig{
		CatalogPath:        getEnv("PORTAL_CATALOG", ""),
		RevalidateSchedule: getEnv("PORTAL_REVALIDATE_SCHEDULE", "@every 5m"),
		WatchTokenFile:     getEnvBool("PORTAL_WATCH_TOKEN_FILE", true),
		UserCache:          cache,
		AuditDir:           getEnv("PORTAL_AUDIT_DIR", ""),
		LoginRateLimit:     login,
		TrustedProxies:     getEnv("PORTAL_TRUSTED_PROXIES", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("PORTAL_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("PORTAL_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("PORTAL_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("PORTAL_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("PORTAL_OTEL_SERVICE_NAME", "portal"),
		OTelServiceVersion: getEnv("PORTAL_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("PORTAL_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate identity config
	u, err := url.Parse(c.Identity.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("identity URL must be an absolute http(s) URL: %q", c.Identity.BaseURL)
	}
	if c.Identity.Timeout <= 0 {
		return fmt.Errorf("identity timeout must be positive")
	}

	// Validate token store config based on type
	switch c.TokenStore.Type {
	case "file":
		if c.TokenStore.FilePath == "" {
			return fmt.Errorf("token file path is required for file token store")
		}
	case "redis":
		if c.TokenStore.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis token store")
		}
	case "sqlite", "postgres":
		if c.TokenStore.SQLDSN == "" {
			return fmt.Errorf("SQL DSN is required for %s token store", c.TokenStore.Type)
		}
	case "memory":
	default:
		return fmt.Errorf("invalid token store type: %s (must be file, redis, sqlite, postgres, or memory)", c.TokenStore.Type)
	}

	// Validate portal config
	if c.Portal.RevalidateSchedule != "" {
		if _, err := cron.ParseStandard(c.Portal.RevalidateSchedule); err != nil {
			return fmt.Errorf("invalid revalidate schedule %q: %w", c.Portal.RevalidateSchedule, err)
		}
	}

	if c.Portal.LoginRateLimit.RequestsPerWindow < 0 || c.Portal.LoginRateLimit.BurstSize < 0 {
		return fmt.Errorf("login rate limit and burst must not be negative")
	}
	if c.Portal.LoginRateLimit.RequestsPerWindow > 0 && c.Portal.LoginRateLimit.WindowDuration <= 0 {
		return fmt.Errorf("login rate window must be positive")
	}

	if _, err := httputil.ParseTrustedProxies(c.Portal.TrustedProxies); err != nil {
		return err
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
