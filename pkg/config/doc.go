// Package config loads portal configuration from environment variables.
//
// Server settings:
//
//	PORTAL_HOST="127.0.0.1"
//	PORTAL_PORT="3000"
//	PORTAL_HEALTH_PORT="9090"
//	PORTAL_READ_TIMEOUT="15s"
//	PORTAL_WRITE_TIMEOUT="15s"
//
// Identity service:
//
//	PORTAL_IDENTITY_URL="http://localhost:8080"
//	PORTAL_IDENTITY_TIMEOUT="10s"
//
// Token persistence:
//
//	PORTAL_TOKEN_STORE="file"  # file, redis, sqlite, postgres, memory
//	PORTAL_TOKEN_FILE="$HOME/.config/portal/tokens.json"
//	PORTAL_REDIS_URL="redis://localhost:6379/0"
//	PORTAL_REDIS_PREFIX="portal:"
//	PORTAL_SQL_DSN="postgres://localhost/portal?sslmode=disable"
//	PORTAL_SQL_TABLE="portal_tokens"
//
// Portal behaviour:
//
//	PORTAL_CATALOG="/etc/portal/catalog.yaml"
//	PORTAL_REVALIDATE_SCHEDULE="@every 5m"  # empty disables
//	PORTAL_WATCH_TOKEN_FILE="true"
//	PORTAL_USER_CACHE_SIZE="256"
//	PORTAL_USER_CACHE_TTL="30s"
//	PORTAL_LOGIN_RATE_LIMIT="5"
//	PORTAL_TRUSTED_PROXIES="10.0.0.0/8"  # forwarding headers are ignored from anyone else
//
// Observability settings:
//
//	PORTAL_LOG_LEVEL="info"  # debug, info, warn, error
//	PORTAL_METRICS_ENABLED="true"
//	PORTAL_OTEL_ENABLED="false"
//	PORTAL_OTEL_ENDPOINT="otel-collector:4317"
package config
