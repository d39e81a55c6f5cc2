// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the portal must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/portal/pkg/contextkeys"
//	ctx = contextkeys.WithIdentity(ctx, ident)
//	ident, _ := ctx.Value(contextkeys.IdentityKey).(*identity.Identity)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// IdentityKey contains *identity.Identity
	// Set by: guard.Guard.Require (pkg/guard/middleware.go) when content is rendered
	// Required by: dashboard and user admin handlers
	// Type: *identity.Identity
	IdentityKey Key = "identity"

	// RetryKey marks an outbound request as an automatic replay
	// Set by: identity.AuthTransport before replaying a request after a refresh
	// Used by: identity.AuthTransport to enforce at most one replay per request
	// Type: bool
	RetryKey Key = "auth_retry"

	// NavigatorKey contains the session.Navigator that receives navigation
	// signals raised while serving this request
	// Set by: portal handlers and CLI commands via session.WithNavigator
	// Used by: session.Manager (login, logout, refresh failure)
	// Type: session.Navigator
	NavigatorKey Key = "navigator"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, access log
	// Type: string
	RequestIDKey Key = "request_id"

	// ClientIPKey contains the resolved caller address
	// Set by: httputil.ClientIPMiddleware
	// Used by: httputil.ClientIP (sign-in throttle, audit events)
	// Type: string
	ClientIPKey Key = "client_ip"

	// UserIDKey contains user ID string
	// Set by: guard.Guard.Require after the identity is resolved
	// Used by: Logger
	// Type: string
	UserIDKey Key = "user_id"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.RequestIDMiddleware
	// Used by: Handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// Helper functions for type-safe context operations

// WithIdentity adds the resolved identity to the context
func WithIdentity(ctx context.Context, ident interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, ident)
}

// WithRetry marks the context as belonging to a replayed request
func WithRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, RetryKey, true)
}

// IsRetry reports whether the context belongs to a replayed request
func IsRetry(ctx context.Context) bool {
	retry, _ := ctx.Value(RetryKey).(bool)
	return retry
}

// WithNavigator attaches a navigation target to the context
func WithNavigator(ctx context.Context, nav interface{}) context.Context {
	return context.WithValue(ctx, NavigatorKey, nav)
}

// WithClientIP stores the resolved caller address
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}
