// Package middleware provides request throttling and origin checks for the portal.
//
// RateLimiter is an in-memory token bucket keyed by an arbitrary string.
// Throttle wraps a handler with it; the portal applies it to POST /login keyed
// on the client address so password guessing is slowed down:
//
//	limiter := middleware.NewRateLimiter(middleware.LoginRateLimitConfig())
//	limiter.StartCleanup(ctx)
//	router.Handle("/login", middleware.Throttle(limiter, middleware.ByClientIP, nil)(login))
//
// Rejected requests carry a Retry-After header in whole seconds.
//
// RequireSameOrigin answers 403 to state-changing requests whose Origin or
// Referer names another host.
package middleware
