package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/platinummonkey/portal/pkg/httputil"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the sustained number of requests allowed per window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// LoginRateLimitConfig returns the sign-in throttle defaults
func LoginRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Minute,
		BurstSize:         5,
	}
}

func (c RateLimitConfig) capacity() float64 {
	return float64(c.RequestsPerWindow + c.BurstSize)
}

// perSecond is the refill rate
func (c RateLimitConfig) perSecond() float64 {
	return float64(c.RequestsPerWindow) / c.WindowDuration.Seconds()
}

// RateLimiter is a keyed token bucket limiter
type RateLimiter struct {
	config  RateLimitConfig
	buckets map[string]*bucket
	mu      sync.Mutex
	now     func() time.Time
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// NewRateLimiter creates a new rate limiter. A config with no requests or no
// window falls back to LoginRateLimitConfig.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.RequestsPerWindow <= 0 || config.WindowDuration <= 0 {
		config = LoginRateLimitConfig()
	}
	if config.BurstSize < 0 {
		config.BurstSize = 0
	}

	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// refill tops up b for the time since its last update. Callers hold rl.mu.
func (rl *RateLimiter) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.lastUpdate).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(rl.config.capacity(), b.tokens+elapsed*rl.config.perSecond())
	b.lastUpdate = now
}

// Allow takes a token for key, reporting false when none is left
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{tokens: rl.config.capacity(), lastUpdate: now}
		rl.buckets[key] = b
	}
	rl.refill(b, now)

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Remaining returns the number of whole tokens left for key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[key]
	if !exists {
		return int(rl.config.capacity())
	}
	rl.refill(b, rl.now())
	return int(b.tokens)
}

// RetryAfter returns how long key must wait for its next token
func (rl *RateLimiter) RetryAfter(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[key]
	if !exists {
		return 0
	}
	rl.refill(b, rl.now())
	if b.tokens >= 1 {
		return 0
	}
	return time.Duration((1 - b.tokens) / rl.config.perSecond() * float64(time.Second))
}

// Cleanup drops buckets that have refilled completely
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		rl.refill(b, now)
		if b.tokens >= rl.config.capacity() {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanup runs Cleanup once per window until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// KeyFunc maps a request to its rate limit key
type KeyFunc func(r *http.Request) string

// ByClientIP keys requests on the caller address
func ByClientIP(r *http.Request) string {
	return "ip:" + httputil.ClientIP(r)
}

// Throttle rejects requests whose key has run out of tokens. Rejected requests
// get a Retry-After header and are passed to onLimit, or answered with a plain
// 429 when onLimit is nil.
func Throttle(limiter *RateLimiter, keyFunc KeyFunc, onLimit http.Handler) func(http.Handler) http.Handler {
	if keyFunc == nil {
		keyFunc = ByClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if limiter.Allow(key) {
				next.ServeHTTP(w, r)
				return
			}

			wait := limiter.RetryAfter(key)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			if onLimit == nil {
				httputil.WriteErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			onLimit.ServeHTTP(w, r)
		})
	}
}
