package httpapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shopboard/statusboard-api/internal/apperror"
	"github.com/shopboard/statusboard-api/internal/auth"
	"github.com/shopboard/statusboard-api/internal/tenant"
)

// ============================================================================
// Rate Limiting with Token Bucket Algorithm
// ============================================================================
//
// PATTERN: Per-(tenant, principal) token bucket for smooth, fair rate limiting
//
// The token bucket algorithm allows:
// - Burst traffic up to capacity (good UX for interactive clients)
// - Smooth long-term rate limiting (no thundering herd at window boundaries)
// - Per-(tenant, principal) fairness, so one tenant can't starve another
//
// Configuration:
//   RateLimitConfig{Burst: 20, SustainedPerSecond: 5}
//   => one token refills every 200ms, up to 20 banked.
//
// Algorithm:
//   1. On request: calculate elapsed time since last refill
//   2. Add (elapsed * refillRate) tokens, capped at capacity
//   3. If tokens >= 1.0: consume 1, allow request
//   4. Else: calculate wait time, return rate_limited with Retry-After
//
// Production Note:
//   Current implementation uses an in-memory map[key]*TokenBucket, which
//   assumes a single-process deployment. Horizontally scaling this
//   service would need an externalized limiter; not needed today.
// ============================================================================

// RateLimitConfig configures a token bucket: Burst is the bucket
// capacity, SustainedPerSecond is the steady-state refill rate.
type RateLimitConfig struct {
	Burst              int
	SustainedPerSecond float64
}

// DefaultMoveRateLimit is the move-endpoint default: 20 burst, 5/s sustained.
var DefaultMoveRateLimit = RateLimitConfig{Burst: 20, SustainedPerSecond: 5}

// TokenBucket implements a token bucket rate limiter.
type TokenBucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a new token bucket with given capacity and refill rate.
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     float64(capacity),
		capacity:   float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a token is available and consumes it if so.
// Returns (allowed, tokensRemaining, nextTokenTime, fullResetTime).
// - nextTokenTime: when the next token will be available (use for Retry-After)
// - fullResetTime: when the bucket will be completely full (use for X-RateLimit-Reset)
func (tb *TokenBucket) Allow() (bool, int, time.Time, time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now

	tokensNeeded := tb.capacity - tb.tokens
	fullResetTime := now.Add(time.Duration(tokensNeeded/tb.refillRate) * time.Second)

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true, int(tb.tokens), now, fullResetTime
	}

	tokensUntilNext := 1.0 - tb.tokens
	secondsUntilNext := tokensUntilNext / tb.refillRate
	nextTokenTime := now.Add(time.Duration(secondsUntilNext) * time.Second)

	return false, 0, nextTokenTime, fullResetTime
}

// RateLimiter manages per-key token buckets, keyed by bucketKey.
type RateLimiter struct {
	buckets map[string]*TokenBucket
	config  RateLimitConfig
	mu      sync.RWMutex
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		config:  config,
	}

	go rl.cleanupLoop()

	return rl
}

// getBucket retrieves or creates a token bucket for the given key.
func (rl *RateLimiter) getBucket(key string) *TokenBucket {
	rl.mu.RLock()
	bucket, exists := rl.buckets[key]
	rl.mu.RUnlock()

	if exists {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if bucket, exists := rl.buckets[key]; exists {
		return bucket
	}

	bucket = NewTokenBucket(rl.config.Burst, rl.config.SustainedPerSecond)
	rl.buckets[key] = bucket
	return bucket
}

// Allow checks if key is allowed to make a request.
func (rl *RateLimiter) Allow(key string) (bool, int, time.Time, time.Time) {
	bucket := rl.getBucket(key)
	return bucket.Allow()
}

// cleanupLoop periodically removes inactive buckets to prevent memory leaks.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		for key, bucket := range rl.buckets {
			bucket.mu.Lock()
			idle := time.Since(bucket.lastRefill) > time.Hour
			bucket.mu.Unlock()
			if idle {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

// bucketKey combines tenant and principal so limits are enforced per
// (tenant, principal) pair rather than globally or per bare user ID.
func bucketKey(r *http.Request) string {
	principal, _ := auth.PrincipalFrom(r.Context())
	return tenant.ID(r.Context()) + ":" + principal.Subject
}

// RateLimitMiddleware returns a middleware that enforces rate limiting
// per (tenant, principal). Each middleware instance creates its own
// rate limiter with the provided configuration, allowing different
// routes (e.g. the move endpoint) to carry different limits.
func RateLimitMiddleware(config RateLimitConfig) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := bucketKey(r)
			if key == ":" {
				// No authenticated principal yet (shouldn't happen behind
				// auth.Authenticate, but don't rate-limit a request we
				// can't attribute to anyone).
				next.ServeHTTP(w, r)
				return
			}

			allowed, remaining, nextTokenTime, fullResetTime := limiter.Allow(key)

			w.Header().Set("X-RateLimit-Limit", strconv.FormatFloat(config.SustainedPerSecond, 'f', -1, 64))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(fullResetTime.Unix(), 10))
			w.Header().Set("X-RateLimit-Burst", strconv.Itoa(config.Burst))

			if !allowed {
				retryAfter := int(time.Until(nextTokenTime).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				log.Ctx(r.Context()).Warn().
					Str("key", key).
					Str("path", r.URL.Path).
					Int("retryAfter", retryAfter).
					Msg("rate limit exceeded")

				WriteError(w, r, apperror.New(apperror.KindRateLimited,
					"rate limit exceeded, retry after the indicated delay"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
