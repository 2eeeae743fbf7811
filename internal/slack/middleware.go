package slack

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Middleware applies per-user rate limits to bot commands.
type Middleware struct {
	logger      zerolog.Logger
	rateLimiter *RateLimiter
}

// NewMiddleware allows maxRequests commands per user per window.
func NewMiddleware(logger zerolog.Logger, maxRequests int, window time.Duration) *Middleware {
	return &Middleware{
		logger:      logger.With().Str("component", "slack.middleware").Logger(),
		rateLimiter: NewRateLimiter(maxRequests, window),
	}
}

// CheckRateLimit returns true if the user is within rate limits. A nil
// Middleware allows everything.
func (m *Middleware) CheckRateLimit(userID string) bool {
	if m == nil {
		return true
	}
	allowed := m.rateLimiter.Allow(userID)
	if !allowed {
		m.logger.Warn().Str("user_id", userID).Msg("rate limited")
	}
	return allowed
}

// RateLimiter keeps one token bucket per key: a burst of maxRequests that
// refills evenly over window.
type RateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// NewRateLimiter creates a new rate limiter. A non-positive maxRequests disables limiting.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	r := &RateLimiter{
		limit:    rate.Inf,
		burst:    maxRequests,
		limiters: make(map[string]*rate.Limiter),
	}
	if maxRequests > 0 && window > 0 {
		r.limit = rate.Every(window / time.Duration(maxRequests))
	}
	return r
}

// Allow checks if a request from the given key is allowed.
func (r *RateLimiter) Allow(key string) bool {
	if r.limit == rate.Inf {
		return true
	}

	r.mu.Lock()
	l, ok := r.limiters[key]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[key] = l
	}
	r.mu.Unlock()

	return l.Allow()
}
