package internal

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter hands out a token bucket per key (remote address, in practice)
// so the auth endpoints cannot be hammered from a single host.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func NewRateLimiter(limit rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   limit,
		burst:   burst,
	}
}

func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	limiter, ok := r.buckets[key]
	if !ok {
		limiter = rate.NewLimiter(r.limit, r.burst)
		r.buckets[key] = limiter
	}
	r.mu.Unlock()
	return limiter.Allow()
}
