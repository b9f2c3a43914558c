package middleware

import (
	"net/http"
	"sync"
	"time"
)

// RateLimiter applies a token-bucket budget per caller. The public booking
// API is unauthenticated, so callers are keyed by client IP; RealIP runs
// upstream so the header is trustworthy behind the load balancer.
type RateLimiter struct {
	mu      sync.Mutex
	callers map[string]*tokenBucket
	rate    float64 // tokens added per second
	burst   float64
	now     func() time.Time
}

type tokenBucket struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter allows rate requests per second with the given burst per
// caller.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		callers: make(map[string]*tokenBucket),
		rate:    rate,
		burst:   float64(burst),
		now:     time.Now,
	}
	go rl.evictLoop(5 * time.Minute)
	return rl
}

// Allow spends one token from the caller's bucket, refilling it by elapsed
// time first.
func (rl *RateLimiter) Allow(caller string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.callers[caller]
	if !ok {
		b = &tokenBucket{tokens: rl.burst, seen: now}
		rl.callers[caller] = b
	}
	b.tokens += now.Sub(b.seen).Seconds() * rl.rate
	if b.tokens > rl.burst {
		b.tokens = rl.burst
	}
	b.seen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// evictLoop drops buckets idle for two periods so one-off callers do not
// accumulate.
func (rl *RateLimiter) evictLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		cutoff := rl.now().Add(-2 * every)
		for caller, b := range rl.callers {
			if b.seen.Before(cutoff) {
				delete(rl.callers, caller)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimit rejects callers that exhaust their budget with 429. Slot
// listings and hold attempts share one budget, which throttles scripted
// agenda scraping before it reaches the engine.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(rate, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := r.RemoteAddr
			if real := r.Header.Get("X-Real-Ip"); real != "" {
				caller = real
			}
			if !limiter.Allow(caller) {
				http.Error(w, `{"error": "too many requests"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
