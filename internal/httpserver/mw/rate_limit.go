package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/sweep/internal/utils"
)

// RateLimitConfig is a per-client token bucket.
type RateLimitConfig struct {
	Burst      int           // bucket size
	PerMinute  int           // tokens refilled per minute
	IdleTTL    time.Duration // forget clients idle this long (default: 15m)
	TrustProxy bool          // resolve client IP from proxy headers
	Now        func() time.Time
}

type bucket struct {
	tokens   float64
	refilled time.Time
}

type limiter struct {
	cfg       RateLimitConfig
	perSecond float64
	capacity  float64

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastPrune time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.PerMinute < 1 {
		cfg.PerMinute = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &limiter{
		cfg:       cfg,
		perSecond: float64(cfg.PerMinute) / 60,
		capacity:  float64(cfg.Burst),
		buckets:   make(map[string]*bucket),
		lastPrune: cfg.Now(),
	}
}

// take consumes one token for key. When none is left it returns the whole
// seconds until the next one.
func (l *limiter) take(key string) (ok bool, remaining int, retryAfter int) {
	now := l.cfg.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) >= l.cfg.IdleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.refilled) > l.cfg.IdleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastPrune = now
	}

	b, found := l.buckets[key]
	if !found {
		b = &bucket{tokens: l.capacity, refilled: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.refilled).Seconds(); elapsed > 0 {
		b.tokens = math.Min(l.capacity, b.tokens+elapsed*l.perSecond)
		b.refilled = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true, int(b.tokens), 0
	}

	wait := int(math.Ceil((1 - b.tokens) / l.perSecond))
	return false, 0, max(wait, 1)
}

// RateLimit throttles each client IP to cfg's token bucket.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newLimiter(cfg)
	limit := strconv.Itoa(l.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, remaining, retry := l.take(utils.ClientIP(r, l.cfg.TrustProxy))

			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
