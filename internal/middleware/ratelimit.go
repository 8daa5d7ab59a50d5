package middleware

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/recgen/recgen/internal/errors"
	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an unused per-session limiter is kept.
const idleLimiterTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles actions per session with a token bucket.
type RateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	entries   map[string]*limiterEntry
	now       func() time.Time
	lastSweep time.Time
}

// NewRateLimiter allows perMinute actions per session, with bursts of up to
// perMinute. perMinute <= 0 disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	l := &RateLimiter{
		limit:   rate.Inf,
		entries: make(map[string]*limiterEntry),
		now:     time.Now,
	}
	if perMinute > 0 {
		l.limit = rate.Every(time.Minute / time.Duration(perMinute))
		l.burst = perMinute
	}
	return l
}

// Allow reports whether key may perform an action now.
func (l *RateLimiter) Allow(key string) bool {
	if l.limit == rate.Inf {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= idleLimiterTTL {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) >= idleLimiterTTL {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Middleware rejects requests over the limit with 429. Requests are keyed by
// session ID, falling back to the remote address.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := GetSessionID(r.Context())
		if !ok {
			key = r.RemoteAddr
		}
		if !l.Allow(key) {
			appErr := errors.NewRateLimitError("Too many requests.", "RATE_LIMITED", "Slow down and try again in a minute.")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(appErr.StatusCode)
			_ = json.NewEncoder(w).Encode(appErr)
			return
		}
		next.ServeHTTP(w, r)
	})
}
