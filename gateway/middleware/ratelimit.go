package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimit bounds request throughput per client.
type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
}

type rateEntry struct {
	limiter *rate.Limiter
}

// RateLimiter applies a per-client token bucket to inbound requests.
type RateLimiter struct {
	limit    RateLimit
	mu       sync.RWMutex
	visitors map[string]*rateEntry
}

// NewRateLimiter constructs a limiter with the supplied policy.
func NewRateLimiter(limit RateLimit) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		visitors: make(map[string]*rateEntry),
	}
}

// Middleware rejects requests exceeding the per-client budget with 429.
func (r *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r == nil || r.limit.RequestsPerMinute <= 0 {
				next.ServeHTTP(w, req)
				return
			}
			limiter := r.obtainLimiter(clientID(req))
			if !limiter.Allow() {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func (r *RateLimiter) obtainLimiter(id string) *rate.Limiter {
	r.mu.RLock()
	entry, ok := r.visitors[id]
	r.mu.RUnlock()
	if ok {
		return entry.limiter
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.visitors[id]; ok {
		return entry.limiter
	}
	burst := r.limit.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(r.limit.RequestsPerMinute/60.0), burst)
	r.visitors[id] = &rateEntry{limiter: limiter}
	return limiter
}

func clientID(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
