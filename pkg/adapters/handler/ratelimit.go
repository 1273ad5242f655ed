package handler

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultMaxVisitors = 10_000

// RateLimiter implements per-IP rate limiting. Clients are keyed by the peer
// address unless trustProxy is set, in which case the forwarded headers win.
type RateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*visitorLimiter
	r          rate.Limit
	b          int
	idle       time.Duration
	maxEntries int
	trustProxy bool
}

type visitorLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second per
// client with the given burst. A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int, trustProxy bool) *RateLimiter {
	return &RateLimiter{
		limiters:   make(map[string]*visitorLimiter),
		r:          rate.Limit(rps),
		b:          burst,
		idle:       10 * time.Minute,
		maxEntries: defaultMaxVisitors,
		trustProxy: trustProxy,
	}
}

func (rl *RateLimiter) key(r *http.Request) string {
	if rl.trustProxy {
		return clientIP(r)
	}
	return peerIP(r)
}

func (rl *RateLimiter) getLimiter(ip string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.limiters[ip]
	if !ok {
		if len(rl.limiters) >= rl.maxEntries {
			rl.evict(now)
		}
		v = &visitorLimiter{limiter: rate.NewLimiter(rl.r, rl.b)}
		rl.limiters[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// evict drops idle visitors, then the least recently seen ones until there is
// room for one more. Caller holds mu.
func (rl *RateLimiter) evict(now time.Time) {
	for k, old := range rl.limiters {
		if now.Sub(old.lastSeen) > rl.idle {
			delete(rl.limiters, k)
		}
	}
	for len(rl.limiters) >= rl.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, v := range rl.limiters {
			if oldestKey == "" || v.lastSeen.Before(oldest) {
				oldestKey, oldest = k, v.lastSeen
			}
		}
		delete(rl.limiters, oldestKey)
	}
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Limit is a middleware that rate limits requests
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	if rl.r <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.getLimiter(rl.key(r), time.Now()).Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Code:      "A000004",
				Message:   "rate limit exceeded, try again later",
				RequestID: RequestIDFrom(r.Context()),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For hop and falls back to the peer
// address. The headers are caller supplied, so only logs and visit stats use
// it unconditionally.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return peerIP(r)
}

func peerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
