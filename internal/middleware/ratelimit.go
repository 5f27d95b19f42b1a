package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Limiter is a fixed-window request counter keyed by client IP.
type Limiter struct {
	limit int
	per   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
}

type window struct {
	count int
	until time.Time
}

func NewLimiter(limit int, per time.Duration) *Limiter {
	return &Limiter{
		limit:     limit,
		per:       per,
		now:       time.Now,
		windows:   make(map[string]*window),
		lastSweep: time.Now(),
	}
}

// Allow counts one request for key. When the window is full it reports the
// time until the window resets.
func (l *Limiter) Allow(key string) (remaining int, retryAfter time.Duration, ok bool) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastSweep) > l.per {
		for k, w := range l.windows {
			if now.After(w.until) {
				delete(l.windows, k)
			}
		}
		l.lastSweep = now
	}
	w, found := l.windows[key]
	if !found || now.After(w.until) {
		w = &window{until: now.Add(l.per)}
		l.windows[key] = w
	}
	if w.count >= l.limit {
		return 0, w.until.Sub(now), false
	}
	w.count++
	return l.limit - w.count, 0, true
}

// Handler rejects requests over the limit with 429 and the JSON error envelope.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, retryAfter, ok := l.Allow(clientIPForRateLimit(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":"rate_limited","message":"too many requests"}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit allows limit requests per client IP in each window of length per.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	return NewLimiter(limit, per).Handler
}

// clientIPForRateLimit prefers the first valid X-Forwarded-For hop.
func clientIPForRateLimit(r *http.Request) string {
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := strings.TrimSpace(part); ip != "" && net.ParseIP(ip) != nil {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && net.ParseIP(host) != nil {
		return host
	}
	return r.RemoteAddr
}
