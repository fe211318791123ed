package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	visitorSweepInterval = 60 * time.Second
	visitorIdleEviction  = 3 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type visitorTable struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
}

func (t *visitorTable) limiterFor(ip string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(t.rps, t.burst)}
		t.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func (t *visitorTable) sweep() {
	ticker := time.NewTicker(visitorSweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		t.mu.Lock()
		for key, item := range t.visitors {
			if time.Since(item.lastSeen) > visitorIdleEviction {
				delete(t.visitors, key)
			}
		}
		t.mu.Unlock()
	}
}

// RateLimit applies a per-client token bucket keyed by origin IP. Each
// research submission is cheap to accept but expensive to run, so the
// bucket guards the whole surface rather than individual routes.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = 40
	}

	table := &visitorTable{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
	go table.sweep()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !table.limiterFor(clientIP(r)).Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"code":"rate_limited","message":"too many requests"},"request_id":"` + GetRequestID(r.Context()) + `"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop; the service runs behind
// a reverse proxy in production.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return r.RemoteAddr
	}
	return host
}
