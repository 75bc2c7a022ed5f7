package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ipRateLimiter keeps one token bucket per client address.
type ipRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   int
	now     func() time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

func newIPRateLimiter(rate float64, burst int) *ipRateLimiter {
	return &ipRateLimiter{buckets: map[string]*bucket{}, rate: rate, burst: burst, now: time.Now}
}

func (l *ipRateLimiter) enabled() bool {
	return l != nil && l.rate > 0 && l.burst > 0
}

func (l *ipRateLimiter) allow(addr string) bool {
	if !l.enabled() {
		return true
	}
	key := clientKey(addr)
	if key == "" || isLoopback(key) {
		return true
	}

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: float64(l.burst - 1), seen: now}
		return true
	}
	if elapsed := now.Sub(b.seen).Seconds(); elapsed > 0 {
		b.tokens = min(b.tokens+elapsed*l.rate, float64(l.burst))
	}
	b.seen = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// cleanup forgets clients idle for longer than maxAge.
func (l *ipRateLimiter) cleanup(maxAge time.Duration) {
	if !l.enabled() {
		return
	}
	cutoff := l.now().Add(-maxAge)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// realIP prefers the first X-Forwarded-For hop over RemoteAddr.
func realIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func clientKey(addr string) string {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	addr = strings.Trim(addr, "[]")
	if i := strings.IndexByte(addr, '%'); i >= 0 {
		addr = addr[:i]
	}
	if ip := net.ParseIP(addr); ip != nil {
		return ip.String()
	}
	return strings.ToLower(addr)
}

func isLoopback(key string) bool {
	if key == "localhost" {
		return true
	}
	ip := net.ParseIP(key)
	return ip != nil && ip.IsLoopback()
}
