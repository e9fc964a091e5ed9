// Package limits provides per-client request throttling, failed attempt
// lockout and concurrent connection caps.
package limits

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// TokenBucket implements a keyed token bucket rate limiter.
type TokenBucket struct {
	rate  float64 // tokens per second
	burst int

	buckets map[string]*bucket
	now     func() time.Time
	mu      sync.Mutex
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// NewTokenBucket creates a limiter refilling rate tokens per second up to
// burst. A burst below 1 uses the rate rounded up.
func NewTokenBucket(rate float64, burst int) *TokenBucket {
	if burst < 1 {
		burst = max(1, int(rate+0.999))
	}
	return &TokenBucket{
		rate:    rate,
		burst:   burst,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow consumes one token for key.
func (tb *TokenBucket) Allow(key string) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(tb.burst), lastFill: now}
		tb.buckets[key] = b
	}

	b.tokens = min(b.tokens+now.Sub(b.lastFill).Seconds()*tb.rate, float64(tb.burst))
	b.lastFill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Prune drops buckets untouched for longer than maxIdle and returns how many
// were removed.
func (tb *TokenBucket) Prune(maxIdle time.Duration) int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	cutoff := tb.now().Add(-maxIdle)
	n := 0
	for key, b := range tb.buckets {
		if b.lastFill.Before(cutoff) {
			delete(tb.buckets, key)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (tb *TokenBucket) Len() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return len(tb.buckets)
}

// ClientIP extracts the client IP from an HTTP request.
// Checks X-Forwarded-For and X-Real-IP headers, falling back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
