package limits

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// ConnectionLimiter limits concurrent connections per IP address.
type ConnectionLimiter struct {
	maxPerIP int
	counts   map[string]int
	mu       sync.Mutex

	totalBlocked atomic.Int64
}

// NewConnectionLimiter creates a new connection limiter.
func NewConnectionLimiter(maxPerIP int) *ConnectionLimiter {
	if maxPerIP <= 0 {
		maxPerIP = 20
	}
	return &ConnectionLimiter{
		maxPerIP: maxPerIP,
		counts:   make(map[string]int),
	}
}

// Acquire attempts to take a connection slot for ip.
func (cl *ConnectionLimiter) Acquire(ip string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.counts[ip] >= cl.maxPerIP {
		cl.totalBlocked.Add(1)
		return false
	}
	cl.counts[ip]++
	return true
}

// Release returns a slot taken by Acquire.
func (cl *ConnectionLimiter) Release(ip string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.counts[ip] <= 1 {
		delete(cl.counts, ip)
		return
	}
	cl.counts[ip]--
}

// Count returns the current connection count for ip.
func (cl *ConnectionLimiter) Count(ip string) int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.counts[ip]
}

// TotalBlocked returns how many connections were refused.
func (cl *ConnectionLimiter) TotalBlocked() int64 {
	return cl.totalBlocked.Load()
}

// Middleware caps WebSocket upgrades per client. The slot is held for as
// long as the wrapped handler runs. Plain requests pass through.
func (cl *ConnectionLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)
			if !cl.Acquire(ip) {
				http.Error(w, "Too Many Connections", http.StatusTooManyRequests)
				return
			}
			defer cl.Release(ip)

			next.ServeHTTP(w, r)
		})
	}
}
