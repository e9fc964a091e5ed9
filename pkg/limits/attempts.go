package limits

import (
	"sync"
	"time"
)

// Attempts counts failures per key over a sliding window. Once a key has
// limit failures inside the window it stays blocked until the oldest one
// ages out.
type Attempts struct {
	limit  int
	window time.Duration

	failures map[string][]time.Time
	now      func() time.Time
	mu       sync.Mutex
}

// NewAttempts creates a failure counter.
func NewAttempts(limit int, window time.Duration) *Attempts {
	return &Attempts{
		limit:    limit,
		window:   window,
		failures: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Blocked reports whether key has used up its attempts and, if so, how long
// until the next one is allowed.
func (a *Attempts) Blocked(key string) (bool, time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	recent := a.trim(key, now)
	if len(recent) < a.limit {
		return false, 0
	}
	return true, recent[0].Add(a.window).Sub(now)
}

// Fail records a failure for key.
func (a *Attempts) Fail(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.failures[key] = append(a.trim(key, now), now)
}

// Reset forgets every failure of key.
func (a *Attempts) Reset(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.failures, key)
}

// Prune drops keys whose failures have all expired.
func (a *Attempts) Prune() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	n := 0
	for key := range a.failures {
		if len(a.trim(key, now)) == 0 {
			n++
		}
	}
	return n
}

// trim must be called with mu held.
func (a *Attempts) trim(key string, now time.Time) []time.Time {
	ts := a.failures[key]
	cutoff := now.Add(-a.window)
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	ts = ts[i:]
	if len(ts) == 0 {
		delete(a.failures, key)
		return nil
	}
	a.failures[key] = ts
	return ts
}
