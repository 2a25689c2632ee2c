// Package ratelimit implements IP-scoped sliding-window admission control for
// the request/response endpoints. State is in-memory only and resets on
// restart; multi-instance coordination is out of scope.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultMaxRequests and DefaultWindow are the per-identifier budget.
	DefaultMaxRequests = 10
	DefaultWindow      = 60 * time.Second

	// cleanupThreshold is the number of checks between purges of idle identifiers.
	cleanupThreshold = 100
)

// Limiter tracks recent admission timestamps per client identifier and
// decides whether a request fits inside the trailing window. A sliding window
// avoids the burst-at-boundary artifact of fixed buckets.
type Limiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	checks   int

	// now is injectable for tests.
	now func() time.Time
}

// NewLimiter creates an empty limiter.
func NewLimiter() *Limiter {
	return &Limiter{
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Check admits or rejects one request for the identifier. It returns whether
// the request is allowed and, when rejected, how many whole seconds remain
// until the oldest retained admission exits the window. Check never fails;
// a deny is a policy outcome, not an error.
func (l *Limiter) Check(identifier string, maxRequests int, window time.Duration) (allowed bool, retryAfter int) {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-window)

	// Drop admissions that have left the window.
	recent := l.requests[identifier][:0]
	for _, ts := range l.requests[identifier] {
		if ts.After(windowStart) {
			recent = append(recent, ts)
		}
	}
	l.requests[identifier] = recent

	l.checks++
	if l.checks >= cleanupThreshold {
		l.purgeIdle(windowStart)
		l.checks = 0
	}

	if len(recent) >= maxRequests {
		oldest := recent[0]
		retry := int(oldest.Add(window).Sub(now).Seconds())
		if retry < 0 {
			retry = 0
		}
		slog.Warn("rate limit exceeded",
			"identifier", identifier,
			"recent", len(recent),
			"max", maxRequests,
			"retry_after", retry)
		return false, retry
	}

	l.requests[identifier] = append(recent, now)
	return true, 0
}

// purgeIdle drops identifiers whose newest admission already precedes the
// window start. Caller holds the lock.
func (l *Limiter) purgeIdle(windowStart time.Time) {
	purged := 0
	for id, times := range l.requests {
		if len(times) == 0 || !times[len(times)-1].After(windowStart) {
			delete(l.requests, id)
			purged++
		}
	}
	if purged > 0 {
		slog.Debug("purged idle rate limit entries", "count", purged)
	}
}

// Tracked returns the number of identifiers currently held. Used by tests
// and the stats surface.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}
