// Package ratelimit provides a sliding-window submission guard keyed
// by client fingerprint. It is purely in-memory and process-scoped:
// the limiter bounds submission frequency, it is not a durable quota.
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a fingerprint submits again before
// its window has elapsed. Callers should surface this as a
// retry-later condition.
var ErrRateLimited = errors.New("rate limited")

// pruneFactor controls how stale an entry must be, in windows, before
// it is removed. Pruning bounds memory growth; it has no effect on
// correctness.
const pruneFactor = 6

// Limiter tracks the last accepted submission time per fingerprint.
// All methods are safe for concurrent use; a single mutex guards the
// map, which is acceptable at submission write frequency.
type Limiter struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
}

// NewLimiter creates a Limiter with the given window.
func NewLimiter(window time.Duration) *Limiter {
	return &Limiter{
		window: window,
		last:   make(map[string]time.Time),
	}
}

// Check reports whether a submission from the given fingerprint at
// time now would be accepted, returning ErrRateLimited if the last
// recorded submission was less than one window ago. It records
// nothing: callers commit the timestamp with Record only after the
// submission has actually been persisted, so a failed store write
// does not lock the submitter out for a window.
func (l *Limiter) Check(fingerprint string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.last[fingerprint]; ok {
		if now.Sub(last) < l.window {
			return ErrRateLimited
		}
	}
	return nil
}

// Record commits an accepted submission time for the fingerprint.
// Each record also prunes entries older than six windows.
func (l *Limiter) Record(fingerprint string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.last[fingerprint] = now
	l.prune(now)
}

// prune removes entries stale enough that they can no longer affect
// any Check outcome. Caller must hold l.mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-pruneFactor * l.window)
	for fp, last := range l.last {
		if last.Before(cutoff) {
			delete(l.last, fp)
		}
	}
}

// Len returns the number of tracked fingerprints. It exists for tests
// and observability.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.last)
}
