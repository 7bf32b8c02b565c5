// Package ratelimit implements a per-key sliding-window rate limiter.
// Thread-safe. No background goroutines — stale timestamps are pruned lazily
// on each Allow call.
//
// A key's map entry persists until its next Allow or an explicit Reset, so
// the key set grows with the number of distinct identities seen. With
// caller-chosen keys that is unbounded; deployments facing hostile clients
// should front this with identity validation or recycle the limiter.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Window is the fixed sliding-window width.
const Window = time.Minute

// ErrRateLimited is returned when a key has exhausted its window capacity.
var ErrRateLimited = errors.New("rate limit exceeded")

// LimitError wraps ErrRateLimited with the limit parameters so callers can
// report how to back off.
type LimitError struct {
	Limit  int
	Window time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: maximum %d requests per %s", e.Limit, e.Window)
}

// Unwrap makes errors.Is(err, ErrRateLimited) work.
func (e *LimitError) Unwrap() error { return ErrRateLimited }

// Config configures the sliding-window limiter.
type Config struct {
	PerMinute int // Requests admitted per key per Window. 0 = unlimited.
}

// Limiter is a per-key sliding-window rate limiter. Each key gets an
// independent window; one key cannot exhaust another's quota.
type Limiter struct {
	mu    sync.Mutex
	keys  map[string][]time.Time
	limit int

	now func() time.Time // overridable in tests
}

// NewLimiter creates a limiter with the given configuration.
// If PerMinute is 0, Allow always succeeds (unlimited).
func NewLimiter(cfg Config) *Limiter {
	return &Limiter{
		keys:  make(map[string][]time.Time),
		limit: cfg.PerMinute,
		now:   time.Now,
	}
}

// Allow records one request for key if the trailing window has capacity.
// The prune-check-append sequence is atomic per call; concurrent requests
// for the same key cannot both slip under the cap.
func (l *Limiter) Allow(key string) error {
	if l.limit <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-Window)

	recent := l.keys[key][:0]
	for _, t := range l.keys[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.limit {
		l.keys[key] = recent
		return &LimitError{Limit: l.limit, Window: Window}
	}

	l.keys[key] = append(recent, now)
	return nil
}

// Reset drops all recorded state for key. Used when a session ends so idle
// keys do not linger.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.keys, key)
}
