// Package ratelimit implements a sliding-window admission governor keyed by
// client identifier.
package ratelimit

import (
	"sync"
	"time"

	"github.com/arct1cx/bookfetch/internal/clock"
)

// Policy fixes the admission budget for one limiter instance.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Limiter admits at most Policy.Limit requests per identifier within any
// trailing Policy.Window. Timestamps outside the window are purged lazily on
// each admission check; identifiers whose windows empty out are dropped so
// the map does not grow without bound.
type Limiter struct {
	mu      sync.Mutex
	policy  Policy
	clock   clock.Clock
	windows map[string][]time.Time
}

// New creates a Limiter with the given policy.
func New(policy Policy, clk clock.Clock) *Limiter {
	return &Limiter{
		policy:  policy,
		clock:   clk,
		windows: make(map[string][]time.Time),
	}
}

// Allow reports whether the identifier may proceed, recording the request
// when admitted. Concurrent checks for the same identifier are serialized so
// two requests cannot both claim the last slot.
func (l *Limiter) Allow(identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	valid := l.purge(identifier, now)

	if len(valid) < l.policy.Limit {
		l.windows[identifier] = append(valid, now)
		return true
	}
	l.windows[identifier] = valid
	return false
}

// ResetTime returns when the identifier's oldest recorded request leaves the
// window. An identifier with nothing recorded is available immediately.
func (l *Limiter) ResetTime(identifier string) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	valid := l.purge(identifier, now)
	if len(valid) == 0 {
		return now
	}
	l.windows[identifier] = valid
	return valid[0].Add(l.policy.Window)
}

// Remaining returns how many requests the identifier has left in the current
// window.
func (l *Limiter) Remaining(identifier string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	valid := l.purge(identifier, now)
	if len(valid) > 0 {
		l.windows[identifier] = valid
	}
	rem := l.policy.Limit - len(valid)
	if rem < 0 {
		return 0
	}
	return rem
}

// purge drops timestamps older than the window start. Must be called with
// the mutex held. An identifier left with no timestamps is deleted outright.
func (l *Limiter) purge(identifier string, now time.Time) []time.Time {
	windowStart := now.Add(-l.policy.Window)
	stamps := l.windows[identifier]

	i := 0
	for i < len(stamps) && !stamps[i].After(windowStart) {
		i++
	}
	valid := stamps[i:]
	if len(valid) == 0 {
		delete(l.windows, identifier)
		return nil
	}
	return valid
}
