// internal/ratelimit/ratelimit.go

// Package ratelimit implements a client-side sliding-window counter for remote
// API quotas. It is a local heuristic to avoid triggering platform-side
// throttling; the platform's own rate-limit endpoint remains the ground truth.
//
// A sliding window matches how GitHub bills its hourly quota (a rolling window
// of calls, not a refill rate), so no background refill timer is needed.
package ratelimit

import (
	"sync"
	"time"

	"projtrack/internal/model"
)

// DefaultBuffer is the safety margin of requests kept in reserve so the
// limiter never drives usage to the exact edge of the quota.
const DefaultBuffer = 100

// Limit is a static (quota, window) pair for one platform.
type Limit struct {
	Quota  int
	Window time.Duration
}

var platformLimits = map[model.Platform]Limit{
	model.PlatformGitHub: {Quota: 5000, Window: time.Hour},
	model.PlatformGitLab: {Quota: 300, Window: time.Minute},
}

// Limiter tracks request timestamps for one platform inside a sliding window.
// State is process-local and resets on restart; running two instances
// concurrently can jointly exceed the real quota.
type Limiter struct {
	platform model.Platform
	limit    Limit
	limited  bool
	now      func() time.Time

	mu    sync.Mutex
	calls []time.Time
}

// New creates a limiter for the given platform. Platforms without a configured
// quota are effectively unbounded.
func New(platform model.Platform) *Limiter {
	return NewWithClock(platform, time.Now)
}

// NewWithClock creates a limiter with an injectable clock for tests.
func NewWithClock(platform model.Platform, now func() time.Time) *Limiter {
	limit, ok := platformLimits[platform]
	return &Limiter{
		platform: platform,
		limit:    limit,
		limited:  ok,
		now:      now,
	}
}

// CanMakeRequest reports whether a new request fits under the quota, keeping
// buffer requests in reserve. It prunes timestamps that have left the window.
func (l *Limiter) CanMakeRequest(buffer int) bool {
	if !l.limited {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune()
	return len(l.calls) < l.limit.Quota-buffer
}

// RecordRequest records that a request was actually dispatched. Callers must
// record exactly once per external call: skipping it under-counts usage,
// recording speculatively over-counts and throttles unnecessarily.
func (l *Limiter) RecordRequest() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls = append(l.calls, l.now())
}

// Remaining returns the number of calls left in the current window.
func (l *Limiter) Remaining() int {
	if !l.limited {
		return int(^uint(0) >> 1) // effectively unbounded
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune()
	return l.limit.Quota - len(l.calls)
}

// ResetTime returns when the oldest recorded call leaves the window, freeing a
// slot. The second return value is false when no calls are recorded.
func (l *Limiter) ResetTime() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.calls) == 0 {
		return time.Time{}, false
	}

	oldest := l.calls[0]
	for _, c := range l.calls[1:] {
		if c.Before(oldest) {
			oldest = c
		}
	}
	return oldest.Add(l.limit.Window), true
}

// prune drops timestamps older than now minus the window. Callers must hold mu.
func (l *Limiter) prune() {
	cutoff := l.now().Add(-l.limit.Window)
	kept := l.calls[:0]
	for _, c := range l.calls {
		if c.After(cutoff) {
			kept = append(kept, c)
		}
	}
	l.calls = kept
}

// Registry hands out one shared limiter per platform. It replaces the
// process-wide singletons of older designs with an explicit object that is
// constructed once and injected into the queue and the orchestrator.
type Registry struct {
	mu       sync.Mutex
	limiters map[model.Platform]*Limiter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{limiters: make(map[model.Platform]*Limiter)}
}

// For returns the limiter for a platform, creating it on first use.
func (r *Registry) For(platform model.Platform) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[platform]
	if !ok {
		l = New(platform)
		r.limiters[platform] = l
	}
	return l
}
