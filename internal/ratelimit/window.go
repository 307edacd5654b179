// Package ratelimit provides a sliding-window admission limiter for the
// outbound mail endpoint.
package ratelimit

import (
	"sync"
	"time"
)

// Window admits at most Limit events in any trailing window of length
// Window. Safe for concurrent use.
type Window struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events []time.Time

	nowFunc func() time.Time
}

// NewWindow creates a limiter allowing limit events per window.
func NewWindow(limit int, window time.Duration) *Window {
	return &Window{
		limit:   limit,
		window:  window,
		nowFunc: time.Now,
	}
}

// Limit returns the configured event limit.
func (w *Window) Limit() int { return w.limit }

// Period returns the configured window length.
func (w *Window) Period() time.Duration { return w.window }

// Allow records an event and returns true if it fits in the window. A
// rejected call is not recorded.
func (w *Window) Allow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.nowFunc()
	w.prune(now)
	if len(w.events) >= w.limit {
		return false
	}
	w.events = append(w.events, now)
	return true
}

// RetryAfter returns how long until the next event would be admitted, or
// zero if one would be admitted now.
func (w *Window) RetryAfter() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.nowFunc()
	w.prune(now)
	if len(w.events) < w.limit || len(w.events) == 0 {
		return 0
	}
	// The oldest event leaves only once it is strictly older than the window.
	return max(w.events[0].Add(w.window).Sub(now), time.Nanosecond)
}

// prune drops events older than now-window. Caller holds mu.
func (w *Window) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.events) && w.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.events = append(w.events[:0], w.events[i:]...)
	}
}
