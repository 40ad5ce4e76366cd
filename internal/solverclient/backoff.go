package solverclient

import (
	"sync"
	"time"
)

// Backoff tracks per-solver exponential backoff state for
// single_order_solver_rate_limit (§6.5): {factor, min_backoff, max_backoff}.
// Every broadcast failure doubles (by Factor) the wait before that solver is
// contacted again; any success resets it to MinBackoff. Its mutex-guarded,
// continuously-evaluated shape mirrors the teacher's TokenBucket, adapted
// from "refill tokens over time" to "shrink a penalty window over time".
type Backoff struct {
	mu      sync.Mutex
	factor  float64
	min     time.Duration
	max     time.Duration
	current time.Duration
	until   time.Time
}

// NewBackoff constructs a Backoff starting at min, per solver endpoint.
func NewBackoff(factor float64, min, max time.Duration) *Backoff {
	return &Backoff{factor: factor, min: min, max: max, current: min}
}

// Blocked reports whether the solver is still serving a penalty window.
func (b *Backoff) Blocked(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Before(b.until)
}

// Failure advances the backoff window, capped at max.
func (b *Backoff) Failure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.until = now.Add(b.current)
	next := time.Duration(float64(b.current) * b.factor)
	if next > b.max {
		next = b.max
	}
	b.current = next
}

// Success resets the backoff window to its minimum.
func (b *Backoff) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.min
	b.until = time.Time{}
}
