package core

// compare_limiter.go bounds how many comparisons run at once.
//
// A comparison holds both uploaded tables and their normalized copies in
// memory until it finishes. The limiter caps simultaneous comparisons so a
// burst of large uploads cannot exhaust the server. Every comparison still
// works on its own tables; the limiter shares no data between them.
//
// When all slots are busy a caller waits up to maxWait, then gets
// ErrTooManyComparisons. WaitForDrain supports graceful shutdown.

import (
	"context"
	"errors"
	"time"
)

// ErrTooManyComparisons is returned when no comparison slot frees up within
// the wait timeout. Clients should retry after a short delay.
var ErrTooManyComparisons = errors.New("too many comparisons in progress, please try again later")

// DefaultMaxConcurrentComparisons is the default limit for parallel comparisons.
const DefaultMaxConcurrentComparisons = 4

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// drainPollInterval is how often WaitForDrain checks for idle.
const drainPollInterval = 50 * time.Millisecond

// CompareLimiter is a counting semaphore over comparison slots.
type CompareLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
}

// NewCompareLimiter allows at most maxConcurrent simultaneous comparisons.
// Non-positive arguments fall back to the defaults.
func NewCompareLimiter(maxConcurrent int, maxWait time.Duration) *CompareLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentComparisons
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &CompareLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire blocks until a slot is free, ctx is done, or maxWait elapses.
// On success the caller must call Release exactly once.
func (l *CompareLimiter) Acquire(ctx context.Context) error {
	// Fast path avoids allocating a timer when a slot is free.
	if l.TryAcquire() {
		return nil
	}

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyComparisons
	}
}

// TryAcquire takes a slot without blocking and reports whether it did.
func (l *CompareLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *CompareLimiter) Release() {
	<-l.slots
}

// ActiveCount returns the number of comparisons holding a slot.
func (l *CompareLimiter) ActiveCount() int {
	return len(l.slots)
}

// MaxConcurrent returns the slot count.
func (l *CompareLimiter) MaxConcurrent() int {
	return cap(l.slots)
}

// Available returns the number of free slots.
func (l *CompareLimiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// WaitForDrain blocks until no comparison holds a slot or ctx is done.
func (l *CompareLimiter) WaitForDrain(ctx context.Context) error {
	if l.ActiveCount() == 0 {
		return nil
	}

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}

// LimiterStatus is a point-in-time view of the limiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state for health checks.
func (l *CompareLimiter) Status() LimiterStatus {
	active := len(l.slots)
	return LimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - active,
		MaxConcurrent: cap(l.slots),
	}
}
