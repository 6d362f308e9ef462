package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter spaces calls evenly at a fixed rate. Callers reserve the next slot and sleep
// until it comes up.
type Limiter struct {
	mu            sync.Mutex
	nextAllowedAt time.Time
	interval      time.Duration
}

func New(requestsPerSecond int) *Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &Limiter{interval: time.Second / time.Duration(requestsPerSecond)}
}

func (r *Limiter) reserve() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	scheduled := now
	if r.nextAllowedAt.After(now) {
		scheduled = r.nextAllowedAt
	}
	r.nextAllowedAt = scheduled.Add(r.interval)
	return scheduled.Sub(now)
}

// Wait blocks until the caller's slot or until ctx is done.
func (r *Limiter) Wait(ctx context.Context) error {
	sleep := r.reserve()
	if sleep <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Delay reports how long a caller arriving now would wait, without reserving a slot.
func (r *Limiter) Delay() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d := time.Until(r.nextAllowedAt); d > 0 {
		return d
	}
	return 0
}
