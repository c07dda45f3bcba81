package util

import (
	"context"
	"time"
)

// RateLimiter spaces operations out to at most perMinute per minute. It is
// used by the data gatherer to stay inside API quotas; nothing in the
// simulation core rate-limits.
type RateLimiter struct {
	interval time.Duration
	next     time.Time
}

// NewRateLimiter creates a RateLimiter allowing perMinute operations per
// minute. The first Wait never blocks.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RateLimiter{
		interval: time.Minute / time.Duration(perMinute),
	}
}

// Wait blocks until the next operation slot is available or the context is
// cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	now := time.Now()
	if wait := rl.next.Sub(now); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		now = rl.next
	}
	rl.next = now.Add(rl.interval)
	return nil
}
