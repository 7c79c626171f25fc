// Package retry provides bounded exponential backoff for transient store
// errors (lock contention, timeouts). The core never retries internally;
// callers such as the queue worker wrap individual operations with Do.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Policy describes a bounded exponential backoff schedule.
type Policy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
	// Jitter spreads delays by ±25% to avoid thundering-herd retries.
	Jitter bool
}

// DefaultPolicy suits short-lived store contention: 5 attempts from 100ms up
// to 5s.
func DefaultPolicy() Policy {
	return Policy{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
		Jitter:       true,
	}
}

// delay computes the sleep before attempt n (1-based; no sleep precedes the
// first attempt).
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter {
		d *= 0.75 + rand.Float64()*0.5
	}
	return time.Duration(d)
}

// Do runs op up to MaxAttempts times, sleeping the scheduled delay between
// attempts, and returns the last error if every attempt fails. Context
// cancellation stops the loop immediately.
func Do(ctx context.Context, p Policy, op func() error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = op(); lastErr == nil {
			return nil
		}
		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.delay(attempt)):
		}
	}
	return lastErr
}

// DoIf behaves like Do but stops early when retryable reports the error as
// permanent. Validation and protected-record errors should never be retried.
func DoIf(ctx context.Context, p Policy, op func() error, retryable func(error) bool) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = op(); lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || attempt == p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.delay(attempt)):
		}
	}
	return lastErr
}
