package transport

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy implements the exponential backoff with jitter spec.md §4.2
// mandates for recoverable transport errors: base 1s, factor 2, ±20%
// jitter, capped at RetryMax retries after the first attempt (default 3).
type RetryPolicy struct {
	Base     time.Duration
	Factor   float64
	Jitter   float64
	RetryMax int
}

// DefaultRetryPolicy matches spec.md §4.2's defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Base: time.Second, Factor: 2, Jitter: 0.2, RetryMax: 3}
}

// Backoff returns the delay before retry attempt n (1-indexed).
func (p RetryPolicy) Backoff(n int) time.Duration {
	d := float64(p.Base)
	for i := 1; i < n; i++ {
		d *= p.Factor
	}
	if p.Jitter > 0 {
		delta := d * p.Jitter
		d += (rand.Float64()*2 - 1) * delta
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Do runs fn up to RetryMax+1 times, sleeping Backoff(n) between attempts,
// stopping early if fn's error is not recoverable or ctx is cancelled.
func Do(ctx context.Context, policy RetryPolicy, fn func() (*Response, error)) (*Response, error) {
	var lastErr error
	for attempt := 1; attempt <= policy.RetryMax+1; attempt++ {
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var transportErr *Error
		recoverable := false
		if e, ok := err.(*Error); ok {
			transportErr = e
			recoverable = e.Recoverable
		}
		if !recoverable || attempt > policy.RetryMax {
			return nil, err
		}

		wait := policy.Backoff(attempt)
		if transportErr != nil && transportErr.RetryAfter > 0 {
			wait = transportErr.RetryAfter
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
