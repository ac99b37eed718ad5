// Package retry provides an explicit retry policy value so backoff
// schedules can be tested independently of their call sites.
package retry

import (
	"context"
	"time"
)

// Policy describes a bounded retry schedule with multiplicative backoff.
type Policy struct {
	Attempts int
	Delay    time.Duration
	Backoff  float64
}

// Delays returns the wait applied before each retry (Attempts-1 entries).
func (p Policy) Delays() []time.Duration {
	if p.Attempts <= 1 {
		return nil
	}
	delays := make([]time.Duration, 0, p.Attempts-1)
	delay := p.Delay
	for i := 1; i < p.Attempts; i++ {
		delays = append(delays, delay)
		if p.Backoff > 0 {
			delay = time.Duration(float64(delay) * p.Backoff)
		}
	}
	return delays
}

// Do invokes fn up to Attempts times, sleeping the scheduled delay between
// attempts. It returns nil on the first success, the last error once the
// schedule is exhausted, or the context error if ctx ends mid-wait.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := p.Delay
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if p.Backoff > 0 {
			delay = time.Duration(float64(delay) * p.Backoff)
		}
	}

	return lastErr
}
