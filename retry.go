package caper

import (
	"context"
	"time"

	"github.com/ashkettle/caper/adapter"
)

// RetryPolicy bounds forward-step retries at the adapter boundary. Only
// failures classified transient by the adapter are retried; business
// rejections propagate immediately.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Multiplier  float64
}

// DefaultRetry is the executor's default: three attempts with a short
// doubling backoff.
var DefaultRetry = RetryPolicy{MaxAttempts: 3, Delay: 50 * time.Millisecond, Multiplier: 2}

// Do runs fn, retrying transient failures up to the attempt cap. The last
// error is returned when the budget is exhausted.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Delay

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !adapter.IsTransient(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return err
		}
		if p.Multiplier > 1 {
			delay = time.Duration(float64(delay) * p.Multiplier)
		}
	}
	return err
}
