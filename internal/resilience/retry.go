// Package resilience provides retry with exponential backoff for the
// outbound API calls the pipeline makes (places search, research,
// personalization).
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behavior. The zero value retries twice after
// the first attempt with a 500ms base delay doubling up to 10s.
type Policy struct {
	// Attempts is the total number of tries including the first.
	Attempts int
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the backoff.
	MaxDelay time.Duration
	// Jitter is the random fraction applied to each delay (0 to 1).
	Jitter float64
	// Classify decides whether an error is worth retrying.
	// Defaults to IsTransient.
	Classify func(error) bool
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 10 * time.Second
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		p.Jitter = 0.25
	}
	if p.Classify == nil {
		p.Classify = IsTransient
	}
	return p
}

func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Do runs fn until it succeeds, exhausts the attempt budget, returns a
// permanent error, or the context is cancelled. op names the operation
// in retry logs.
func Do(ctx context.Context, p Policy, op string, fn func(context.Context) error) error {
	_, err := DoVal(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that return a value.
func DoVal[T any](ctx context.Context, p Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !p.Classify(err) || attempt == p.Attempts-1 {
			return zero, lastErr
		}

		wait := p.delay(attempt)
		zap.L().Warn("retrying after transient error",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}
