package util

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds how often and how patiently a side-effecting call is repeated.
type RetryPolicy struct {
	MaxTries int
	// Delay is doubled after every failed attempt.
	Delay time.Duration
}

// DefaultRetryPolicy is used for archive uploads.
var DefaultRetryPolicy = RetryPolicy{MaxTries: 3, Delay: 200 * time.Millisecond}

// RetryWithContext calls fn until it returns a nil error, the policy is exhausted,
// or ctx is done. If MaxTries <= 0, fn is called once.
// Returns ctx.Err() if the context is canceled, otherwise returns the last error.
func RetryWithContext[T any](ctx context.Context, policy RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	maxTries := policy.MaxTries
	if maxTries <= 0 {
		maxTries = 1
	}
	var lastErr error
	var zero T
	delay := policy.Delay
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err

		if i < maxTries-1 && delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				return zero, err
			}
			delay *= 2
		}
	}
	return zero, lastErr
}

// RetryErrWithContext is RetryWithContext for calls without a result.
func RetryErrWithContext(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	_, err := RetryWithContext(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
