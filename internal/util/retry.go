package util

import (
	"context"
	"errors"
	"time"
)

// retryBaseDelay is the pause after the first failed attempt. It doubles
// after every further failure.
var retryBaseDelay = 250 * time.Millisecond

// RetryErrWithContext calls fn up to maxTries times until it returns nil.
// Context errors stop the loop immediately. If maxTries <= 0, it defaults
// to 1. Returns the last error if all attempts fail.
func RetryErrWithContext(ctx context.Context, maxTries int, fn func(context.Context) error) error {
	_, err := RetryWithContext(ctx, maxTries, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryWithContext is RetryErrWithContext for functions returning a value.
func RetryWithContext[T any](ctx context.Context, maxTries int, fn func(context.Context) (T, error)) (T, error) {
	if maxTries <= 0 {
		maxTries = 1
	}
	var (
		zero    T
		lastErr error
	)
	delay := retryBaseDelay
	for i := 0; i < maxTries; i++ {
		if i > 0 {
			if err := sleep(ctx, delay); err != nil {
				return zero, err
			}
			delay *= 2
		}
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
	}
	return zero, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
