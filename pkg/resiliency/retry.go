package resiliency

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Try calling factory function with exponential back-off until timeout is reached.
func RetryGet[T any](ctx context.Context, factory func() (T, error)) (T, error) {
	return RetryGetWithBackoff(ctx, backoff.NewExponentialBackOff(), factory)
}

// Like RetryGet, but uses the supplied back-off policy.
func RetryGetWithBackoff[T any](ctx context.Context, b backoff.BackOff, factory func() (T, error)) (T, error) {
	var lastAttemptErr error

	retval, err := backoff.RetryNotifyWithData(
		factory,
		backoff.WithContext(b, ctx),
		func(err error, d time.Duration) {
			lastAttemptErr = err
		},
	)

	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		// Inform the caller about the timeout AND the last attempt error.
		return *new(T), errors.Join(lastAttemptErr, err)
	case err != nil:
		return *new(T), err
	default:
		return retval, nil
	}
}

// RetryGetWhen retries only while shouldRetry reports the error as transient.
// Any other error aborts the retry loop immediately and is returned as-is.
func RetryGetWhen[T any](ctx context.Context, b backoff.BackOff, shouldRetry func(error) bool, factory func() (T, error)) (T, error) {
	return RetryGetWithBackoff(ctx, b, func() (T, error) {
		retval, err := factory()
		if err != nil && !shouldRetry(err) {
			return retval, backoff.Permanent(err)
		}
		return retval, err
	})
}
