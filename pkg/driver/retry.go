package driver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/soundprediction/ontoscore/pkg/types"
)

// RetryConfig holds configuration for the retry decorator.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 3)
	MaxRetries int
	// InitialDelay is the delay before the first retry (default: 100ms)
	InitialDelay time.Duration
	// MaxDelay caps the delay between retries (default: 5s)
	MaxDelay time.Duration
	// BackoffMultiplier is the exponential backoff factor (default: 2.0)
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryDriver decorates a Driver with bounded exponential backoff on
// transient faults. NotFound, InvalidReference and Conflict pass through
// untouched; anything else is retried and, once attempts are spent,
// wrapped as UpstreamUnavailable.
type RetryDriver struct {
	inner  Driver
	config *RetryConfig
}

// NewRetryDriver wraps the given driver.
func NewRetryDriver(inner Driver, config *RetryConfig) *RetryDriver {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 5 * time.Second
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = 2.0
	}
	return &RetryDriver{inner: inner, config: config}
}

func (r *RetryDriver) Provider() Provider { return r.inner.Provider() }

func (r *RetryDriver) Close() error { return r.inner.Close() }

// nonRetryable reports whether the error is a definitive answer rather
// than a transient fault.
func nonRetryable(err error) bool {
	return errors.Is(err, &types.NotFoundError{}) ||
		errors.Is(err, &types.InvalidReferenceError{}) ||
		errors.Is(err, &types.ConflictError{})
}

func (r *RetryDriver) delay(attempt int) time.Duration {
	d := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
	if d > float64(r.config.MaxDelay) {
		d = float64(r.config.MaxDelay)
	}
	return time.Duration(d)
}

func retryCall[T any](ctx context.Context, r *RetryDriver, call func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(r.delay(attempt)):
			case <-ctx.Done():
				return zero, fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
			}
		}

		result, err := call()
		if err == nil {
			return result, nil
		}
		if nonRetryable(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, &types.UpstreamUnavailableError{Upstream: string(r.inner.Provider()), Err: lastErr}
}

func (r *RetryDriver) GetObject(ctx context.Context, objectID string) (*types.Object, error) {
	return retryCall(ctx, r, func() (*types.Object, error) {
		return r.inner.GetObject(ctx, objectID)
	})
}

func (r *RetryDriver) GetChain(ctx context.Context, identityKey string) ([]*types.Object, error) {
	return retryCall(ctx, r, func() ([]*types.Object, error) {
		return r.inner.GetChain(ctx, identityKey)
	})
}

func (r *RetryDriver) TransitionVersion(ctx context.Context, identityKey string, expectedVersion int, closeAt time.Time, next *types.Object) error {
	_, err := retryCall(ctx, r, func() (struct{}, error) {
		return struct{}{}, r.inner.TransitionVersion(ctx, identityKey, expectedVersion, closeAt, next)
	})
	return err
}

func (r *RetryDriver) ScanObjects(ctx context.Context, objectType types.ObjectType, asOf time.Time) ([]*types.Object, error) {
	return retryCall(ctx, r, func() ([]*types.Object, error) {
		return r.inner.ScanObjects(ctx, objectType, asOf)
	})
}

func (r *RetryDriver) GetLink(ctx context.Context, linkID string) (*types.Link, error) {
	return retryCall(ctx, r, func() (*types.Link, error) {
		return r.inner.GetLink(ctx, linkID)
	})
}

func (r *RetryDriver) PutLink(ctx context.Context, link *types.Link) error {
	_, err := retryCall(ctx, r, func() (struct{}, error) {
		return struct{}{}, r.inner.PutLink(ctx, link)
	})
	return err
}

func (r *RetryDriver) CloseLink(ctx context.Context, linkID string, asOf time.Time) error {
	_, err := retryCall(ctx, r, func() (struct{}, error) {
		return struct{}{}, r.inner.CloseLink(ctx, linkID, asOf)
	})
	return err
}

func (r *RetryDriver) LinksTouching(ctx context.Context, objectID string) ([]*types.Link, error) {
	return retryCall(ctx, r, func() ([]*types.Link, error) {
		return r.inner.LinksTouching(ctx, objectID)
	})
}

func (r *RetryDriver) ScanLinks(ctx context.Context, linkType types.LinkType, asOf time.Time) ([]*types.Link, error) {
	return retryCall(ctx, r, func() ([]*types.Link, error) {
		return r.inner.ScanLinks(ctx, linkType, asOf)
	})
}
