package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/ontoscore/pkg/types"
)

// flakyDriver fails GetObject a fixed number of times before delegating to
// an in-memory driver.
type flakyDriver struct {
	*MemoryDriver
	failures int
	calls    int
	err      error
}

func (f *flakyDriver) GetObject(ctx context.Context, objectID string) (*types.Object, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return f.MemoryDriver.GetObject(ctx, objectID)
}

func fastRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        2,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetryDriverRecoversFromTransientFaults(t *testing.T) {
	ctx := context.Background()
	inner := &flakyDriver{
		MemoryDriver: NewMemoryDriver(),
		failures:     2,
		err:          errors.New("connection reset"),
	}
	require.NoError(t, inner.TransitionVersion(ctx, "company:acme", 0, time.Time{},
		companyVersion("obj-1", "company:acme", 1, baseTime())))

	r := NewRetryDriver(inner, fastRetryConfig())

	got, err := r.GetObject(ctx, "obj-1")
	require.NoError(t, err)
	assert.Equal(t, "obj-1", got.ID)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryDriverExhaustionWrapsUpstreamUnavailable(t *testing.T) {
	inner := &flakyDriver{
		MemoryDriver: NewMemoryDriver(),
		failures:     100,
		err:          errors.New("connection reset"),
	}
	r := NewRetryDriver(inner, fastRetryConfig())

	_, err := r.GetObject(context.Background(), "obj-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, &types.UpstreamUnavailableError{})

	var unavailable *types.UpstreamUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, string(ProviderMemory), unavailable.Upstream)
	// 1 initial attempt + MaxRetries.
	assert.Equal(t, 3, inner.calls)
}

func TestRetryDriverNonRetryablePassesThrough(t *testing.T) {
	cases := []error{
		types.NewObjectNotFoundError("obj-1"),
		&types.InvalidReferenceError{ObjectID: "obj-1"},
		&types.ConflictError{Key: "company:acme"},
	}
	for _, want := range cases {
		inner := &flakyDriver{
			MemoryDriver: NewMemoryDriver(),
			failures:     100,
			err:          want,
		}
		r := NewRetryDriver(inner, fastRetryConfig())

		_, err := r.GetObject(context.Background(), "obj-1")
		assert.Equal(t, want, err)
		assert.Equal(t, 1, inner.calls, "%T must not be retried", want)
	}
}

func TestRetryDriverContextCancelledDuringBackoff(t *testing.T) {
	inner := &flakyDriver{
		MemoryDriver: NewMemoryDriver(),
		failures:     100,
		err:          errors.New("connection reset"),
	}
	r := NewRetryDriver(inner, &RetryConfig{
		MaxRetries:        5,
		InitialDelay:      time.Hour,
		MaxDelay:          time.Hour,
		BackoffMultiplier: 2.0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := r.GetObject(ctx, "obj-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, inner.calls)
}

func TestNewRetryDriverDefaults(t *testing.T) {
	r := NewRetryDriver(NewMemoryDriver(), nil)
	assert.Equal(t, 3, r.config.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, r.config.InitialDelay)

	r = NewRetryDriver(NewMemoryDriver(), &RetryConfig{MaxRetries: -1})
	assert.Equal(t, 3, r.config.MaxRetries)
	assert.Equal(t, 2.0, r.config.BackoffMultiplier)
}
