package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Do(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		p := New()
		attempts := 0
		err := p.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("success after retries", func(t *testing.T) {
		p := New(WithMaxAttempts(4), WithInitialDelay(1*time.Millisecond))
		attempts := 0
		err := p.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("flaky")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("exhausts attempt budget", func(t *testing.T) {
		p := New(WithMaxAttempts(3), WithInitialDelay(1*time.Millisecond))
		attempts := 0
		err := p.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return errors.New("down")
		})
		assert.Error(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		rejected := errors.New("order rejected")
		p := New(WithMaxAttempts(5), WithInitialDelay(1*time.Millisecond))
		attempts := 0
		err := p.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return Permanent(rejected)
		})
		assert.ErrorIs(t, err, rejected)
		assert.Equal(t, 1, attempts)
	})

	t.Run("context cancellation", func(t *testing.T) {
		p := New(WithMaxAttempts(5), WithInitialDelay(100*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())

		attempts := 0
		err := p.Do(ctx, func(ctx context.Context) error {
			attempts++
			if attempts == 2 {
				cancel()
			}
			return errors.New("down")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 2, attempts)
	})
}

func TestPolicy_DoWithData(t *testing.T) {
	t.Run("success returns data", func(t *testing.T) {
		p := New()
		val, err := DoWithData(p, context.Background(), func(ctx context.Context) (string, error) {
			return "filled", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "filled", val)
	})

	t.Run("failure returns wrapped error", func(t *testing.T) {
		p := New(WithMaxAttempts(2), WithInitialDelay(1*time.Millisecond))
		val, err := DoWithData(p, context.Background(), func(ctx context.Context) (string, error) {
			return "", errors.New("down")
		})
		assert.Error(t, err)
		assert.Empty(t, val)
	})
}
