// Package backoff retries fallible calls with exponential delays and jitter.
package backoff

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultInitialDelay = 500 * time.Millisecond
	defaultMaxDelay     = 15 * time.Second
	defaultFactor       = 2.0
	defaultMaxAttempts  = 4
	defaultJitter       = 0.2
)

// Policy holds the retry schedule parameters.
type Policy struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	factor       float64
	maxAttempts  int
	jitter       float64
}

// Option configures a Policy.
type Option func(*Policy)

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(p *Policy) {
		p.initialDelay = d
	}
}

// WithMaxDelay caps the delay between attempts.
func WithMaxDelay(d time.Duration) Option {
	return func(p *Policy) {
		p.maxDelay = d
	}
}

// WithFactor sets the delay growth factor.
func WithFactor(f float64) Option {
	return func(p *Policy) {
		p.factor = f
	}
}

// WithMaxAttempts sets the total number of attempts, including the first.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		p.maxAttempts = n
	}
}

// WithJitter sets the jitter factor applied to each delay (0.0 to 1.0).
func WithJitter(j float64) Option {
	return func(p *Policy) {
		p.jitter = j
	}
}

// New builds a Policy with defaults and optional overrides.
func New(opts ...Option) *Policy {
	p := &Policy{
		initialDelay: defaultInitialDelay,
		maxDelay:     defaultMaxDelay,
		factor:       defaultFactor,
		maxAttempts:  defaultMaxAttempts,
		jitter:       defaultJitter,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable: Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn until it succeeds, returns a permanent error, exhausts the
// attempt budget, or ctx is cancelled.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	delay := p.initialDelay

	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			jittered := p.applyJitter(delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(jittered):
			}

			delay = time.Duration(float64(delay) * p.factor)
			if delay > p.maxDelay {
				delay = p.maxDelay
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
	}

	return errors.Wrapf(err, "gave up after %d attempts", p.maxAttempts)
}

func (p *Policy) applyJitter(delay time.Duration) time.Duration {
	if p.jitter <= 0 {
		return delay
	}
	shift := (rand.Float64()*2 - 1) * p.jitter * float64(delay)
	jittered := time.Duration(float64(delay) + shift)
	if jittered < 0 {
		return 0
	}
	return jittered
}

// DoWithData runs fn under policy p and returns its value.
func DoWithData[T any](p *Policy, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}
