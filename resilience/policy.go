// Package resilience provides a retry policy with classification-aware
// backoff, grounded on the teacher's bounded-attempt job execution loop.
package resilience

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/foundatio-go/foundatio/l3"
)

var logger = l3.Get()

// ErrCanceled is returned when the context is canceled mid-operation or
// mid-backoff-sleep. A canceled attempt is never counted against MaxAttempts.
var ErrCanceled = errors.New("resilience: operation canceled")

// Classification tells Execute whether a failed attempt should be retried.
type Classification int

const (
	// Retry means the error is transient and another attempt should run.
	Retry Classification = iota
	// Fatal means the error should be returned immediately without retrying.
	Fatal
)

// ClassifyFunc decides whether err warrants another attempt.
type ClassifyFunc func(err error) Classification

// defaultClassify retries every non-nil error.
func defaultClassify(err error) Classification {
	if err == nil {
		return Fatal
	}
	return Retry
}

// Policy governs how Execute retries a failing operation.
type Policy struct {
	maxAttempts           int
	baseDelay             time.Duration
	maxDelay              time.Duration
	useJitter             bool
	useExponentialBackoff bool
	classify              ClassifyFunc
}

// New builds a Policy from opts.
func New(opts ...Option) *Policy {
	p := &Policy{
		maxAttempts:           3,
		baseDelay:             100 * time.Millisecond,
		maxDelay:              30 * time.Second,
		useExponentialBackoff: true,
		classify:              defaultClassify,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Execute runs op, retrying according to the Policy until it succeeds, a
// Fatal classification is returned, MaxAttempts is exhausted, or ctx is
// canceled.
func (p *Policy) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := ExecuteValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// ExecuteValue runs op exactly like Execute, additionally carrying a typed
// return value through to the caller on success.
func ExecuteValue[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if p.maxAttempts <= 1 {
		if err := ctx.Err(); err != nil {
			return zero, ErrCanceled
		}
		v, err := op(ctx)
		return v, err
	}

	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, ErrCanceled
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if p.classify(err) == Fatal {
			return zero, err
		}

		if attempt == p.maxAttempts-1 {
			break
		}

		delay := p.delayFor(attempt)
		logger.DebugF("resilience: attempt %d failed, retrying in %s: %v", attempt+1, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ErrCanceled
		case <-timer.C:
		}
	}

	return zero, lastErr
}

// delayFor computes the backoff delay for the given zero-based attempt
// index, applying exponential growth and jitter per the Policy's settings.
func (p *Policy) delayFor(attempt int) time.Duration {
	delay := p.baseDelay
	if p.useExponentialBackoff {
		delay = p.baseDelay * time.Duration(1<<uint(attempt))
	}
	if delay > p.maxDelay {
		delay = p.maxDelay
	}
	if p.useJitter {
		delay = time.Duration(float64(delay) * (0.5 + rand.Float64()))
	}
	return delay
}
