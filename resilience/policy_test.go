package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/foundatio-go/foundatio/testing/assert"
)

var errBoom = errors.New("boom")

func TestPolicy_SucceedsFirstTry(t *testing.T) {
	p := New()
	calls := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_RetriesUntilSuccess(t *testing.T) {
	p := New(WithMaxAttempts(5), WithBaseDelay(time.Millisecond))
	calls := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_ExhaustsAttempts(t *testing.T) {
	p := New(WithMaxAttempts(3), WithBaseDelay(time.Millisecond))
	calls := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return errBoom
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_FatalStopsImmediately(t *testing.T) {
	errFatal := errors.New("fatal")
	p := New(
		WithMaxAttempts(5),
		WithBaseDelay(time.Millisecond),
		WithClassifier(func(err error) Classification {
			if errors.Is(err, errFatal) {
				return Fatal
			}
			return Retry
		}),
	)
	calls := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return errFatal
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_ContextCancelReturnsErrCanceled(t *testing.T) {
	p := New(WithMaxAttempts(5), WithBaseDelay(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Execute(ctx, func(ctx context.Context) error {
		calls++
		return errBoom
	})
	assert.Equal(t, ErrCanceled, err)
}

func TestExecuteValue_ReturnsTypedResult(t *testing.T) {
	p := New()
	v, err := ExecuteValue(context.Background(), p, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestPolicy_SingleAttemptFastPath(t *testing.T) {
	p := New(WithMaxAttempts(1))
	calls := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return errBoom
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_JitterStaysWithinHalfToOneAndHalfTimesDelay(t *testing.T) {
	p := New(WithBaseDelay(100*time.Millisecond), WithoutExponentialBackoff(), WithJitter())
	min := 50 * time.Millisecond
	max := 150 * time.Millisecond

	for i := 0; i < 50; i++ {
		d := p.delayFor(0)
		if d < min || d > max {
			t.Fatalf("jittered delay %s out of range [%s, %s]", d, min, max)
		}
	}
}
