package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/foundatio-go/foundatio/bus"
	"github.com/foundatio-go/foundatio/cache"
	"github.com/foundatio-go/foundatio/clock"
	"github.com/foundatio-go/foundatio/testing/assert"
)

func newProvider(clk clock.Clock) Provider {
	c := cache.NewInMemory[string](cache.WithClock(clk))
	b := bus.NewInMemory(bus.WithClock(clk))
	return NewCacheLockProvider(c, b, WithClock(clk), WithPollInterval(10*time.Millisecond))
}

func TestCacheLockProvider_SingleHolder(t *testing.T) {
	ctx := context.Background()
	p := newProvider(clock.Real)

	l1, err := p.Acquire(ctx, "res", WithTTL(time.Minute))
	assert.NoError(t, err)
	assert.NotNil(t, l1)

	locked, _ := p.IsLocked(ctx, "res")
	assert.True(t, locked)

	done := make(chan struct{})
	var l2 *Lock
	go func() {
		l2, _ = p.Acquire(ctx, "res", WithTTL(time.Minute))
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.NoError(t, l1.Release(ctx))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second acquirer never got the lock after release")
	}
	assert.NotNil(t, l2)
}

func TestCacheLockProvider_ReleaseWrongTokenFails(t *testing.T) {
	ctx := context.Background()
	p := newProvider(clock.Real)

	l1, _ := p.Acquire(ctx, "res")
	_ = l1.Release(ctx)

	err := l1.Release(ctx)
	assert.Error(t, err)
}

func TestCacheLockProvider_MismatchedTokenReleaseStillNotifiesWaiters(t *testing.T) {
	ctx := context.Background()
	c := cache.NewInMemory[string](cache.WithClock(clock.Real))
	b := bus.NewInMemory(bus.WithClock(clock.Real))
	p := NewCacheLockProvider(c, b, WithClock(clock.Real), WithPollInterval(time.Hour))

	l1, err := p.Acquire(ctx, "res", WithTTL(time.Minute))
	assert.NoError(t, err)

	done := make(chan struct{})
	var l2 *Lock
	go func() {
		l2, _ = p.Acquire(ctx, "res", WithTTL(time.Minute))
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)

	// A stale lock handle (already released once, so its token no longer
	// matches) still publishes the release event on Release.
	stale := &Lock{Resource: "res", Token: "not-the-real-token"}
	_ = p.(*cacheLockProvider).release(ctx, stale)

	select {
	case <-done:
		t.Fatal("waiter woke from a mismatched-token release that never freed the resource")
	case <-time.After(50 * time.Millisecond):
	}

	assert.NoError(t, l1.Release(ctx))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second acquirer never got the lock after the real release, with pollInterval set to an hour")
	}
	assert.NotNil(t, l2)
}

func TestCacheLockProvider_ReleaseOnTokenMismatchStillPublishes(t *testing.T) {
	ctx := context.Background()
	p := newProvider(clock.Real).(*cacheLockProvider)

	notify := p.registerWaiter("res")
	err := p.release(ctx, &Lock{Resource: "res", Token: "wrong-token"})
	assert.Error(t, err)

	select {
	case <-notify:
	case <-time.After(time.Second):
		t.Fatal("release with a mismatched token did not publish a release event")
	}
}

func TestCacheLockProvider_AcquireTimeout(t *testing.T) {
	ctx := context.Background()
	p := newProvider(clock.Real)

	l1, _ := p.Acquire(ctx, "res")
	defer l1.Release(ctx)

	_, err := p.Acquire(ctx, "res", WithAcquireTimeout(30*time.Millisecond))
	assert.Error(t, err)
}

func TestCacheLockProvider_Renew(t *testing.T) {
	ctx := context.Background()
	p := newProvider(clock.Real)

	l, _ := p.Acquire(ctx, "res", WithTTL(time.Minute))
	ok, err := l.Renew(ctx, 2*time.Minute)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, l.RenewalCount)
}

func TestThrottlingProvider_AdmitsUpToMaxHits(t *testing.T) {
	ctx := context.Background()
	fc := clock.NewFakeClock(time.Unix(0, 0))
	c := cache.NewInMemory[int64](cache.WithClock(fc))
	p := NewThrottlingProvider(c, WithMaxHits(2), WithPeriod(time.Second), WithThrottleClock(fc))

	_, err := p.Acquire(ctx, "api", WithAcquireTimeout(time.Millisecond))
	assert.NoError(t, err)
	_, err = p.Acquire(ctx, "api", WithAcquireTimeout(time.Millisecond))
	assert.NoError(t, err)

	_, err = p.Acquire(ctx, "api", WithAcquireTimeout(time.Millisecond))
	assert.Error(t, err)
}

func TestThrottlingProvider_AdmitsAgainNextWindow(t *testing.T) {
	ctx := context.Background()
	fc := clock.NewFakeClock(time.Unix(0, 0))
	c := cache.NewInMemory[int64](cache.WithClock(fc))
	p := NewThrottlingProvider(c, WithMaxHits(1), WithPeriod(time.Second), WithThrottleClock(fc))

	_, err := p.Acquire(ctx, "api", WithAcquireTimeout(time.Millisecond))
	assert.NoError(t, err)

	var wg sync.WaitGroup
	var acquired int32
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := p.Acquire(ctx, "api", WithAcquireTimeout(5*time.Second))
		if err == nil {
			atomic.AddInt32(&acquired, 1)
		}
	}()

	time.Sleep(10 * time.Millisecond)
	fc.Advance(2 * time.Second)
	wg.Wait()

	assert.Equal(t, int32(1), acquired)
}

func TestThrottlingProvider_ReleaseIsNoop(t *testing.T) {
	ctx := context.Background()
	fc := clock.NewFakeClock(time.Unix(0, 0))
	c := cache.NewInMemory[int64](cache.WithClock(fc))
	p := NewThrottlingProvider(c, WithThrottleClock(fc))

	l, err := p.Acquire(ctx, "api")
	assert.NoError(t, err)
	assert.NoError(t, l.Release(ctx))

	locked, _ := p.IsLocked(ctx, "api")
	assert.False(t, locked)
}
