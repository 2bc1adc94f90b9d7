package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/foundatio-go/foundatio/bus"
	"github.com/foundatio-go/foundatio/cache"
	"github.com/foundatio-go/foundatio/clock"
	"github.com/foundatio-go/foundatio/lock"
	"github.com/foundatio-go/foundatio/queue"
	"github.com/foundatio-go/foundatio/testing/assert"
)

func TestHost_RunsIntervalJobRepeatedly(t *testing.T) {
	fc := clock.NewFakeClock(time.Unix(0, 0))
	h := NewHost(WithHostClock(fc))

	var runs int32
	job := JobFunc(func(ctx context.Context) Result {
		atomic.AddInt32(&runs, 1)
		return Success()
	})

	err := h.Register(job, WithInterval(time.Second))
	assert.NoError(t, err)
	assert.NoError(t, h.Start())

	for i := 0; i < 3; i++ {
		fc.Advance(time.Second)
		time.Sleep(20 * time.Millisecond)
	}

	assert.NoError(t, h.Stop(context.Background()))
	assert.True(t, atomic.LoadInt32(&runs) >= 3)
}

func TestHost_IterationLimitStopsItself(t *testing.T) {
	fc := clock.NewFakeClock(time.Unix(0, 0))
	h := NewHost(WithHostClock(fc))

	var runs int32
	job := JobFunc(func(ctx context.Context) Result {
		atomic.AddInt32(&runs, 1)
		return Success()
	})

	assert.NoError(t, h.Register(job, WithInterval(time.Second), WithIterationLimit(2)))
	assert.NoError(t, h.Start())

	for i := 0; i < 5; i++ {
		fc.Advance(time.Second)
		time.Sleep(20 * time.Millisecond)
	}

	assert.NoError(t, h.Stop(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))
}

func TestHost_RegisterAfterStartFails(t *testing.T) {
	h := NewHost()
	assert.NoError(t, h.Register(JobFunc(func(ctx context.Context) Result { return Success() }), WithInterval(time.Minute)))
	assert.NoError(t, h.Start())
	defer h.Stop(context.Background())

	err := h.Register(JobFunc(func(ctx context.Context) Result { return Success() }), WithInterval(time.Minute))
	assert.Error(t, err)
}

func TestHost_StopIsNotIdempotentWhenNeverStarted(t *testing.T) {
	h := NewHost()
	err := h.Stop(context.Background())
	assert.Error(t, err)
}

func TestHost_RegisterWithoutScheduleFails(t *testing.T) {
	h := NewHost()
	err := h.Register(JobFunc(func(ctx context.Context) Result { return Success() }))
	assert.Error(t, err)
}

func TestJobWithLock_ContestedLockCountsAsSuccess(t *testing.T) {
	ctx := context.Background()
	c := cache.NewInMemory[string]()
	b := bus.NewInMemory()
	provider := lock.NewCacheLockProvider(c, b)

	held, err := provider.Acquire(ctx, "resource")
	assert.NoError(t, err)
	defer held.Release(ctx)

	var ran bool
	inner := JobFunc(func(ctx context.Context) Result {
		ran = true
		return Success()
	})
	locked := JobWithLock(inner, provider, "resource")

	result := locked.Run(ctx)
	assert.True(t, result.Success)
	assert.Equal(t, "lock not acquired", result.Message)
	assert.False(t, ran)
}

func TestJobWithLock_AcquiresAndRunsWhenFree(t *testing.T) {
	ctx := context.Background()
	c := cache.NewInMemory[string]()
	b := bus.NewInMemory()
	provider := lock.NewCacheLockProvider(c, b)

	var ran bool
	inner := JobFunc(func(ctx context.Context) Result {
		ran = true
		return Success()
	})
	locked := JobWithLock(inner, provider, "resource")

	result := locked.Run(ctx)
	assert.True(t, result.Success)
	assert.True(t, ran)

	stillLocked, err := provider.IsLocked(ctx, "resource")
	assert.NoError(t, err)
	assert.False(t, stillLocked)
}

func TestQueueJob_ProcessesOneEntryPerRun(t *testing.T) {
	ctx := context.Background()
	q := queue.NewInMemory[string]()
	defer q.Close()

	_, _ = q.Enqueue(ctx, "payload")

	var processed string
	qj := NewQueueJob(q, func(ctx context.Context, e *queue.Entry[string]) error {
		processed = e.Payload
		return nil
	})
	qj.DequeueTimeout = 50 * time.Millisecond

	result := qj.Run(ctx)
	assert.True(t, result.Success)
	assert.Equal(t, "payload", processed)
}

func TestQueueJob_EmptyQueueReportsSuccess(t *testing.T) {
	ctx := context.Background()
	q := queue.NewInMemory[string]()
	defer q.Close()

	qj := NewQueueJob(q, func(ctx context.Context, e *queue.Entry[string]) error {
		return nil
	})
	qj.DequeueTimeout = 20 * time.Millisecond

	result := qj.Run(ctx)
	assert.True(t, result.Success)
}
