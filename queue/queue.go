// Package queue provides an in-memory Work Queue with lease-based
// dequeuing, retry-with-backoff, and deadletter routing.
package queue

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/foundatio-go/foundatio/clock"
	"github.com/foundatio-go/foundatio/l3"
	"github.com/foundatio-go/foundatio/uuid"
)

var logger = l3.Get()

// ErrClosed is returned by Queue operations once Close has been called.
var ErrClosed = errors.New("queue is closed")

// ErrNotWorking is returned by RenewLock for an entry that is no longer in
// the Working state (already completed, abandoned, or unknown to this
// queue). Complete and Abandon return nil for such an entry.
var ErrNotWorking = errors.New("queue: entry is not in the working set")

// Status is the lifecycle state of a Entry.
type Status int

const (
	Queued Status = iota
	Working
	Scheduled
	Completed
	Abandoned
	Deadletter
)

// Entry is a single item of work tracked by a Queue.
type Entry[T any] struct {
	ID           string
	Payload      T
	EnqueueTime  time.Time
	DequeueCount int
	LeaseExpiry  time.Time
	Status       Status

	dueAt     time.Time // valid while Scheduled
	deadAt    time.Time // valid while Deadletter: retention deadline
	heapIndex int
}

// Stats reports cumulative and point-in-time Queue counters.
type Stats struct {
	Queued     int
	Working    int
	Deadletter int
	Enqueued   int64
	Dequeued   int64
	Completed  int64
	Abandoned  int64
	Errors     int64
	Timeouts   int64
}

// Queue is a generic work queue with lease-based exclusive dequeue.
type Queue[T any] interface {
	Enqueue(ctx context.Context, payload T) (id string, err error)
	Dequeue(ctx context.Context, timeout time.Duration) (*Entry[T], error)
	Complete(ctx context.Context, e *Entry[T]) error
	Abandon(ctx context.Context, e *Entry[T]) error
	RenewLock(ctx context.Context, e *Entry[T], extend time.Duration) (bool, error)
	Stats() Stats
	StartWorking(ctx context.Context, handler func(ctx context.Context, e *Entry[T]) error, opts ...WorkerOption) error
	Close() error
}

type inMemoryQueue[T any] struct {
	cfg *config

	mu         sync.Mutex
	ready      []*Entry[T]
	working    map[string]*Entry[T]
	scheduled  scheduledHeap[T]
	deadletter []*Entry[T]
	waitCh     chan struct{}

	stats Stats

	alarm   *clock.Alarm
	stopCh  chan struct{}
	closed  bool
	stopMu  sync.Mutex
	workers *workerPump[T]
}

// NewInMemory creates an in-process Queue[T].
func NewInMemory[T any](opts ...Option) Queue[T] {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	q := &inMemoryQueue[T]{
		cfg:     cfg,
		working: make(map[string]*Entry[T]),
		waitCh:  make(chan struct{}),
		stopCh:  make(chan struct{}),
	}
	q.alarm = clock.NewAlarm(q.cfg.clock, q.nextWake)
	go q.maintenanceLoop()
	return q
}

func (q *inMemoryQueue[T]) Enqueue(ctx context.Context, payload T) (string, error) {
	id, err := uuid.V4()
	if err != nil {
		return "", err
	}
	e := &Entry[T]{
		ID:          id.String(),
		Payload:     payload,
		EnqueueTime: q.cfg.clock.Now(),
		Status:      Queued,
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrClosed
	}
	q.ready = append(q.ready, e)
	q.stats.Enqueued++
	q.wakeLocked()
	q.mu.Unlock()
	return e.ID, nil
}

// wakeLocked broadcasts to every Dequeue waiter that the ready list changed.
// Caller must hold q.mu.
func (q *inMemoryQueue[T]) wakeLocked() {
	close(q.waitCh)
	q.waitCh = make(chan struct{})
}

func (q *inMemoryQueue[T]) Dequeue(ctx context.Context, timeout time.Duration) (*Entry[T], error) {
	var timeoutC <-chan time.Time
	if timeout > 0 {
		timeoutC = q.cfg.clock.After(timeout)
	}

	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrClosed
		}
		if len(q.ready) > 0 {
			e := q.ready[0]
			q.ready = q.ready[1:]
			e.Status = Working
			e.DequeueCount++
			e.LeaseExpiry = q.cfg.clock.Now().Add(q.cfg.workItemTimeout)
			q.working[e.ID] = e
			q.stats.Dequeued++
			q.mu.Unlock()
			q.alarm.Kick()
			return e, nil
		}
		wait := q.waitCh
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeoutC:
			q.mu.Lock()
			q.stats.Timeouts++
			q.mu.Unlock()
			return nil, nil
		case <-wait:
		}
	}
}

func (q *inMemoryQueue[T]) Complete(ctx context.Context, e *Entry[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	cur, ok := q.working[e.ID]
	if !ok || cur != e {
		return nil // idempotent: already completed/abandoned
	}
	delete(q.working, e.ID)
	e.Status = Completed
	q.stats.Completed++
	return nil
}

func (q *inMemoryQueue[T]) Abandon(ctx context.Context, e *Entry[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	cur, ok := q.working[e.ID]
	if !ok || cur != e {
		return nil // idempotent
	}
	delete(q.working, e.ID)
	q.stats.Abandoned++
	q.routeAbandonedLocked(e)
	q.wakeLocked()
	q.alarm.Kick()
	return nil
}

// routeAbandonedLocked applies the retries/retryDelay/deadletter transition
// table. Caller must hold q.mu.
func (q *inMemoryQueue[T]) routeAbandonedLocked(e *Entry[T]) {
	now := q.cfg.clock.Now()
	if e.DequeueCount > q.cfg.retries {
		q.moveToDeadletterLocked(e, now)
		return
	}
	if q.cfg.retryDelay > 0 {
		delay := q.retryDelayFor(e.DequeueCount)
		e.Status = Scheduled
		e.dueAt = now.Add(delay)
		heap.Push(&q.scheduled, e)
		return
	}
	e.Status = Queued
	q.ready = append(q.ready, e)
}

func (q *inMemoryQueue[T]) retryDelayFor(dequeueCount int) time.Duration {
	idx := dequeueCount - 1
	mult := 1.0
	if len(q.cfg.retryMultipliers) > 0 {
		if idx >= len(q.cfg.retryMultipliers) {
			idx = len(q.cfg.retryMultipliers) - 1
		}
		if idx >= 0 {
			mult = q.cfg.retryMultipliers[idx]
		}
	}
	d := time.Duration(float64(q.cfg.retryDelay) * mult)
	if q.cfg.maxDelay > 0 && d > q.cfg.maxDelay {
		d = q.cfg.maxDelay
	}
	return d
}

func (q *inMemoryQueue[T]) moveToDeadletterLocked(e *Entry[T], now time.Time) {
	e.Status = Deadletter
	e.deadAt = now.Add(q.cfg.deadLetterTimeToLive)
	q.deadletter = append(q.deadletter, e)
	if q.cfg.deadLetterMaxItems > 0 && len(q.deadletter) > q.cfg.deadLetterMaxItems {
		q.deadletter = q.deadletter[len(q.deadletter)-q.cfg.deadLetterMaxItems:]
	}
}

func (q *inMemoryQueue[T]) RenewLock(ctx context.Context, e *Entry[T], extend time.Duration) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	cur, ok := q.working[e.ID]
	if !ok || cur != e {
		return false, ErrNotWorking
	}
	now := q.cfg.clock.Now()
	if e.LeaseExpiry.Before(now) {
		return false, nil
	}
	e.LeaseExpiry = now.Add(extend)
	return true, nil
}

func (q *inMemoryQueue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Queued = len(q.ready)
	s.Working = len(q.working)
	s.Deadletter = len(q.deadletter)
	return s
}

// nextWake returns the time until the earliest of {scheduled due, working
// lease expiry, deadletter retention expiry} (implements clock.NextFunc).
func (q *inMemoryQueue[T]) nextWake(now time.Time) time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	var earliest time.Time
	consider := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}
	if len(q.scheduled) > 0 {
		consider(q.scheduled[0].dueAt)
	}
	for _, e := range q.working {
		consider(e.LeaseExpiry)
	}
	for _, e := range q.deadletter {
		consider(e.deadAt)
	}
	if earliest.IsZero() {
		return time.Hour
	}
	d := earliest.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func (q *inMemoryQueue[T]) maintenanceLoop() {
	for {
		select {
		case <-q.stopCh:
			return
		case <-q.alarm.C():
			q.runMaintenance()
			q.alarm.Rearm()
		case <-q.alarm.Kicked():
			q.alarm.Rearm()
		}
	}
}

func (q *inMemoryQueue[T]) runMaintenance() {
	now := q.cfg.clock.Now()
	q.mu.Lock()
	woke := false

	for len(q.scheduled) > 0 && !q.scheduled[0].dueAt.After(now) {
		e := heap.Pop(&q.scheduled).(*Entry[T])
		e.Status = Queued
		q.ready = append(q.ready, e)
		woke = true
	}

	for id, e := range q.working {
		if e.LeaseExpiry.After(now) {
			continue
		}
		delete(q.working, id)
		if e.DequeueCount > q.cfg.retries {
			q.moveToDeadletterLocked(e, now)
		} else {
			e.Status = Queued
			q.ready = append(q.ready, e)
			woke = true
		}
	}

	if len(q.deadletter) > 0 {
		kept := q.deadletter[:0]
		for _, e := range q.deadletter {
			if e.deadAt.After(now) {
				kept = append(kept, e)
			}
		}
		q.deadletter = kept
	}

	if woke {
		q.wakeLocked()
	}
	q.mu.Unlock()
}

func (q *inMemoryQueue[T]) Close() error {
	q.stopMu.Lock()
	defer q.stopMu.Unlock()
	if q.closed {
		return nil
	}
	q.mu.Lock()
	q.closed = true
	q.wakeLocked()
	q.mu.Unlock()

	if q.workers != nil {
		q.workers.stop()
	}
	close(q.stopCh)
	q.alarm.Stop()
	return nil
}
