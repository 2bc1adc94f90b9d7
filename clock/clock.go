// Package clock provides an injectable notion of time so that expiration,
// retry-backoff, and scheduling logic in cache, bus, lock, queue, and jobs
// can be driven by a fake clock in tests instead of real wall time.
package clock

import (
	"sync"
	"time"
)

// Clock abstracts time retrieval and timer/ticker creation.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// MonotonicNow returns a monotonically non-decreasing nanosecond count,
	// suitable for measuring elapsed durations but not for display; unlike
	// Now it is never affected by wall-clock adjustments.
	MonotonicNow() int64
	// After returns a channel that receives the current time after d has elapsed.
	After(d time.Duration) <-chan time.Time
	// Sleep blocks for the duration d.
	Sleep(d time.Duration)
	// NewTimer creates a Timer that fires after d.
	NewTimer(d time.Duration) Timer
	// NewTicker creates a Ticker that fires every d.
	NewTicker(d time.Duration) Ticker
}

// Timer mirrors time.Timer so FakeClock can substitute for it.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// Ticker mirrors time.Ticker so FakeClock can substitute for it.
type Ticker interface {
	C() <-chan time.Time
	Stop()
	Reset(d time.Duration)
}

// realClock delegates to the time package.
type realClock struct{}

// Real is the Clock backed by the actual system time.
var Real Clock = realClock{}

// processStart anchors MonotonicNow; time.Since uses the monotonic reading
// time.Now() embeds, so this stays immune to wall-clock adjustments.
var processStart = time.Now()

func (realClock) Now() time.Time { return time.Now() }

func (realClock) MonotonicNow() int64 { return int64(time.Since(processStart)) }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

func (realClock) NewTimer(d time.Duration) Timer {
	t := time.NewTimer(d)
	return &realTimer{t: t}
}

func (realClock) NewTicker(d time.Duration) Ticker {
	t := time.NewTicker(d)
	return &realTicker{t: t}
}

type realTimer struct{ t *time.Timer }

func (r *realTimer) C() <-chan time.Time        { return r.t.C }
func (r *realTimer) Stop() bool                 { return r.t.Stop() }
func (r *realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }

type realTicker struct{ t *time.Ticker }

func (r *realTicker) C() <-chan time.Time    { return r.t.C }
func (r *realTicker) Stop()                  { r.t.Stop() }
func (r *realTicker) Reset(d time.Duration)  { r.t.Reset(d) }

// FakeClock is a manually-advanced Clock for deterministic tests. Time only
// moves when Advance is called; no goroutine runs in the background.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

// NewFakeClock returns a FakeClock initialized to t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

type fakeWaiter struct {
	deadline time.Time
	c        chan time.Time
	period   time.Duration // non-zero for tickers
	stopped  bool
}

func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// MonotonicNow returns the fake clock's current time as nanoseconds, which
// only ever moves forward via Advance.
func (f *FakeClock) MonotonicNow() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now.UnixNano()
}

func (f *FakeClock) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWaiter{deadline: f.now.Add(d), c: make(chan time.Time, 1)}
	f.waiters = append(f.waiters, w)
	return w.c
}

// Sleep blocks until some other goroutine calls Advance past the deadline.
func (f *FakeClock) Sleep(d time.Duration) {
	<-f.After(d)
}

func (f *FakeClock) NewTimer(d time.Duration) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWaiter{deadline: f.now.Add(d), c: make(chan time.Time, 1)}
	f.waiters = append(f.waiters, w)
	return &fakeTimer{clock: f, waiter: w}
}

func (f *FakeClock) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWaiter{deadline: f.now.Add(d), c: make(chan time.Time, 1), period: d}
	f.waiters = append(f.waiters, w)
	return &fakeTicker{clock: f, waiter: w}
}

// Advance moves the fake clock forward by d, firing any timers/tickers whose
// deadline has passed, in registration order.
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	target := f.now.Add(d)
	for {
		fired := false
		for _, w := range f.waiters {
			if w.stopped || w.deadline.After(target) {
				continue
			}
			select {
			case w.c <- w.deadline:
			default:
			}
			if w.period > 0 {
				w.deadline = w.deadline.Add(w.period)
			} else {
				w.stopped = true
			}
			fired = true
		}
		if !fired {
			break
		}
	}
	f.now = target
	f.gc()
}

// gc drops stopped one-shot waiters so the slice doesn't grow unbounded.
func (f *FakeClock) gc() {
	live := f.waiters[:0]
	for _, w := range f.waiters {
		if w.stopped {
			continue
		}
		live = append(live, w)
	}
	f.waiters = live
}

type fakeTimer struct {
	clock  *FakeClock
	waiter *fakeWaiter
}

func (t *fakeTimer) C() <-chan time.Time { return t.waiter.c }

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.waiter.stopped
	t.waiter.stopped = true
	return was
}

func (t *fakeTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.waiter.stopped
	t.waiter.stopped = false
	t.waiter.deadline = t.clock.now.Add(d)
	select {
	case <-t.waiter.c:
	default:
	}
	if d <= 0 {
		// Already due: fire now, as time.Timer does.
		t.waiter.stopped = true
		t.waiter.c <- t.waiter.deadline
		return was
	}
	t.clock.rejoin(t.waiter)
	return was
}

// rejoin puts w back on the waiter list if gc dropped it after it fired or
// was stopped. Caller must hold f.mu.
func (f *FakeClock) rejoin(w *fakeWaiter) {
	for _, x := range f.waiters {
		if x == w {
			return
		}
	}
	f.waiters = append(f.waiters, w)
}

type fakeTicker struct {
	clock  *FakeClock
	waiter *fakeWaiter
}

func (t *fakeTicker) C() <-chan time.Time { return t.waiter.c }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.waiter.stopped = true
}

func (t *fakeTicker) Reset(d time.Duration) {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.waiter.stopped = false
	t.waiter.period = d
	t.waiter.deadline = t.clock.now.Add(d)
	t.clock.rejoin(t.waiter)
}
