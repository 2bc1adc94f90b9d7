package clock

import "time"

// NextFunc computes the duration until the next wake-up, given the current
// time. A non-positive return means "already due". Implementations that have
// nothing pending should return a long fallback interval rather than zero, so
// the Alarm does not spin.
type NextFunc func(now time.Time) time.Duration

// Alarm is a rearmable single-shot timer that wakes a consumer loop at
// precisely the next due time, recomputed via NextFunc every time it fires
// or is explicitly kicked. It generalizes the scheduler precise-wake pattern
// used to drive cache expiration sweeps, bus delayed dispatch, and queue
// maintenance loops.
type Alarm struct {
	clock Clock
	next  NextFunc
	timer Timer
	kick  chan struct{}
}

// NewAlarm creates an Alarm on clk that wakes according to next.
func NewAlarm(clk Clock, next NextFunc) *Alarm {
	a := &Alarm{
		clock: clk,
		next:  next,
		kick:  make(chan struct{}, 1),
	}
	a.timer = clk.NewTimer(next(clk.Now()))
	return a
}

// C returns the channel that fires when the alarm is due.
func (a *Alarm) C() <-chan time.Time {
	return a.timer.C()
}

// Kick forces the alarm to recompute its next deadline immediately, e.g.
// after a new, earlier-due item was added.
func (a *Alarm) Kick() {
	select {
	case a.kick <- struct{}{}:
	default:
	}
}

// Kicked returns the channel a caller's select loop should also watch,
// alongside C(), to know when to call Rearm after a Kick.
func (a *Alarm) Kicked() <-chan struct{} {
	return a.kick
}

// Rearm stops the current timer (draining it if already fired) and resets it
// based on the current NextFunc evaluation. Call after handling a fire on C()
// or a signal on Kicked().
func (a *Alarm) Rearm() {
	if !a.timer.Stop() {
		select {
		case <-a.timer.C():
		default:
		}
	}
	a.timer.Reset(a.next(a.clock.Now()))
}

// Stop stops the underlying timer permanently.
func (a *Alarm) Stop() {
	a.timer.Stop()
}
