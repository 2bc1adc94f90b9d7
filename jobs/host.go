// Package jobs provides a scheduled job runner built on top of clock, lock,
// pool, and queue: jobs run on an interval, cron expression, or one-shot
// delay, optionally gated by a distributed lock, with InstanceCount
// supervised concurrent runners per registration.
package jobs

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/foundatio-go/foundatio/clock"
	"github.com/foundatio-go/foundatio/errutils"
	"github.com/foundatio-go/foundatio/l3"
	"github.com/foundatio-go/foundatio/managers"
	"github.com/foundatio-go/foundatio/pool"
)

var logger = l3.Get()

// Host registers and runs Jobs against their Registrations.
type Host interface {
	// Register adds a job to the host. It is an error to Register after
	// Start.
	Register(job Job, opts ...RegOption) error
	// Start begins running every registered job's schedule.
	Start() error
	// Stop signals every running registration to stop and waits for
	// in-flight iterations to finish, or for ctx to be done.
	Stop(ctx context.Context) error
}

type registrationState struct {
	reg        *Registration
	job        Job
	supervisor *pool.Supervisor
	iterations int64
	lastResult Result
	mu         sync.Mutex
}

type defaultHost struct {
	mu         sync.Mutex
	clk        clock.Clock
	regs       managers.ItemManager[*registrationState]
	regOrder   []string
	running    bool
	installSig bool
	sigCh      chan os.Signal
}

// HostOption configures a Host.
type HostOption func(*defaultHost)

// WithHostClock overrides the clock used to drive every registration's
// scheduling alarm, for tests.
func WithHostClock(c clock.Clock) HostOption {
	return func(h *defaultHost) { h.clk = c }
}

// WithSignals installs a SIGINT/SIGTERM handler that calls Stop with a
// background context as soon as either signal arrives.
func WithSignals() HostOption {
	return func(h *defaultHost) { h.installSig = true }
}

// NewHost creates an unstarted Host.
func NewHost(opts ...HostOption) Host {
	h := &defaultHost{clk: clock.Real, regs: managers.NewItemManager[*registrationState]()}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *defaultHost) Register(job Job, opts ...RegOption) error {
	reg := &Registration{InstanceCount: 1}
	for _, o := range opts {
		o(reg)
	}
	if reg.InstanceCount <= 0 {
		reg.InstanceCount = 1
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return ErrAlreadyRunning
	}
	if reg.Name == "" {
		reg.Name = fmt.Sprintf("job-%d", len(h.regOrder)+1)
	}
	sched, err := reg.resolveSchedule()
	if err != nil {
		return err
	}
	reg.Schedule = sched

	if reg.LockProvider != nil {
		job = JobWithLock(job, reg.LockProvider, reg.Name)
	}

	h.regs.Register(reg.Name, &registrationState{reg: reg, job: job})
	h.regOrder = append(h.regOrder, reg.Name)
	return nil
}

func (h *defaultHost) Start() error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrAlreadyRunning
	}
	h.running = true
	regs := h.regs.Items()
	installSig := h.installSig
	h.mu.Unlock()

	for _, rs := range regs {
		rs.supervisor = pool.NewSupervisor()
		rs := rs
		if err := rs.supervisor.Start(context.Background(), rs.reg.InstanceCount, func(ctx context.Context) {
			h.runContinuous(ctx, rs)
		}); err != nil {
			return err
		}
		logger.InfoF("jobs: started registration %q with %d instance(s)", rs.reg.Name, rs.reg.InstanceCount)
	}

	if installSig {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		h.mu.Lock()
		h.sigCh = sigCh
		h.mu.Unlock()
		go func() {
			sig, ok := <-sigCh
			if !ok {
				return
			}
			logger.WarnF("jobs: received signal %v, stopping host", sig)
			if err := h.Stop(context.Background()); err != nil {
				logger.ErrorF("jobs: error stopping host: %v", err)
			}
		}()
	}

	return nil
}

// runContinuous drives one instance of a registration: it wakes on the
// registration's Schedule via a precise clock.Alarm, runs one iteration per
// wake, and stops on ctx cancellation or IterationLimit, whichever comes
// first. A panicking iteration is recovered and logged; it does not stop
// sibling instances.
func (h *defaultHost) runContinuous(ctx context.Context, rs *registrationState) {
	nextFn := func(now time.Time) time.Duration {
		next := rs.reg.Schedule.Next(now)
		if next.IsZero() {
			return time.Hour
		}
		if d := next.Sub(now); d > 0 {
			return d
		}
		return 0
	}

	alarm := clock.NewAlarm(h.clk, nextFn)
	defer alarm.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-alarm.C():
		}

		if rs.reg.IterationLimit > 0 {
			if atomic.AddInt64(&rs.iterations, 1) > int64(rs.reg.IterationLimit) {
				return
			}
		}

		h.runOnce(ctx, rs)
		alarm.Rearm()
	}
}

func (h *defaultHost) runOnce(ctx context.Context, rs *registrationState) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorF("jobs: registration %q panicked: %v", rs.reg.Name, r)
			rs.mu.Lock()
			rs.lastResult = Failed(fmt.Errorf("panic: %v", r))
			rs.mu.Unlock()
		}
	}()

	result := rs.job.Run(ctx)
	rs.mu.Lock()
	rs.lastResult = result
	rs.mu.Unlock()

	if !result.Success && !result.Cancelled {
		logger.WarnF("jobs: registration %q iteration failed: %s (%v)", rs.reg.Name, result.Message, result.Err)
	}
}

func (h *defaultHost) Stop(ctx context.Context) error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrNotRunning
	}
	h.running = false
	regs := h.regs.Items()
	sigCh := h.sigCh
	h.sigCh = nil
	h.mu.Unlock()

	if sigCh != nil {
		signal.Stop(sigCh)
		close(sigCh)
	}

	merr := errutils.NewMultiErr(nil)
	done := make(chan struct{})

	go func() {
		for _, rs := range regs {
			rs.supervisor.Stop()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		merr.Add(ctx.Err())
	}

	if merr.HasErrors() {
		return merr
	}
	return nil
}
