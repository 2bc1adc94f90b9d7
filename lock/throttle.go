package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/foundatio-go/foundatio/cache"
	"github.com/foundatio-go/foundatio/clock"
)

const throttleKeyPrefix = "throttle:"

// throttlingProvider is a Provider that admits at most maxHits Acquire
// calls per fixed window per resource, rather than granting exclusive
// ownership. Release is a no-op since there is no holder to hand off to;
// IsLocked always reports false since throttling has no notion of a
// currently-held lock.
type throttlingProvider struct {
	cache   cache.Cache[int64]
	clock   clock.Clock
	maxHits int64
	period  time.Duration
	timeout time.Duration
}

// NewThrottlingProvider creates a Provider that admits at most maxHits
// acquisitions of a given resource per fixed window, backed by c for the
// per-window hit counters.
func NewThrottlingProvider(c cache.Cache[int64], opts ...ThrottleOption) Provider {
	cfg := &throttleConfig{
		clock:   clock.Real,
		maxHits: 1,
		period:  time.Minute,
	}
	for _, o := range opts {
		o(cfg)
	}
	return &throttlingProvider{
		cache:   c,
		clock:   cfg.clock,
		maxHits: cfg.maxHits,
		period:  cfg.period,
		timeout: cfg.acquireTimeout,
	}
}

func (p *throttlingProvider) Acquire(ctx context.Context, name string, opts ...AcquireOption) (*Lock, error) {
	acfg := &acquireConfig{timeout: p.timeout}
	for _, o := range opts {
		o(acfg)
	}
	deadlineC := p.deadlineChan(acfg.timeout)
	var deadline time.Time
	if acfg.timeout > 0 {
		deadline = p.clock.Now().Add(acfg.timeout)
	}

	for {
		now := p.clock.Now()
		key := p.windowKey(name, now)
		hits, err := p.cache.Increment(ctx, key, 1, p.period)
		if err != nil {
			return nil, err
		}
		if hits <= p.maxHits {
			return &Lock{Resource: name, Acquired: now, provider: nil}, nil
		}
		// Over budget for this window: undo and wait for the next one.
		_, _ = p.cache.Increment(ctx, key, -1)

		// The count cannot drop within a window, so a deadline that falls
		// before the next window boundary can never be met.
		boundary := p.nextWindowBoundary(now)
		if !deadline.IsZero() && boundary.After(deadline) {
			return nil, ErrNotAcquired
		}
		wait := boundary.Sub(now)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadlineC:
			return nil, ErrNotAcquired
		case <-p.clock.After(wait):
		}
	}
}

func (p *throttlingProvider) deadlineChan(timeout time.Duration) <-chan time.Time {
	if timeout <= 0 {
		return nil
	}
	return p.clock.After(timeout)
}

func (p *throttlingProvider) windowKey(name string, now time.Time) string {
	window := now.UnixNano() / int64(p.period)
	return fmt.Sprintf("%s%s:%d", throttleKeyPrefix, name, window)
}

func (p *throttlingProvider) nextWindowBoundary(now time.Time) time.Time {
	window := now.UnixNano() / int64(p.period)
	boundaryNanos := (window + 1) * int64(p.period)
	return time.Unix(0, boundaryNanos)
}

// IsLocked always returns false: throttling has no concept of a currently
// held lock, only a per-window hit budget.
func (p *throttlingProvider) IsLocked(ctx context.Context, name string) (bool, error) {
	return false, nil
}

// ThrottleOption configures a throttling Provider.
type ThrottleOption func(*throttleConfig)

type throttleConfig struct {
	clock          clock.Clock
	maxHits        int64
	period         time.Duration
	acquireTimeout time.Duration
}

// WithMaxHits sets the maximum number of acquisitions admitted per window.
func WithMaxHits(n int64) ThrottleOption {
	return func(cfg *throttleConfig) { cfg.maxHits = n }
}

// WithPeriod sets the fixed window duration.
func WithPeriod(d time.Duration) ThrottleOption {
	return func(cfg *throttleConfig) { cfg.period = d }
}

// WithThrottleClock overrides the clock used for window calculation, for tests.
func WithThrottleClock(c clock.Clock) ThrottleOption {
	return func(cfg *throttleConfig) { cfg.clock = c }
}

// WithThrottleAcquireTimeout bounds how long Acquire waits across windows
// before returning ErrNotAcquired.
func WithThrottleAcquireTimeout(d time.Duration) ThrottleOption {
	return func(cfg *throttleConfig) { cfg.acquireTimeout = d }
}
