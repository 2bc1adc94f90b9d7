// Package lock provides cache-backed distributed locking and a throttling
// variant that admits a bounded rate of acquisitions per fixed window.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/foundatio-go/foundatio/bus"
	"github.com/foundatio-go/foundatio/cache"
	"github.com/foundatio-go/foundatio/clock"
	"github.com/foundatio-go/foundatio/l3"
	"github.com/foundatio-go/foundatio/uuid"
)

var logger = l3.Get()

// ErrNotAcquired is returned when Acquire gives up without obtaining the lock.
var ErrNotAcquired = errors.New("lock: not acquired")

// ErrNotHeld is returned by Release/Renew when the lock's token no longer
// matches what this Lock handle holds (it expired or was stolen).
var ErrNotHeld = errors.New("lock: not held")

// Provider acquires and inspects named locks.
type Provider interface {
	Acquire(ctx context.Context, name string, opts ...AcquireOption) (*Lock, error)
	IsLocked(ctx context.Context, name string) (bool, error)
}

// Lock represents a held lock. It is not safe for concurrent use by
// multiple goroutines without external synchronization, matching the
// single-owner semantics of a distributed lock handle.
type Lock struct {
	Resource     string
	Token        string
	Acquired     time.Time
	RenewalCount int

	provider *cacheLockProvider
}

// Release gives up the lock if this handle still holds it. A Lock returned
// by a throttling Provider has no holder to give up and Release is a no-op.
func (l *Lock) Release(ctx context.Context) error {
	if l.provider == nil {
		return nil
	}
	return l.provider.release(ctx, l)
}

// Renew extends the lock's TTL if this handle still holds it. A Lock
// returned by a throttling Provider has no TTL to extend and always
// reports false.
func (l *Lock) Renew(ctx context.Context, newTTL time.Duration) (bool, error) {
	if l.provider == nil {
		return false, nil
	}
	return l.provider.renew(ctx, l, newTTL)
}

const lockKeyPrefix = "lock:"

type releaseEvent struct {
	Resource string
}

// cacheLockProvider implements Provider atop a string Cache for the lock
// entries themselves and a Bus for waking up contended Acquire callers as
// soon as the holder releases, instead of only on TTL-driven polling.
type cacheLockProvider struct {
	cache cache.Cache[string]
	bus   bus.Bus
	clock clock.Clock
	cfg   *config

	mu      sync.Mutex
	waiters map[string][]chan struct{} // resource -> waiters to wake on release
	subID   string                     // bus subscription id, created once lazily
}

// NewCacheLockProvider creates a Provider backed by c for lock state and b
// for release notifications.
func NewCacheLockProvider(c cache.Cache[string], b bus.Bus, opts ...Option) Provider {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	p := &cacheLockProvider{
		cache:   c,
		bus:     b,
		clock:   cfg.clock,
		cfg:     cfg,
		waiters: make(map[string][]chan struct{}),
	}
	p.subID, _ = b.Subscribe(context.Background(), releaseEvent{}, p.onRelease)
	return p
}

// onRelease wakes every waiter registered for the released resource.
func (p *cacheLockProvider) onRelease(ctx context.Context, msg any) {
	ev, ok := msg.(releaseEvent)
	if !ok {
		return
	}
	p.mu.Lock()
	waiters := p.waiters[ev.Resource]
	delete(p.waiters, ev.Resource)
	p.mu.Unlock()
	for _, ch := range waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (p *cacheLockProvider) Acquire(ctx context.Context, name string, opts ...AcquireOption) (*Lock, error) {
	acfg := &acquireConfig{ttl: p.cfg.defaultTTL, timeout: p.cfg.acquireTimeout}
	for _, o := range opts {
		o(acfg)
	}

	key := lockKeyPrefix + name
	token, err := uuid.V4()
	if err != nil {
		return nil, err
	}

	deadlineC := p.deadlineChan(acfg.timeout)

	for {
		ok, err := p.cache.Add(ctx, key, token.String(), acfg.ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return &Lock{Resource: name, Token: token.String(), Acquired: p.clock.Now(), provider: p}, nil
		}

		notify := p.registerWaiter(name)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadlineC:
			return nil, ErrNotAcquired
		case <-notify:
			// holder released, loop and retry immediately
		case <-p.clock.After(p.cfg.pollInterval):
			// fall back to polling in case the release notification races
		}
	}
}

// registerWaiter adds a one-shot channel that onRelease will signal the
// next time name is released.
func (p *cacheLockProvider) registerWaiter(name string) <-chan struct{} {
	ch := make(chan struct{}, 1)
	p.mu.Lock()
	p.waiters[name] = append(p.waiters[name], ch)
	p.mu.Unlock()
	return ch
}

func (p *cacheLockProvider) deadlineChan(timeout time.Duration) <-chan time.Time {
	if timeout <= 0 {
		return nil
	}
	return p.clock.After(timeout)
}

// release deletes name's cache entry if l still holds it. A waiter
// registered with registerWaiter blocks on the bus notification, not on the
// delete's outcome, so the release event is published on every path —
// including a token mismatch or a failed delete — and not just the success
// case; otherwise a waiter could sit out a full pollInterval for no reason.
func (p *cacheLockProvider) release(ctx context.Context, l *Lock) error {
	defer func() {
		if err := p.bus.Publish(ctx, releaseEvent{Resource: l.Resource}); err != nil {
			logger.WarnF("lock: failed to publish release for %q: %v", l.Resource, err)
		}
	}()

	v, hit, err := p.cache.Get(ctx, lockKeyPrefix+l.Resource)
	if err != nil {
		return err
	}
	if !hit || v != l.Token {
		return ErrNotHeld
	}
	if _, err := p.cache.Remove(ctx, lockKeyPrefix+l.Resource); err != nil {
		return err
	}
	return nil
}

func (p *cacheLockProvider) renew(ctx context.Context, l *Lock, newTTL time.Duration) (bool, error) {
	v, hit, err := p.cache.Get(ctx, lockKeyPrefix+l.Resource)
	if err != nil {
		return false, err
	}
	if !hit || v != l.Token {
		return false, nil
	}
	if _, err := p.cache.SetExpiration(ctx, lockKeyPrefix+l.Resource, newTTL); err != nil {
		return false, err
	}
	l.RenewalCount++
	return true, nil
}

func (p *cacheLockProvider) IsLocked(ctx context.Context, name string) (bool, error) {
	return p.cache.Exists(ctx, lockKeyPrefix+name)
}
