package lock

import (
	"time"

	"github.com/foundatio-go/foundatio/clock"
)

type config struct {
	clock          clock.Clock
	defaultTTL     time.Duration
	acquireTimeout time.Duration
	pollInterval   time.Duration
}

func defaultConfig() *config {
	return &config{
		clock:          clock.Real,
		defaultTTL:     30 * time.Second,
		acquireTimeout: 0, // wait indefinitely unless ctx is canceled
		pollInterval:   100 * time.Millisecond,
	}
}

// Option configures a Provider.
type Option func(*config)

// WithClock overrides the clock used for TTLs and wait timing, for tests.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

// WithDefaultTTL sets the TTL applied to Acquire calls that don't pass
// WithTTL explicitly.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(cfg *config) { cfg.defaultTTL = ttl }
}

// WithPollInterval sets the fallback poll cadence used alongside release
// notifications, guarding against a missed bus delivery.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *config) { cfg.pollInterval = d }
}

// AcquireOption configures a single Acquire call.
type AcquireOption func(*acquireConfig)

type acquireConfig struct {
	ttl     time.Duration
	timeout time.Duration
}

// WithTTL overrides the lock's time-to-live for this Acquire call.
func WithTTL(ttl time.Duration) AcquireOption {
	return func(cfg *acquireConfig) { cfg.ttl = ttl }
}

// WithAcquireTimeout bounds how long Acquire waits for a contended lock
// before returning ErrNotAcquired. Zero waits until ctx is canceled.
func WithAcquireTimeout(d time.Duration) AcquireOption {
	return func(cfg *acquireConfig) { cfg.timeout = d }
}
