package queue

import (
	"time"

	"github.com/foundatio-go/foundatio/clock"
)

type config struct {
	clock                clock.Clock
	retries              int
	retryDelay           time.Duration
	retryMultipliers     []float64
	maxDelay             time.Duration
	workItemTimeout      time.Duration
	deadLetterMaxItems   int
	deadLetterTimeToLive time.Duration
}

func defaultConfig() *config {
	return &config{
		clock:                clock.Real,
		retries:              2,
		retryDelay:           0,
		workItemTimeout:      time.Minute,
		deadLetterTimeToLive: 24 * time.Hour,
	}
}

// Option configures an in-memory Queue.
type Option func(*config)

// WithClock overrides the clock used for leases and scheduling, for tests.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

// WithRetries sets how many times an abandoned or expired entry is requeued
// before it is routed to the deadletter list.
func WithRetries(n int) Option {
	return func(cfg *config) { cfg.retries = n }
}

// WithRetryDelay sets the base delay applied before a retried entry rejoins
// the ready list. Zero means retried entries rejoin immediately.
func WithRetryDelay(d time.Duration) Option {
	return func(cfg *config) { cfg.retryDelay = d }
}

// WithRetryMultipliers sets the per-retry multiplier vector applied to
// RetryDelay; the last value is reused once the dequeue count exceeds the
// vector's length.
func WithRetryMultipliers(m []float64) Option {
	return func(cfg *config) { cfg.retryMultipliers = m }
}

// WithMaxDelay caps the computed retry delay.
func WithMaxDelay(d time.Duration) Option {
	return func(cfg *config) { cfg.maxDelay = d }
}

// WithWorkItemTimeout sets the lease duration granted per Dequeue.
func WithWorkItemTimeout(d time.Duration) Option {
	return func(cfg *config) { cfg.workItemTimeout = d }
}

// WithDeadLetterMaxItems caps the deadletter list size; the oldest entries
// are evicted once exceeded.
func WithDeadLetterMaxItems(n int) Option {
	return func(cfg *config) { cfg.deadLetterMaxItems = n }
}

// WithDeadLetterTimeToLive sets how long deadlettered entries are retained
// before being dropped by the maintenance loop.
func WithDeadLetterTimeToLive(d time.Duration) Option {
	return func(cfg *config) { cfg.deadLetterTimeToLive = d }
}
