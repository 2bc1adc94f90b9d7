package resilience

import "time"

// Option configures a Policy.
type Option func(*Policy)

// WithMaxAttempts sets the total number of attempts, including the first.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the delay used for the first retry.
func WithBaseDelay(d time.Duration) Option {
	return func(p *Policy) { p.baseDelay = d }
}

// WithMaxDelay caps the computed backoff delay.
func WithMaxDelay(d time.Duration) Option {
	return func(p *Policy) { p.maxDelay = d }
}

// WithJitter randomizes each computed delay by a factor drawn uniformly
// from [0.5, 1.5), to avoid synchronized retries across callers.
func WithJitter() Option {
	return func(p *Policy) { p.useJitter = true }
}

// WithoutExponentialBackoff uses a constant BaseDelay between attempts
// instead of doubling it each time.
func WithoutExponentialBackoff() Option {
	return func(p *Policy) { p.useExponentialBackoff = false }
}

// WithClassifier overrides which errors are retried versus returned
// immediately.
func WithClassifier(fn ClassifyFunc) Option {
	return func(p *Policy) { p.classify = fn }
}
