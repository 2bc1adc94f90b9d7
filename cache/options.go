package cache

import (
	"github.com/foundatio-go/foundatio/clock"
)

type config struct {
	clock      clock.Clock
	shardCount int
	maxItems   int
	cloner     interface{}
}

func defaultConfig() *config {
	return &config{
		clock:      clock.Real,
		shardCount: defaultShardCount,
	}
}

// Option configures an in-memory Cache.
type Option func(*config)

// WithClock overrides the clock used for TTL and sweep scheduling, for tests.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

// WithShardCount sets the number of internal shards used to spread lock
// contention. Must be a positive power of two for even key distribution;
// any positive value is accepted.
func WithShardCount(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.shardCount = n
		}
	}
}

// WithMaxItems caps the total number of live entries across all shards.
// Once exceeded, the oldest-accessed entries are evicted after every Set.
func WithMaxItems(n int) Option {
	return func(cfg *config) { cfg.maxItems = n }
}

// WithCloner installs a deep-copy function invoked on every Set/Get so
// stored values are never aliased with caller-held references. Omit for
// value types, where the language's own copy semantics already apply.
func WithCloner[V any](fn func(V) V) Option {
	return func(cfg *config) { cfg.cloner = fn }
}

// WithJSONClone installs a Clone function that performs a JSON round-trip
// through the codec package, a safe default deep-copy for reference-typed V
// when no cheaper Clone is available.
func WithJSONClone[V any]() Option {
	return WithCloner(jsonClone[V])
}
