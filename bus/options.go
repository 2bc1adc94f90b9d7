package bus

import (
	"reflect"
	"time"

	"github.com/foundatio-go/foundatio/clock"
	"github.com/foundatio-go/foundatio/codec"
)

type config struct {
	clock clock.Clock
	clone func(any) any
}

func defaultConfig() *config {
	return &config{
		clock: clock.Real,
		clone: jsonClone,
	}
}

// jsonClone deep-copies msg through a JSON round-trip via the codec
// package, the same policy-boundary default used by the cache package, so
// each subscriber gets its own copy of the payload.
func jsonClone(msg any) any {
	t := reflect.TypeOf(msg)
	if t == nil {
		return msg
	}
	jc := codec.JsonCodec()
	b, err := jc.EncodeToBytes(msg)
	if err != nil {
		return msg
	}
	ptr := reflect.New(t)
	if err := jc.DecodeBytes(b, ptr.Interface()); err != nil {
		return msg
	}
	return ptr.Elem().Interface()
}

// Option configures an in-memory Bus.
type Option func(*config)

// WithClock overrides the clock used for delayed-publish scheduling, for tests.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

// WithCloner installs a custom per-subscriber deep-copy function, replacing
// the default JSON round-trip.
func WithCloner(fn func(any) any) Option {
	return func(cfg *config) { cfg.clone = fn }
}

// WithNoClone disables per-subscriber payload copying, for callers that
// guarantee their published values are never mutated after Publish.
func WithNoClone() Option {
	return func(cfg *config) { cfg.clone = func(v any) any { return v } }
}

// PublishOption configures a single Publish call.
type PublishOption func(*publishConfig)

type publishConfig struct {
	delay time.Duration
}

// WithDelay defers delivery of the published message until d has elapsed.
func WithDelay(d time.Duration) PublishOption {
	return func(cfg *publishConfig) { cfg.delay = d }
}

// SubscribeOption configures a single Subscribe call.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	buffer int
}

// WithBuffer overrides the subscriber's dispatch channel buffer size.
func WithBuffer(n int) SubscribeOption {
	return func(cfg *subscribeConfig) {
		if n > 0 {
			cfg.buffer = n
		}
	}
}
