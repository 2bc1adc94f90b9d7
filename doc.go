// Package foundatio is a collection of reusable building blocks for
// distributed, at-least-once background processing: a work queue, an
// in-process message bus, a distributed lock provider with a throttling
// variant, a resilience (retry) policy, and a scheduled job runner, all
// sharing a common clock, codec, and cache foundation.
//
// Each sub-package is independently importable:
//
//	import "github.com/foundatio-go/foundatio/queue"      // Work queue with lease/retry/deadletter
//	import "github.com/foundatio-go/foundatio/bus"        // In-process message bus
//	import "github.com/foundatio-go/foundatio/lock"       // Cache-backed and throttling lock providers
//	import "github.com/foundatio-go/foundatio/resilience" // Retry policy with classification-aware backoff
//	import "github.com/foundatio-go/foundatio/jobs"       // Scheduled job runner (interval/cron/one-shot)
//	import "github.com/foundatio-go/foundatio/cache"      // In-memory cache with expiration and cloning
//	import "github.com/foundatio-go/foundatio/clock"      // Injectable clock (real and fake)
//	import "github.com/foundatio-go/foundatio/codec"      // Encoding/decoding (JSON, XML, YAML)
//	import "github.com/foundatio-go/foundatio/l3"         // Logging
//
// For a complete list of packages and documentation, see:
// https://pkg.go.dev/github.com/foundatio-go/foundatio
package foundatio
