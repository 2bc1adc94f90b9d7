// Package cache provides a sharded, in-memory Cache implementation with
// per-key TTL, atomic numeric operations, expiration notifications, and an
// optional item-count eviction policy.
package cache

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/foundatio-go/foundatio/clock"
	"github.com/foundatio-go/foundatio/codec"
	"github.com/foundatio-go/foundatio/errutils"
	"github.com/foundatio-go/foundatio/l3"
)

var logger = l3.Get()

const defaultShardCount = 32

// Cache is a generic key/value store with expiration and atomic numeric
// helpers. All operations accept a context purely for cancellation of any
// clock-driven wait; the in-memory implementation never blocks on I/O.
type Cache[V any] interface {
	Set(ctx context.Context, key string, v V, ttl ...time.Duration) error
	Add(ctx context.Context, key string, v V, ttl ...time.Duration) (bool, error)
	Replace(ctx context.Context, key string, v V, ttl ...time.Duration) (bool, error)
	Get(ctx context.Context, key string) (v V, hit bool, err error)
	GetMany(ctx context.Context, keys []string) (map[string]V, error)
	SetMany(ctx context.Context, items map[string]V, ttl ...time.Duration) error
	Remove(ctx context.Context, key string) (bool, error)
	RemoveByPrefix(ctx context.Context, prefix string) (int, error)
	Exists(ctx context.Context, key string) (bool, error)
	GetExpiration(ctx context.Context, key string) (time.Time, bool, error)
	SetExpiration(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Increment(ctx context.Context, key string, amount int64, ttl ...time.Duration) (int64, error)
	SetIfHigher(ctx context.Context, key string, v int64, ttl ...time.Duration) (int64, error)
	SetIfLower(ctx context.Context, key string, v int64, ttl ...time.Duration) (int64, error)
	OnExpired(fn func(key string)) (cancel func())
	Count() int
	Close() error
}

type entry[V any] struct {
	value      V
	expiresAt  time.Time // zero means no expiry
	lastAccess time.Time
	seq        uint64
	expired    bool
}

func (e *entry[V]) hasExpiry() bool { return !e.expiresAt.IsZero() }

type shard[V any] struct {
	mu    sync.Mutex
	items map[string]*entry[V]
}

// inMemoryCache is the Cache implementation backed by sharded maps.
type inMemoryCache[V any] struct {
	shards   []*shard[V]
	seq      uint64
	seqMu    sync.Mutex
	clock    clock.Clock
	clone    func(V) V
	maxItems int

	alarm   *clock.Alarm
	stopCh  chan struct{}
	stopped bool
	stopMu  sync.Mutex

	cbMu sync.Mutex
	cbs  []func(key string)
}

// NewInMemory creates a Cache backed by N in-process shards.
func NewInMemory[V any](opts ...Option) Cache[V] {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	c := &inMemoryCache[V]{
		shards:   make([]*shard[V], cfg.shardCount),
		clock:    cfg.clock,
		maxItems: cfg.maxItems,
		stopCh:   make(chan struct{}),
	}
	if cfg.cloner != nil {
		if cl, ok := cfg.cloner.(func(V) V); ok {
			c.clone = cl
		}
	}
	for i := range c.shards {
		c.shards[i] = &shard[V]{items: make(map[string]*entry[V])}
	}
	c.alarm = clock.NewAlarm(c.clock, c.nextWake)
	go c.sweepLoop()
	return c
}

func (c *inMemoryCache[V]) shardFor(key string) *shard[V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

func (c *inMemoryCache[V]) nextSeq() uint64 {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	c.seq++
	return c.seq
}

func (c *inMemoryCache[V]) cloneValue(v V) V {
	if c.clone != nil {
		return c.clone(v)
	}
	return v
}

func ttlOf(ttl []time.Duration) time.Duration {
	if len(ttl) > 0 {
		return ttl[0]
	}
	return 0
}

func (c *inMemoryCache[V]) expiryFor(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.clock.Now().Add(ttl)
}

// Set unconditionally stores v under key, with optional ttl.
func (c *inMemoryCache[V]) Set(ctx context.Context, key string, v V, ttl ...time.Duration) error {
	s := c.shardFor(key)
	s.mu.Lock()
	now := c.clock.Now()
	s.items[key] = &entry[V]{value: c.cloneValue(v), expiresAt: c.expiryFor(ttlOf(ttl)), lastAccess: now, seq: c.nextSeq()}
	s.mu.Unlock()
	c.enforceMaxItems()
	c.alarm.Kick()
	return nil
}

// Add stores v under key only if key does not already hold a live value.
func (c *inMemoryCache[V]) Add(ctx context.Context, key string, v V, ttl ...time.Duration) (bool, error) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	now := c.clock.Now()
	if e, ok := s.items[key]; ok && !c.isExpiredLocked(e, now) {
		return false, nil
	}
	s.items[key] = &entry[V]{value: c.cloneValue(v), expiresAt: c.expiryFor(ttlOf(ttl)), lastAccess: now, seq: c.nextSeq()}
	c.alarm.Kick()
	return true, nil
}

// Replace stores v under key only if key already holds a live value.
func (c *inMemoryCache[V]) Replace(ctx context.Context, key string, v V, ttl ...time.Duration) (bool, error) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	now := c.clock.Now()
	e, ok := s.items[key]
	if !ok || c.isExpiredLocked(e, now) {
		return false, nil
	}
	s.items[key] = &entry[V]{value: c.cloneValue(v), expiresAt: c.expiryFor(ttlOf(ttl)), lastAccess: now, seq: c.nextSeq()}
	c.alarm.Kick()
	return true, nil
}

// isExpiredLocked reports whether e is expired as of now. Caller must hold
// the shard lock.
func (c *inMemoryCache[V]) isExpiredLocked(e *entry[V], now time.Time) bool {
	if !e.hasExpiry() || now.Before(e.expiresAt) {
		return false
	}
	return true
}

func (c *inMemoryCache[V]) Get(ctx context.Context, key string) (v V, hit bool, err error) {
	s := c.shardFor(key)
	s.mu.Lock()
	now := c.clock.Now()
	e, ok := s.items[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	if c.isExpiredLocked(e, now) {
		delete(s.items, key)
		s.mu.Unlock()
		c.fireExpired(key, e)
		return
	}
	e.lastAccess = now
	v = c.cloneValue(e.value)
	hit = true
	s.mu.Unlock()
	return
}

// GetMany fetches every key independently, skipping misses, and keeps going
// past a per-key error so one bad key doesn't hide the rest of the batch.
// Partial failures are aggregated into an errutils.MultiError.
func (c *inMemoryCache[V]) GetMany(ctx context.Context, keys []string) (map[string]V, error) {
	out := make(map[string]V, len(keys))
	merr := errutils.NewMultiErr(nil)
	for _, k := range keys {
		v, hit, err := c.Get(ctx, k)
		if err != nil {
			merr.Add(err)
			continue
		}
		if hit {
			out[k] = v
		}
	}
	if merr.HasErrors() {
		return out, merr
	}
	return out, nil
}

// SetMany sets every key independently, continuing past a per-key error so
// one bad key doesn't block the rest of the batch. Partial failures are
// aggregated into an errutils.MultiError rather than returned on the first
// failure.
func (c *inMemoryCache[V]) SetMany(ctx context.Context, items map[string]V, ttl ...time.Duration) error {
	merr := errutils.NewMultiErr(nil)
	for k, v := range items {
		if err := c.Set(ctx, k, v, ttl...); err != nil {
			merr.Add(err)
		}
	}
	if merr.HasErrors() {
		return merr
	}
	return nil
}

func (c *inMemoryCache[V]) Remove(ctx context.Context, key string) (bool, error) {
	s := c.shardFor(key)
	s.mu.Lock()
	_, ok := s.items[key]
	delete(s.items, key)
	s.mu.Unlock()
	return ok, nil
}

func (c *inMemoryCache[V]) RemoveByPrefix(ctx context.Context, prefix string) (int, error) {
	now := c.clock.Now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.items {
			if c.isExpiredLocked(e, now) {
				delete(s.items, k)
				continue
			}
			if len(prefix) == 0 || (len(k) >= len(prefix) && k[:len(prefix)] == prefix) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed, nil
}

func (c *inMemoryCache[V]) Exists(ctx context.Context, key string) (bool, error) {
	_, hit, err := c.Get(ctx, key)
	return hit, err
}

func (c *inMemoryCache[V]) GetExpiration(ctx context.Context, key string) (time.Time, bool, error) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok || c.isExpiredLocked(e, c.clock.Now()) {
		return time.Time{}, false, nil
	}
	return e.expiresAt, true, nil
}

func (c *inMemoryCache[V]) SetExpiration(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s := c.shardFor(key)
	s.mu.Lock()
	e, ok := s.items[key]
	if !ok || c.isExpiredLocked(e, c.clock.Now()) {
		s.mu.Unlock()
		return false, nil
	}
	e.expiresAt = c.expiryFor(ttl)
	s.mu.Unlock()
	c.alarm.Kick()
	return true, nil
}

// Close stops the expiration sweep goroutine. Safe to call once.
func (c *inMemoryCache[V]) Close() error {
	c.stopMu.Lock()
	defer c.stopMu.Unlock()
	if c.stopped {
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.alarm.Stop()
	return nil
}

func (c *inMemoryCache[V]) Count() int {
	n := 0
	now := c.clock.Now()
	for _, s := range c.shards {
		s.mu.Lock()
		for _, e := range s.items {
			if !c.isExpiredLocked(e, now) {
				n++
			}
		}
		s.mu.Unlock()
	}
	return n
}

func (c *inMemoryCache[V]) OnExpired(fn func(key string)) (cancel func()) {
	c.cbMu.Lock()
	idx := len(c.cbs)
	c.cbs = append(c.cbs, fn)
	c.cbMu.Unlock()
	return func() {
		c.cbMu.Lock()
		defer c.cbMu.Unlock()
		if idx < len(c.cbs) {
			c.cbs[idx] = nil
		}
	}
}

func (c *inMemoryCache[V]) fireExpired(key string, e *entry[V]) {
	if e.expired {
		return
	}
	e.expired = true
	c.cbMu.Lock()
	cbs := make([]func(key string), len(c.cbs))
	copy(cbs, c.cbs)
	c.cbMu.Unlock()
	for _, fn := range cbs {
		if fn != nil {
			fn(key)
		}
	}
}

// nextWake scans all shards for the earliest expiry and returns the
// duration until then (implements clock.NextFunc).
func (c *inMemoryCache[V]) nextWake(now time.Time) time.Duration {
	var earliest time.Time
	for _, s := range c.shards {
		s.mu.Lock()
		for _, e := range s.items {
			if !e.hasExpiry() {
				continue
			}
			if earliest.IsZero() || e.expiresAt.Before(earliest) {
				earliest = e.expiresAt
			}
		}
		s.mu.Unlock()
	}
	if earliest.IsZero() {
		return time.Hour
	}
	d := earliest.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func (c *inMemoryCache[V]) sweepLoop() {
	for {
		select {
		case <-c.stopCh:
			return
		case <-c.alarm.C():
			c.sweep()
			c.alarm.Rearm()
		case <-c.alarm.Kicked():
			c.alarm.Rearm()
		}
	}
}

func (c *inMemoryCache[V]) sweep() {
	now := c.clock.Now()
	for _, s := range c.shards {
		s.mu.Lock()
		var expired []string
		var exp []*entry[V]
		for k, e := range s.items {
			if c.isExpiredLocked(e, now) {
				expired = append(expired, k)
				exp = append(exp, e)
			}
		}
		for _, k := range expired {
			delete(s.items, k)
		}
		s.mu.Unlock()
		for i, k := range expired {
			c.fireExpired(k, exp[i])
		}
	}
}

// enforceMaxItems evicts the globally oldest-accessed entries (ties broken
// by lowest creation sequence) once the total item count exceeds maxItems.
func (c *inMemoryCache[V]) enforceMaxItems() {
	if c.maxItems <= 0 {
		return
	}
	type keyed struct {
		shard *shard[V]
		key   string
		entry *entry[V]
	}
	var all []keyed
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.items {
			all = append(all, keyed{s, k, e})
		}
		s.mu.Unlock()
	}
	if len(all) <= c.maxItems {
		return
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].entry.lastAccess.Equal(all[j].entry.lastAccess) {
			return all[i].entry.seq < all[j].entry.seq
		}
		return all[i].entry.lastAccess.Before(all[j].entry.lastAccess)
	})
	toEvict := all[:len(all)-c.maxItems]
	for _, k := range toEvict {
		k.shard.mu.Lock()
		if cur, ok := k.shard.items[k.key]; ok && cur == k.entry {
			delete(k.shard.items, k.key)
		}
		k.shard.mu.Unlock()
	}
}

// jsonClone is a reusable Clone function for reference-typed V, performing a
// JSON round-trip through the codec package. Installed via WithJSONClone
// when no cheaper deep-copy exists for V.
func jsonClone[V any](v V) V {
	jc := codec.JsonCodec()
	b, err := jc.EncodeToBytes(v)
	if err != nil {
		return v
	}
	var out V
	if err := jc.DecodeBytes(b, &out); err != nil {
		return v
	}
	return out
}
