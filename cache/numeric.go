package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotNumeric is returned by Increment/SetIfHigher/SetIfLower when the
// cache was not instantiated as Cache[int64].
var ErrNotNumeric = errors.New("cache: numeric operation requires Cache[int64]")

// isInt64Cache reports whether V is int64 for this instantiation, without
// reflection: a type assertion against a type parameter is permitted for
// any concrete value of that parameter's interface form.
func isInt64Cache[V any]() bool {
	var zero V
	_, ok := any(zero).(int64)
	return ok
}

// Increment adds amount to the int64 stored at key (default 0 if absent)
// and returns the new value. Only valid on a Cache[int64]; any other V
// returns ErrNotNumeric.
func (c *inMemoryCache[V]) Increment(ctx context.Context, key string, amount int64, ttl ...time.Duration) (int64, error) {
	if !isInt64Cache[V]() {
		return 0, ErrNotNumeric
	}
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	now := c.clock.Now()
	e, ok := s.items[key]
	var cur int64
	if ok && !c.isExpiredLocked(e, now) {
		cur, _ = any(e.value).(int64)
	}
	next := cur + amount
	v, _ := any(next).(V)
	if ok && !c.isExpiredLocked(e, now) {
		e.value = v
		e.lastAccess = now
	} else {
		s.items[key] = &entry[V]{value: v, expiresAt: c.expiryFor(ttlOf(ttl)), lastAccess: now, seq: c.nextSeq()}
	}
	return next, nil
}

// SetIfHigher sets the int64 at key to v if v is greater than the current
// value (or the key is absent), returning the absolute difference applied.
// Only valid on a Cache[int64].
func (c *inMemoryCache[V]) SetIfHigher(ctx context.Context, key string, v int64, ttl ...time.Duration) (int64, error) {
	if !isInt64Cache[V]() {
		return 0, ErrNotNumeric
	}
	return c.setIfCompare(key, v, ttl, func(cur, v int64) bool { return v > cur })
}

// SetIfLower sets the int64 at key to v if v is less than the current
// value (or the key is absent), returning the absolute difference applied.
// Only valid on a Cache[int64].
func (c *inMemoryCache[V]) SetIfLower(ctx context.Context, key string, v int64, ttl ...time.Duration) (int64, error) {
	if !isInt64Cache[V]() {
		return 0, ErrNotNumeric
	}
	return c.setIfCompare(key, v, ttl, func(cur, v int64) bool { return v < cur })
}

func (c *inMemoryCache[V]) setIfCompare(key string, v int64, ttl []time.Duration, should func(cur, v int64) bool) (int64, error) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	now := c.clock.Now()
	e, ok := s.items[key]
	if !ok || c.isExpiredLocked(e, now) {
		nv, _ := any(v).(V)
		s.items[key] = &entry[V]{value: nv, expiresAt: c.expiryFor(ttlOf(ttl)), lastAccess: now, seq: c.nextSeq()}
		return v, nil
	}
	cur, _ := any(e.value).(int64)
	if !should(cur, v) {
		return 0, nil
	}
	diff := v - cur
	if diff < 0 {
		diff = -diff
	}
	nv, _ := any(v).(V)
	e.value = nv
	e.lastAccess = now
	return diff, nil
}
