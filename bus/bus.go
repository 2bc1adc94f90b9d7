// Package bus provides a type-routed, in-process publish/subscribe Bus.
package bus

import (
	"container/heap"
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/foundatio-go/foundatio/clock"
	"github.com/foundatio-go/foundatio/l3"
	"github.com/foundatio-go/foundatio/uuid"
)

var logger = l3.Get()

// ErrClosed is returned by Publish/Subscribe once the bus has been Closed.
var ErrClosed = errors.New("bus is closed")

const defaultSubscriberBuffer = 256

// Bus is a type-routed publish/subscribe message bus. Subscribers receive
// every published message whose concrete type is assignable to the type
// the subscriber registered for a handler with.
type Bus interface {
	// Publish delivers msg to every subscriber whose registered type msg is
	// assignable to. With WithDelay, delivery is deferred until it elapses.
	Publish(ctx context.Context, msg any, opts ...PublishOption) error
	// Subscribe registers handler for every published value assignable to
	// a variable of msgType's type. Returns a subscription id for Unsubscribe.
	Subscribe(ctx context.Context, msgType any, handler func(ctx context.Context, msg any), opts ...SubscribeOption) (string, error)
	Unsubscribe(subscriptionID string) error
	Close() error
}

type subscription struct {
	id      string
	typ     reflect.Type
	handler func(ctx context.Context, msg any)
	ch      chan any
	done    chan struct{}
}

type delayedMessage struct {
	typ     reflect.Type
	payload any
	due     time.Time
	index   int
}

type delayedQueue []*delayedMessage

func (q delayedQueue) Len() int            { return len(q) }
func (q delayedQueue) Less(i, j int) bool  { return q[i].due.Before(q[j].due) }
func (q delayedQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index = i; q[j].index = j }
func (q *delayedQueue) Push(x any)         { m := x.(*delayedMessage); m.index = len(*q); *q = append(*q, m) }
func (q *delayedQueue) Pop() any {
	old := *q
	n := len(old)
	m := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return m
}

type inMemoryBus struct {
	cfg *config

	mu   sync.RWMutex
	subs map[string]*subscription

	delayMu sync.Mutex
	delayed delayedQueue
	alarm   *clock.Alarm
	stopCh  chan struct{}
	closed  bool
}

// NewInMemory creates an in-process Bus.
func NewInMemory(opts ...Option) Bus {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	b := &inMemoryBus{
		cfg:    cfg,
		subs:   make(map[string]*subscription),
		stopCh: make(chan struct{}),
	}
	b.alarm = clock.NewAlarm(b.cfg.clock, b.nextWake)
	go b.delayLoop()
	return b
}

func (b *inMemoryBus) Subscribe(ctx context.Context, msgType any, handler func(ctx context.Context, msg any), opts ...SubscribeOption) (string, error) {
	scfg := &subscribeConfig{buffer: defaultSubscriberBuffer}
	for _, o := range opts {
		o(scfg)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", ErrClosed
	}
	id, err := uuid.V4()
	if err != nil {
		return "", err
	}
	s := &subscription{
		id:      id.String(),
		typ:     typeOf(msgType),
		handler: handler,
		ch:      make(chan any, scfg.buffer),
		done:    make(chan struct{}),
	}
	b.subs[s.id] = s
	go b.dispatch(s)
	return s.id, nil
}

func (b *inMemoryBus) Unsubscribe(subscriptionID string) error {
	b.mu.Lock()
	s, ok := b.subs[subscriptionID]
	if ok {
		delete(b.subs, subscriptionID)
	}
	b.mu.Unlock()
	if ok {
		close(s.done)
	}
	return nil
}

// dispatch delivers messages to a single subscriber sequentially, so one
// slow handler never reorders that subscriber's own deliveries.
func (b *inMemoryBus) dispatch(s *subscription) {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.ch:
			b.invoke(s, msg)
		}
	}
}

func (b *inMemoryBus) invoke(s *subscription, msg any) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorF("bus: subscriber handler panicked: %v", r)
		}
	}()
	s.handler(context.Background(), msg)
}

func (b *inMemoryBus) Publish(ctx context.Context, msg any, opts ...PublishOption) error {
	pcfg := &publishConfig{}
	for _, o := range opts {
		o(pcfg)
	}
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	typ := reflect.TypeOf(msg)

	if pcfg.delay > 0 {
		b.delayMu.Lock()
		heap.Push(&b.delayed, &delayedMessage{typ: typ, payload: msg, due: b.cfg.clock.Now().Add(pcfg.delay)})
		b.delayMu.Unlock()
		b.alarm.Kick()
		return nil
	}

	b.deliver(typ, msg)
	return nil
}

func (b *inMemoryBus) deliver(typ reflect.Type, msg any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !assignable(typ, s.typ) {
			continue
		}
		payload := b.cfg.clone(msg)
		select {
		case s.ch <- payload:
		default:
			logger.WarnF("bus: subscriber %s buffer full, dropping message", s.id)
		}
	}
}

// typeOf returns the reflect.Type a subscriber matches against. Passing a
// nil interface pointer, e.g. (*MyInterface)(nil), registers interest in
// that interface; any other value registers interest in its concrete type.
func typeOf(msgType any) reflect.Type {
	t := reflect.TypeOf(msgType)
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Interface {
		return t.Elem()
	}
	return t
}

// assignable reports whether a value of concrete type typ can be assigned
// to a variable of the subscriber's registered type subTyp — the Go-native
// replacement for a runtime isAssignableFrom check.
func assignable(typ, subTyp reflect.Type) bool {
	if typ == nil || subTyp == nil {
		return false
	}
	if subTyp.Kind() == reflect.Interface {
		return typ.Implements(subTyp)
	}
	return typ.AssignableTo(subTyp)
}

func (b *inMemoryBus) nextWake(now time.Time) time.Duration {
	b.delayMu.Lock()
	defer b.delayMu.Unlock()
	if len(b.delayed) == 0 {
		return time.Hour
	}
	d := b.delayed[0].due.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func (b *inMemoryBus) delayLoop() {
	for {
		select {
		case <-b.stopCh:
			return
		case <-b.alarm.C():
			b.fireDue()
			b.alarm.Rearm()
		case <-b.alarm.Kicked():
			b.alarm.Rearm()
		}
	}
}

func (b *inMemoryBus) fireDue() {
	now := b.cfg.clock.Now()
	var due []*delayedMessage
	b.delayMu.Lock()
	for len(b.delayed) > 0 && !b.delayed[0].due.After(now) {
		due = append(due, heap.Pop(&b.delayed).(*delayedMessage))
	}
	b.delayMu.Unlock()
	for _, m := range due {
		b.deliver(m.typ, m.payload)
	}
}

func (b *inMemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.subs = make(map[string]*subscription)
	b.mu.Unlock()

	for _, s := range subs {
		close(s.done)
	}
	b.delayMu.Lock()
	b.delayed = nil
	b.delayMu.Unlock()
	close(b.stopCh)
	b.alarm.Stop()
	return nil
}
