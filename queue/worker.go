package queue

import (
	"context"
	"time"

	"github.com/foundatio-go/foundatio/pool"
)

// WorkerOption configures StartWorking.
type WorkerOption func(*workerConfig)

type workerConfig struct {
	workerCount    int
	autoComplete   bool
	dequeueTimeout time.Duration
}

func defaultWorkerConfig() *workerConfig {
	return &workerConfig{
		workerCount:    1,
		autoComplete:   true,
		dequeueTimeout: time.Second,
	}
}

// WithWorkerCount sets how many cooperative workers pump the queue.
func WithWorkerCount(n int) WorkerOption {
	return func(cfg *workerConfig) {
		if n > 0 {
			cfg.workerCount = n
		}
	}
}

// WithAutoComplete controls whether a successful handler call automatically
// completes the entry (the default). When false, the handler is
// responsible for calling Complete itself; a handler error still abandons
// the entry.
func WithAutoComplete(auto bool) WorkerOption {
	return func(cfg *workerConfig) { cfg.autoComplete = auto }
}

// WithDequeueTimeout sets how long each worker's Dequeue call blocks before
// looping to re-check for shutdown.
func WithDequeueTimeout(d time.Duration) WorkerOption {
	return func(cfg *workerConfig) { cfg.dequeueTimeout = d }
}

type workerPump[T any] struct {
	supervisor *pool.Supervisor
}

func (p *workerPump[T]) stop() {
	p.supervisor.Stop()
}

// StartWorking spawns workerCount goroutines, each looping
// dequeue -> handler -> (autoComplete ? complete : nothing), supervised by
// a pool.Supervisor so Close can cancel and drain them.
func (q *inMemoryQueue[T]) StartWorking(ctx context.Context, handler func(ctx context.Context, e *Entry[T]) error, opts ...WorkerOption) error {
	wcfg := defaultWorkerConfig()
	for _, o := range opts {
		o(wcfg)
	}

	sup := pool.NewSupervisor()
	q.mu.Lock()
	q.workers = &workerPump[T]{supervisor: sup}
	q.mu.Unlock()

	return sup.Start(ctx, wcfg.workerCount, func(runCtx context.Context) {
		q.pumpOnce(runCtx, handler, wcfg)
	})
}

func (q *inMemoryQueue[T]) pumpOnce(ctx context.Context, handler func(ctx context.Context, e *Entry[T]) error, wcfg *workerConfig) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		e, err := q.Dequeue(ctx, wcfg.dequeueTimeout)
		if err != nil {
			return // context canceled or queue closed
		}
		if e == nil {
			continue // timed out waiting for work, loop and re-check ctx
		}

		if hErr := handler(ctx, e); hErr != nil {
			q.mu.Lock()
			q.stats.Errors++
			q.mu.Unlock()
			if abErr := q.Abandon(ctx, e); abErr != nil {
				logger.ErrorF("queue: abandon after handler error failed for entry %s: %v", e.ID, abErr)
			}
			continue
		}

		if wcfg.autoComplete {
			if cErr := q.Complete(ctx, e); cErr != nil {
				q.mu.Lock()
				q.stats.Errors++
				q.mu.Unlock()
				logger.ErrorF("queue: complete failed for entry %s: %v", e.ID, cErr)
			}
		}
	}
}
