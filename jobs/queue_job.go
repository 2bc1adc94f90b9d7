package jobs

import (
	"context"
	"time"

	"github.com/foundatio-go/foundatio/queue"
)

// QueueJob adapts a queue.Queue[T] into a Job: each Run dequeues a single
// entry and hands it to Process.
type QueueJob[T any] struct {
	Queue          queue.Queue[T]
	Process        func(ctx context.Context, e *queue.Entry[T]) error
	DequeueTimeout time.Duration
	AutoComplete   bool
}

// NewQueueJob builds a QueueJob with a 1 second default dequeue timeout and
// AutoComplete enabled.
func NewQueueJob[T any](q queue.Queue[T], process func(ctx context.Context, e *queue.Entry[T]) error) *QueueJob[T] {
	return &QueueJob[T]{
		Queue:          q,
		Process:        process,
		DequeueTimeout: time.Second,
		AutoComplete:   true,
	}
}

// Run dequeues and processes one entry. An empty queue after
// DequeueTimeout reports Success, not an error.
func (j *QueueJob[T]) Run(ctx context.Context) Result {
	e, err := j.Queue.Dequeue(ctx, j.DequeueTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return Cancelled()
		}
		return Failed(err)
	}
	if e == nil {
		return Success()
	}

	if procErr := j.Process(ctx, e); procErr != nil {
		if j.AutoComplete {
			if abErr := j.Queue.Abandon(ctx, e); abErr != nil {
				logger.WarnF("jobs: abandon after process error failed for entry %s: %v", e.ID, abErr)
			}
		}
		return Failed(procErr)
	}

	if j.AutoComplete {
		if cErr := j.Queue.Complete(ctx, e); cErr != nil {
			return Failed(cErr)
		}
	}
	return SuccessWithMessage("processed entry " + e.ID)
}
