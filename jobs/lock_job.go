package jobs

import (
	"context"
	"time"

	"github.com/foundatio-go/foundatio/lock"
)

// lockedJob gates an inner Job's Run behind acquiring a named lock from a
// lock.Provider, so only one instance across a process group runs the job
// at a time.
type lockedJob struct {
	inner       Job
	provider    lock.Provider
	resource    string
	acquireOpts []lock.AcquireOption
}

// JobWithLock wraps inner so each Run first tries to acquire resource from
// provider. Acquisition does not block the scheduling loop waiting for
// another instance to finish: unless acquireOpts overrides it, a single
// immediate attempt is made. A contested lock is not an error: it reports
// Result{Success: true, Message: "lock not acquired"} and counts as one
// completed iteration, so a busy resource never drives a registration's
// error accounting or retry backoff.
func JobWithLock(inner Job, provider lock.Provider, resource string, acquireOpts ...lock.AcquireOption) Job {
	if len(acquireOpts) == 0 {
		acquireOpts = []lock.AcquireOption{lock.WithAcquireTimeout(time.Millisecond)}
	}
	return &lockedJob{inner: inner, provider: provider, resource: resource, acquireOpts: acquireOpts}
}

func (j *lockedJob) Run(ctx context.Context) Result {
	l, err := j.provider.Acquire(ctx, j.resource, j.acquireOpts...)
	if err != nil {
		if err == lock.ErrNotAcquired {
			return SuccessWithMessage("lock not acquired")
		}
		return Failed(err)
	}
	defer func() {
		if relErr := l.Release(context.Background()); relErr != nil {
			logger.WarnF("jobs: failed to release lock %q: %v", j.resource, relErr)
		}
	}()

	return j.inner.Run(ctx)
}
