package jobs

import "context"

// Job is a single unit of recurring work. Run is called once per iteration
// of the schedule the Job is registered under.
type Job interface {
	Run(ctx context.Context) Result
}

// JobFunc adapts a plain function to the Job interface.
type JobFunc func(ctx context.Context) Result

// Run calls f.
func (f JobFunc) Run(ctx context.Context) Result {
	return f(ctx)
}
