package jobs

import (
	"time"

	"github.com/foundatio-go/foundatio/lock"
)

// Registration describes how a Job is scheduled and run by a Host.
type Registration struct {
	Name           string
	Schedule       Schedule
	Interval       time.Duration
	CronExpr       string
	IterationLimit int
	InstanceCount  int
	LockProvider   lock.Provider
}

// RegOption configures a Registration.
type RegOption func(*Registration)

// WithName overrides the registration's name. Defaults to a generated
// name when not set.
func WithName(name string) RegOption {
	return func(r *Registration) { r.Name = name }
}

// WithInterval schedules the job to run every d.
func WithInterval(d time.Duration) RegOption {
	return func(r *Registration) { r.Interval = d }
}

// WithCronExpr schedules the job on a 5-field cron expression.
func WithCronExpr(expr string) RegOption {
	return func(r *Registration) { r.CronExpr = expr }
}

// WithSchedule sets an explicit Schedule, overriding Interval/CronExpr.
func WithSchedule(s Schedule) RegOption {
	return func(r *Registration) { r.Schedule = s }
}

// WithIterationLimit caps the number of iterations run before the
// registration stops itself. Zero (the default) means unlimited.
func WithIterationLimit(n int) RegOption {
	return func(r *Registration) { r.IterationLimit = n }
}

// WithInstanceCount runs n independent, concurrently-scheduled copies of
// the job, supervised as a group. Defaults to 1.
func WithInstanceCount(n int) RegOption {
	return func(r *Registration) { r.InstanceCount = n }
}

// WithLockProvider gates each iteration on acquiring a named lock from p,
// for coordinating a single active instance across a process group.
func WithLockProvider(p lock.Provider) RegOption {
	return func(r *Registration) { r.LockProvider = p }
}

func (r *Registration) resolveSchedule() (Schedule, error) {
	if r.Schedule != nil {
		return r.Schedule, nil
	}
	if r.CronExpr != "" {
		return NewCronSchedule(r.CronExpr)
	}
	if r.Interval > 0 {
		return NewIntervalSchedule(r.Interval)
	}
	return nil, ErrNoSchedule
}
