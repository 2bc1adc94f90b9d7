package jobs

import "errors"

var (
	// ErrInvalidInterval is returned when an interval duration is not positive.
	ErrInvalidInterval = errors.New("jobs: invalid interval")
	// ErrInvalidDelay is returned when a one-shot delay is negative.
	ErrInvalidDelay = errors.New("jobs: invalid delay")
	// ErrInvalidCronExpr is returned when a cron expression is malformed.
	ErrInvalidCronExpr = errors.New("jobs: invalid cron expression")
	// ErrNoSchedule is returned when a Registration specifies neither
	// Interval, CronExpr, nor an explicit Schedule.
	ErrNoSchedule = errors.New("jobs: registration has no schedule")
	// ErrAlreadyRunning is returned by Start on a Host that is already running.
	ErrAlreadyRunning = errors.New("jobs: host already running")
	// ErrNotRunning is returned by Stop on a Host that was never started.
	ErrNotRunning = errors.New("jobs: host not running")
)
