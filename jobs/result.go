package jobs

// Result is the outcome of a single job iteration.
type Result struct {
	Success   bool
	Message   string
	Cancelled bool
	Err       error
}

// Success reports a successful iteration with no message.
func Success() Result {
	return Result{Success: true}
}

// SuccessWithMessage reports a successful iteration carrying a status message.
func SuccessWithMessage(msg string) Result {
	return Result{Success: true, Message: msg}
}

// FailedWithMessage reports a failed iteration described by msg.
func FailedWithMessage(msg string) Result {
	return Result{Success: false, Message: msg}
}

// Failed reports a failed iteration carrying err.
func Failed(err error) Result {
	return Result{Success: false, Err: err}
}

// Cancelled reports an iteration that stopped because its context was
// canceled mid-run.
func Cancelled() Result {
	return Result{Cancelled: true}
}
