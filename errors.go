package multiplexer

import (
	"errors"
)

// Sentinel errors of the scheduler.
var (
	// ErrSchedulerClosed names the condition of a task submitted after
	// [Shared.Close] has begun. No function in this package returns it:
	// [Shared.BindNewTask] reports that case through a [JoinHandle] whose
	// Cancelled field is true, and the task is never enqueued.
	ErrSchedulerClosed = errors.New("multiplexer: scheduler is closed")

	// ErrBlockingOffRuntime is returned by [BlockInPlace] when it is
	// given a nil core. A non-nil core passed from a goroutine that is not
	// running it is not detected. It is a programmer error, not a
	// recoverable condition.
	ErrBlockingOffRuntime = errors.New("multiplexer: can only call BlockInPlace on a goroutine owned by this scheduler")
)
