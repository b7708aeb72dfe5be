package multiplexer

// RunResult is the outcome of driving a [Task] one step.
type RunResult uint8

const (
	// Completed means the task finished; the run loop releases it from
	// the owned set, and it must never be scheduled again.
	Completed RunResult = iota
	// Yielded means the task cooperatively suspended and may be
	// scheduled again later, either by itself (via [Shared.Schedule])
	// or by another task.
	Yielded
	// HandedOff means Run called [BlockInPlace] and, by the time f
	// returned, the replacement goroutine it spawned was still the one
	// actively driving core as the worker. A task must return HandedOff
	// exactly when the handedOff result of [BlockInPlace] was true, and
	// must not touch core (directly, or via [Core.Schedule]) again after
	// returning it: ownership of core already belongs to another
	// goroutine by that point.
	HandedOff
)

// Task is the opaque, schedulable unit the core drives. The core never
// inspects task internals beyond this contract: it calls Run until the
// task completes, and otherwise only moves the Task between queues.
//
// The real poll/completion machinery of a production runtime is out of
// scope for this package (see package doc); Task is the narrowest surface
// the run loop needs in order to compile and be exercised by tests.
type Task interface {
	// Run drives the task until it either completes or yields by
	// cooperative means. core is the Core currently executing the task,
	// made available so a task's own scheduling callbacks (invoked
	// synchronously from within Run, e.g. when a channel send wakes a
	// waiter) can observe the local fast path.
	Run(core *Core) RunResult
}

// TaskFunc adapts a plain function to [Task]. Each call to Run invokes fn
// once and reports Completed; it never yields. It exists for tests and the
// bundled example command, analogous to how callers of the teacher event
// loop hand a plain func() to Submit.
type TaskFunc func()

// Run implements Task.
func (f TaskFunc) Run(*Core) RunResult {
	f()
	return Completed
}

// YieldingTask adapts a step function that reports its own completion,
// letting tests and demos build a task that yields cooperatively across
// multiple Run calls (e.g. the ping-pong LIFO scenario in spec.md §8).
type YieldingTask func() RunResult

// Run implements Task.
func (f YieldingTask) Run(*Core) RunResult {
	return f()
}

// coreAwareTask adapts a step function taking the executing Core, letting
// a task observe its own Core without a separate adapter type. Used by
// tests and the demo command, analogous to how the teacher lets callers
// pass a plain closure into Submit.
type coreAwareTask func(core *Core) RunResult

func (f coreAwareTask) Run(core *Core) RunResult { return f(core) }

// NewTask adapts run into a [Task], giving it direct access to the Core
// it executes on (e.g. to call [Core.Schedule] when yielding).
func NewTask(run func(core *Core) RunResult) Task {
	return coreAwareTask(run)
}

// Notified is a Task admitted into [OwnedTasks] and, from there, into
// either a worker's local queue or [Inject]. It carries the bookkeeping
// the owned set needs to cancel a task that never ran.
type Notified struct {
	id   uint64
	task Task
}

// Task returns the wrapped task.
func (n *Notified) Task() Task { return n.task }

// JoinHandle is returned by [Shared.BindNewTask]. It reflects whether the
// task was cancelled immediately because it was bound after shutdown.
type JoinHandle struct {
	// Cancelled is true if the task was cancelled at submission because
	// the scheduler was already closed (spec.md §7, "shutdown-race bind"):
	// it was either never admitted to the owned set, or released from it
	// again before being enqueued.
	Cancelled bool
}
