package multiplexer

import (
	"math/rand"
	"sync/atomic"
)

// Core is the per-worker state described by spec.md §3 ("Core state"),
// exclusively owned by at most one goroutine at a time (invariant I1):
// either a [Worker]'s atomic cell, the goroutine currently running it, or
// the scheduler's shutdown list. Field layout mirrors the teacher's habit
// of grouping a component's mutable state into one plain struct (e.g.
// go-eventloop's Loop holding its queues, state, and metrics together)
// rather than spreading it across several small objects.
type Core struct {
	index int

	// tick is a free-running counter, incremented once per run-loop
	// iteration; maintenance and injection-queue fairness checks fire
	// every globalPollInterval ticks (spec.md §4.8 step 1, §4.10).
	tick uint8

	// lifoSlot holds at most one task, consulted before runQueue on the
	// next-task path (spec.md §4.8 step 3 "LIFO fast path").
	lifoSlot *Notified

	runQueue *localQueue

	isSearching bool
	isShutdown  bool

	// park is the worker's sleep primitive; see parker.go. runloop.go's
	// maintenance and park steps call it in place: it stays in the Core
	// while the worker sleeps and is never taken out.
	park *Parker

	metrics *WorkerMetrics

	rand *rand.Rand

	// worker is a back-reference to the slot this core is normally parked
	// in between goroutines; BlockInPlace uses it to hand the core to a
	// replacement goroutine (spec.md §4.13).
	worker *Worker

	// inBlockInPlace guards against a nested BlockInPlace call on the same
	// goroutine attempting a second, redundant hand-off (spec.md §4.13's
	// "nested block-in-place" row): a nested call just invokes f directly.
	// Reset whenever a core is freshly taken out of its Worker's cell
	// (see [Worker.Run]), since that always marks the start of a new
	// top-level worker loop rather than a continuation of one goroutine's
	// nested call stack.
	inBlockInPlace bool
}

func newCore(index int, worker *Worker, park *Parker, metrics *WorkerMetrics) *Core {
	return &Core{
		index:    index,
		runQueue: newLocalQueue(),
		park:     park,
		metrics:  metrics,
		worker:   worker,
		rand:     rand.New(rand.NewSource(int64(uint64(index)*0x9E3779B97F4A7C15 + 1))),
	}
}

// Index returns this core's stable worker index in [0, N).
func (c *Core) Index() int { return c.index }

// Metrics returns the published counter set for this core's worker.
func (c *Core) Metrics() *WorkerMetrics { return c.metrics }

// Schedule re-admits n for execution using this core as the local fast
// path (spec.md §4.10/§4.11), letting a task reschedule itself or a
// sibling from within its own Run method without round-tripping through
// the injection queue. isYield should be true when n is the same task
// yielding cooperatively (placed at the back of the run queue rather than
// the LIFO slot).
func (c *Core) Schedule(n *Notified, isYield bool) {
	c.worker.shared.Schedule(c, n, isYield)
}

// remote is the cross-worker-visible half of a worker: a steal handle
// into its local queue plus its unparker, held in Shared.remotes and
// consulted by every other worker during the steal/notify steps (spec.md
// §3 "Shared state", "remotes[0..N] of (steal-handle, unparker) pairs").
type remote struct {
	stealFrom *localQueue
	unparker  *Unparker
}

// Worker is the shared, one-per-slot object spec.md §3 describes: it
// holds a reference to [Shared], its stable index, and a single-slot
// atomic cell for its [Core], used during the block-in-place hand-off
// (C9) to pass ownership of the core between goroutines without a lock.
type Worker struct {
	shared *Shared
	index  int

	// cell holds the Core when it is not actively being run by a
	// goroutine: either freshly constructed, or returned by a
	// hand-off. A nil load means some goroutine currently holds it.
	cell atomic.Pointer[Core]
}

// Index returns this worker's stable index in [0, N).
func (w *Worker) Index() int { return w.index }

// takeCore removes and returns the Core from the slot, or nil if the
// slot was already empty (another goroutine is running it, or it was
// moved to the shutdown list).
func (w *Worker) takeCore() *Core {
	return w.cell.Swap(nil)
}

// putCore returns ownership of core to the slot.
func (w *Worker) putCore(core *Core) {
	w.cell.Store(core)
}
