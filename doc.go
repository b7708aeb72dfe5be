// Package multiplexer implements the core of a multi-threaded, work-stealing
// task scheduler for a cooperative asynchronous runtime.
//
// # Architecture
//
// A fixed pool of N worker goroutines ([Worker]) each own a bounded local
// run queue ([localQueue]) with a single-entry LIFO fast slot, and share an
// unbounded injection queue ([Inject]) for cross-runtime submissions and
// local-queue overflow. An [idle] coordinator tracks which workers are
// searching for work or parked, so that at most one worker is woken per
// schedule event and no more than half the pool (rounded up) searches
// concurrently.
//
// Any worker may temporarily hand its [Core] off to a freshly spawned
// goroutine in order to perform a blocking call ([BlockInPlace]) without
// stalling the rest of the pool; the core is reclaimed afterward if it is
// still available.
//
// # What this package does not do
//
// The task representation and its poll/completion machinery, the I/O and
// timer drivers, and the blocking-goroutine spawner are external
// collaborators referenced only through narrow interfaces ([Task],
// [BlockingSpawner], [Driver]). This package does not implement
// preemption (execution is cooperative at task yield points), strict
// global FIFO ordering, dynamic resizing of the worker set, or priorities.
//
// # Thread safety
//
// [Shared] is safe for concurrent use by any number of goroutines. A [Core]
// is never shared: at any instant it is owned by exactly one goroutine,
// moving between a worker's atomic cell, the goroutine running it, and
// the shutdown-cores list only via the hand-off points described in the method
// documentation below.
package multiplexer
