package multiplexer

import (
	"sync"
	"sync/atomic"
	"time"
)

// WorkerMetrics is the published counter set for a single worker. The
// counters are atomics updated directly as each event happens; they are
// not batched. Only the local queue depth is published on maintenance
// ticks. Field layout and the split between atomic counters and
// a mutex-guarded latency estimator follows the teacher's Metrics /
// LatencyMetrics split (go-eventloop/metrics.go), substituting poll
// duration for the loop's task-latency sample.
type WorkerMetrics struct {
	_ [64]byte

	parkCount          atomic.Uint64
	stealCount         atomic.Uint64
	pollCount          atomic.Uint64
	localScheduleCount atomic.Uint64
	overflowCount      atomic.Uint64
	busyNanos          atomic.Uint64

	_ [8]byte

	latencyMu  sync.Mutex
	latency    *multiQuantile
	localDepth atomic.Int64
}

func newWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		latency: newMultiQuantile(0.50, 0.90, 0.99),
	}
}

// RecordPoll folds one task-poll duration into the percentile estimator
// and bumps the poll/busy counters, called once per Task.Run in the run
// loop.
func (m *WorkerMetrics) RecordPoll(d time.Duration) {
	m.pollCount.Add(1)
	m.busyNanos.Add(uint64(d))
	m.latencyMu.Lock()
	m.latency.Update(float64(d))
	m.latencyMu.Unlock()
}

// RecordPark increments the park counter, called once per successful
// transition into the Parked state.
func (m *WorkerMetrics) RecordPark() {
	m.parkCount.Add(1)
}

// RecordSteal adds n to the cumulative count of tasks pulled from peers.
func (m *WorkerMetrics) RecordSteal(n int) {
	if n > 0 {
		m.stealCount.Add(uint64(n))
	}
}

// RecordLocalSchedule increments the count of tasks scheduled directly
// into this worker's LIFO slot or local queue (as opposed to overflow or
// cross-worker scheduling).
func (m *WorkerMetrics) RecordLocalSchedule() {
	m.localScheduleCount.Add(1)
}

// RecordOverflow increments the count of local-queue-full pushes that
// spilled into the injection queue.
func (m *WorkerMetrics) RecordOverflow() {
	m.overflowCount.Add(1)
}

// SetLocalQueueDepth publishes the current local run-queue length, read
// by Shared.WorkerLocalQueueDepth.
func (m *WorkerMetrics) SetLocalQueueDepth(n int) {
	m.localDepth.Store(int64(n))
}

// ParkCount returns the cumulative number of times this worker parked.
func (m *WorkerMetrics) ParkCount() uint64 { return m.parkCount.Load() }

// StealCount returns the cumulative number of tasks stolen by this
// worker from peers.
func (m *WorkerMetrics) StealCount() uint64 { return m.stealCount.Load() }

// PollCount returns the cumulative number of tasks polled to completion
// or yield by this worker.
func (m *WorkerMetrics) PollCount() uint64 { return m.pollCount.Load() }

// LocalScheduleCount returns the cumulative count of tasks scheduled
// directly onto this worker without going through the injection queue.
func (m *WorkerMetrics) LocalScheduleCount() uint64 { return m.localScheduleCount.Load() }

// OverflowCount returns the cumulative count of local-queue overflow
// events for this worker.
func (m *WorkerMetrics) OverflowCount() uint64 { return m.overflowCount.Load() }

// BusyDuration returns the cumulative time this worker has spent inside
// Task.Run.
func (m *WorkerMetrics) BusyDuration() time.Duration {
	return time.Duration(m.busyNanos.Load())
}

// LocalQueueDepth returns the last-published local run-queue length.
func (m *WorkerMetrics) LocalQueueDepth() int {
	return int(m.localDepth.Load())
}

// PollLatencyPercentile returns the P50 (0), P90 (1), or P99 (2)
// estimate of task-poll duration, in nanoseconds.
func (m *WorkerMetrics) PollLatencyPercentile(i int) time.Duration {
	m.latencyMu.Lock()
	defer m.latencyMu.Unlock()
	return time.Duration(m.latency.Quantile(i))
}

// SchedulerMetrics aggregates the counters every worker publishes plus
// scheduler-wide state not attributable to a single worker (injection
// queue depth, currently searching worker count).
type SchedulerMetrics struct {
	workers []*WorkerMetrics
	idle    *idle
	inject  *Inject
}

func newSchedulerMetrics(workers []*WorkerMetrics, idle *idle, inject *Inject) *SchedulerMetrics {
	return &SchedulerMetrics{workers: workers, idle: idle, inject: inject}
}

// Worker returns the published counters for worker i.
func (s *SchedulerMetrics) Worker(i int) *WorkerMetrics {
	return s.workers[i]
}

// NumWorkers returns the configured worker count.
func (s *SchedulerMetrics) NumWorkers() int {
	return len(s.workers)
}

// InjectionQueueDepth returns a point-in-time estimate of the injection
// queue's length (spec.md §6, "injection_queue_depth").
func (s *SchedulerMetrics) InjectionQueueDepth() int {
	return s.inject.Len()
}

// WorkerLocalQueueDepth returns a point-in-time estimate of worker i's
// local run-queue length (spec.md §6, "worker_local_queue_depth(i)").
func (s *SchedulerMetrics) WorkerLocalQueueDepth(i int) int {
	return s.workers[i].LocalQueueDepth()
}

// NumSearching returns the current count of workers in the searching
// state.
func (s *SchedulerMetrics) NumSearching() int {
	return s.idle.NumSearching()
}

// TotalStealCount sums StealCount across every worker.
func (s *SchedulerMetrics) TotalStealCount() uint64 {
	var total uint64
	for _, w := range s.workers {
		total += w.StealCount()
	}
	return total
}

// TotalOverflowCount sums OverflowCount across every worker.
func (s *SchedulerMetrics) TotalOverflowCount() uint64 {
	var total uint64
	for _, w := range s.workers {
		total += w.OverflowCount()
	}
	return total
}
