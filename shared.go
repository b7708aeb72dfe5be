package multiplexer

import (
	"sync"
	"sync/atomic"
)

// Shared is the single instance of spec.md §3's "Shared state", held by
// every worker for the scheduler's lifetime. Construction, launch, and
// shutdown follow the teacher's habit of a single root object owning its
// collaborators outright (go-eventloop's Loop owning its queues, state,
// and metrics) rather than wiring them through a separate container.
type Shared struct {
	size int

	remotes []remote
	inject  *Inject
	owned   *OwnedTasks
	idle    *idle

	workers []*Worker

	threadlessMu sync.Mutex
	threadless   []*Worker

	shutdownMu    sync.Mutex
	shutdownCores []*Core

	beforePark  func(workerIndex int)
	afterUnpark func(workerIndex int)

	workerMetrics []*WorkerMetrics
	metrics       *SchedulerMetrics

	driver        Driver
	blockingSpawn BlockingSpawner

	log *eventLog

	launched atomic.Bool
	closed   atomic.Bool
}

// New constructs a Shared scheduler core with the given options. The
// returned value is ready for [Shared.BindNewTask] but no worker
// goroutines are running until [Shared.Launch] is called, mirroring the
// two-phase create/launch split of spec.md §6 ("Construction" vs
// "Launch").
func New(opts ...Option) *Shared {
	cfg := resolveOptions(opts)
	n := cfg.size

	s := &Shared{
		size:          n,
		inject:        NewInject(),
		owned:         NewOwnedTasks(),
		idle:          newIdle(n),
		beforePark:    cfg.beforePark,
		afterUnpark:   cfg.afterUnpark,
		driver:        cfg.driver,
		blockingSpawn: cfg.blockingSpawn,
		log:           newEventLog(cfg.logger),
	}
	if s.blockingSpawn == nil {
		s.blockingSpawn = defaultBlockingSpawner
	}

	s.remotes = make([]remote, n)
	s.workers = make([]*Worker, n)
	s.workerMetrics = make([]*WorkerMetrics, n)
	s.threadless = make([]*Worker, 0, n)

	for i := 0; i < n; i++ {
		wm := newWorkerMetrics()
		s.workerMetrics[i] = wm

		parker, unparker := NewParker(s.driver)

		w := &Worker{shared: s, index: i}
		core := newCore(i, w, parker, wm)
		w.putCore(core)

		s.workers[i] = w
		s.remotes[i] = remote{stealFrom: core.runQueue, unparker: unparker}
		s.threadless = append(s.threadless, w)
	}

	s.metrics = newSchedulerMetrics(s.workerMetrics, s.idle, s.inject)

	return s
}

// Launch starts the initial worker goroutines: max(1, N/2) of them,
// claimed from the threadless list (spec.md §4.15). The remaining half
// stay threadless, reserved so BlockInPlace and notify-driven wakes can
// attach a goroutine to them on demand. Only the first call does anything;
// later calls return immediately.
func (s *Shared) Launch() {
	if !s.launched.CompareAndSwap(false, true) {
		return
	}
	initial := s.size / 2
	if initial < 1 {
		initial = 1
	}
	for i := 0; i < initial; i++ {
		w, ok := s.claimThreadlessWorker()
		if !ok {
			break
		}
		s.spawnWorker(w)
	}
	s.log.launched(s.size)
}

func (s *Shared) spawnWorker(w *Worker) {
	s.log.workerSpawned(w.index)
	go w.Run()
}

// claimThreadlessWorker scans the threadless list for one whose unparker
// can still transition out of the threadless state (spec.md §4.15). It
// returns false if every worker is already attached.
func (s *Shared) claimThreadlessWorker() (*Worker, bool) {
	s.threadlessMu.Lock()
	defer s.threadlessMu.Unlock()
	for i, w := range s.threadless {
		if s.remotes[w.index].unparker.TransitionFromThreadless() {
			s.threadless[i] = s.threadless[len(s.threadless)-1]
			s.threadless = s.threadless[:len(s.threadless)-1]
			s.idle.UnparkWorkerByID(w.index)
			return w, true
		}
	}
	return nil, false
}

// BindNewTask admits task into the owned-task registry and, since the
// caller is (by construction of this package's API) never itself an
// active worker of this scheduler, schedules it via the injection queue
// (spec.md §6 "Task submission"). If the scheduler is already closed the
// returned handle is cancelled and the task is never enqueued (spec.md §7
// "shutdown-race bind").
func (s *Shared) BindNewTask(task Task) JoinHandle {
	handle, n := s.owned.Bind(task)
	if handle.Cancelled {
		return handle
	}
	if !s.inject.Push(n) {
		// Close has already closed inject but no core has closed owned
		// yet: release n and report the cancellation.
		s.owned.Remove(n)
		return JoinHandle{Cancelled: true}
	}
	s.notifyParked()
	return handle
}

// Schedule re-admits an already-bound task for execution, callable from
// any goroutine (spec.md §4.10). fromCore, when non-nil, must be the Core
// currently executing on the calling goroutine (as handed to [Task.Run]);
// passing it enables the local fast path (§4.11) instead of round-
// tripping through the injection queue. Go has no portable goroutine-
// local storage to detect this implicitly, so callers that already hold
// their Core (the common case: a task rescheduling itself or a sibling
// from within Run) thread it through explicitly — see SPEC_FULL.md's
// Open Question Resolution for the "thread-local active worker" note.
func (s *Shared) Schedule(fromCore *Core, n *Notified, isYield bool) {
	if fromCore != nil {
		s.localSchedule(fromCore, n, isYield)
		return
	}
	s.scheduleRemote(n, isYield)
}

// localSchedule implements spec.md §4.11.
func (s *Shared) localSchedule(core *Core, n *Notified, isYield bool) {
	core.metrics.RecordLocalSchedule()

	if isYield {
		core.runQueue.PushBack(n, s.inject, core.metrics)
		s.notifyParked()
		return
	}

	displaced := core.lifoSlot
	core.lifoSlot = n
	if displaced != nil {
		core.runQueue.PushBack(displaced, s.inject, core.metrics)
		if core.park != nil {
			s.notifyParked()
		}
	}
}

// scheduleRemote implements the "otherwise" branch of spec.md §4.10: push
// to inject, then notify.
func (s *Shared) scheduleRemote(n *Notified, _ bool) {
	if !s.inject.Push(n) {
		// Closed: treat as immediate cancellation per spec.md §7.
		s.owned.Remove(n)
		return
	}
	s.notifyParked()
}

// notifyParked implements spec.md §4.12: ask the idle coordinator for a
// worker to wake; if the chosen worker was threadless, spawn a goroutine
// for it immediately.
func (s *Shared) notifyParked() {
	idx, ok := s.idle.WorkerToNotify()
	if !ok {
		return
	}
	s.log.workerUnparked(idx)
	if s.remotes[idx].unparker.Unpark() {
		s.threadlessMu.Lock()
		for i, w := range s.threadless {
			if w.index == idx {
				s.threadless[i] = s.threadless[len(s.threadless)-1]
				s.threadless = s.threadless[:len(s.threadless)-1]
				break
			}
		}
		s.threadlessMu.Unlock()
		s.spawnWorker(s.workers[idx])
	}
}

// Close begins shutdown (spec.md §4.14). Idempotent: only the first call
// drains threadless workers and wakes sleeping ones; subsequent calls are
// no-ops. Close does not block for every worker to finish exiting; callers
// that need that guarantee should use a mechanism layered atop the
// optional afterUnpark/logging hooks or their own WaitGroup around
// [Worker.Run], since spec.md leaves worker-join synchronization to the
// embedding runtime handle (out of scope, see package doc).
func (s *Shared) Close() {
	if !s.inject.Close() {
		return
	}
	s.log.closing()

	for {
		w, ok := s.claimThreadlessWorker()
		if !ok {
			break
		}
		core := w.takeCore()
		if core == nil {
			continue
		}
		s.preShutdown(core)
		s.shutdown(core)
	}

	for _, r := range s.remotes {
		r.unparker.Unpark()
	}
}

// preShutdown implements the worker-local half of spec.md §4.14: close
// the owned set (idempotent) and drive every still-live task to
// cancellation. Cancellation here means releasing the Notified from the
// owned set; the task's own Run is never invoked again.
func (s *Shared) preShutdown(core *Core) {
	core.isShutdown = true
	for _, n := range s.owned.CloseAndShutdownAll() {
		_ = n
	}
}

// shutdown implements Shared.shutdown(core) from spec.md §4.14: stage
// core in the shutdown list; once every core has arrived, drain all of
// them and the injection queue.
func (s *Shared) shutdown(core *Core) {
	s.shutdownMu.Lock()
	s.shutdownCores = append(s.shutdownCores, core)
	last := len(s.shutdownCores) == s.size
	cores := s.shutdownCores
	s.shutdownMu.Unlock()

	if !last {
		return
	}

	for _, c := range cores {
		c.lifoSlot = nil
		for {
			if _, ok := c.runQueue.Pop(); !ok {
				break
			}
		}
		_ = c.park.Close()
	}
	for {
		if _, ok := s.inject.Pop(); !ok {
			break
		}
	}

	s.closed.Store(true)
	s.log.closed(len(cores))
}

// IsClosed reports whether Close has been called.
func (s *Shared) IsClosed() bool {
	return s.inject.IsClosed()
}

// Metrics returns the scheduler-wide and per-worker published counters
// (spec.md §6 "Metrics").
func (s *Shared) Metrics() *SchedulerMetrics {
	return s.metrics
}

// Size returns the configured worker count N.
func (s *Shared) Size() int {
	return s.size
}
