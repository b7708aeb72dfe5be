package multiplexer

import (
	"sync"
	"sync/atomic"
)

// idle is the coordinator behind spec.md §4.5 (C5): it tracks how many
// workers are searching for work and which are parked, so that work
// producers wake at most one worker per event and the searcher cap
// (invariant I4, property P3) holds at every observable point.
//
// The two hot counters are split onto their own cache lines, the same
// cache-line-padding idiom the teacher's FastState uses for its single
// state word (go-eventloop/state.go), since numSearching is read on every
// task completion and numUnparked on every park/unpark.
type idle struct {
	_            [64]byte
	numSearching atomic.Uint32
	_            [60]byte
	numUnparked  atomic.Uint32
	_            [60]byte

	numWorkers uint32

	parkedMu sync.Mutex
	parked   []uint32 // stack of parked worker indices
	isParked []bool   // indexed by worker; kept in sync with parked
}

func newIdle(numWorkers int) *idle {
	x := &idle{
		numWorkers: uint32(numWorkers),
		isParked:   make([]bool, numWorkers),
	}
	x.numUnparked.Store(uint32(numWorkers))
	return x
}

// searchCap returns ceil(N/2), the maximum number of concurrently
// searching workers (invariant I4).
func (x *idle) searchCap() uint32 {
	return (x.numWorkers + 1) / 2
}

// TransitionWorkerToSearching attempts to enter the searching state for
// one worker. Returns false (and performs no mutation) if the searcher
// cap is already reached, per spec.md §4.5.
func (x *idle) TransitionWorkerToSearching() bool {
	for {
		cur := x.numSearching.Load()
		if cur >= x.searchCap() {
			return false
		}
		if x.numSearching.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// TransitionWorkerFromSearching decrements the searcher count. It returns
// true iff the caller was the last searching worker, in which case the
// caller must wake someone because work was just found and no one else is
// looking (spec.md §4.5, §4.7 step 2).
func (x *idle) TransitionWorkerFromSearching() bool {
	prev := x.numSearching.Add(^uint32(0)) // decrement
	// Add returns the new value; "prev" here is actually the post-decrement
	// value, so "was last" means it dropped from 1 to 0.
	return prev+1 == 1
}

// TransitionWorkerToParked records worker index as parked. It returns
// true iff this worker was the last searcher, in which case the caller
// must re-scan for pending work before truly sleeping (spec.md §4.9 step
// 2, notify_if_work_pending).
func (x *idle) TransitionWorkerToParked(index int, wasSearching bool) bool {
	x.parkedMu.Lock()
	if !x.isParked[index] {
		x.isParked[index] = true
		x.parked = append(x.parked, uint32(index))
	}
	x.numUnparked.Add(^uint32(0))
	x.parkedMu.Unlock()

	if wasSearching {
		return x.TransitionWorkerFromSearching()
	}
	return false
}

// TransitionFromParked leaves the parked state for index, reinstating it
// as unparked. It only updates the bookkeeping and reports whether index
// was actually found parked (false on a spurious double-call); whether
// to keep sleeping or to search is left to the caller.
func (x *idle) TransitionFromParked(index int) bool {
	x.parkedMu.Lock()
	defer x.parkedMu.Unlock()
	if !x.isParked[index] {
		return false
	}
	x.isParked[index] = false
	for i, v := range x.parked {
		if v == uint32(index) {
			x.parked = append(x.parked[:i], x.parked[i+1:]...)
			break
		}
	}
	x.numUnparked.Add(1)
	return true
}

// IsParked reports whether index is currently recorded as parked.
func (x *idle) IsParked(index int) bool {
	x.parkedMu.Lock()
	defer x.parkedMu.Unlock()
	return x.isParked[index]
}

// WorkerToNotify selects a worker to wake: preferring any currently
// searching worker (a no-op notification — it's already looking), else
// popping an index from the parked set (spec.md §4.5).
func (x *idle) WorkerToNotify() (int, bool) {
	if x.numSearching.Load() > 0 {
		return 0, false
	}
	x.parkedMu.Lock()
	defer x.parkedMu.Unlock()
	n := len(x.parked)
	if n == 0 {
		return 0, false
	}
	idx := x.parked[n-1]
	x.parked = x.parked[:n-1]
	x.isParked[idx] = false
	x.numUnparked.Add(1)
	return int(idx), true
}

// UnparkWorkerByID removes index from the parked set if present, used
// when notifying a specific worker directly rather than via
// WorkerToNotify's selection (spec.md §4.5).
func (x *idle) UnparkWorkerByID(index int) {
	x.parkedMu.Lock()
	defer x.parkedMu.Unlock()
	if !x.isParked[index] {
		return
	}
	x.isParked[index] = false
	for i, v := range x.parked {
		if v == uint32(index) {
			x.parked = append(x.parked[:i], x.parked[i+1:]...)
			break
		}
	}
	x.numUnparked.Add(1)
}

// NumSearching returns a snapshot of the searching-worker count.
func (x *idle) NumSearching() int {
	return int(x.numSearching.Load())
}
