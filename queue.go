package multiplexer

import (
	"sync/atomic"
)

// localQueueCapacity is the fixed size of a worker's local run queue,
// matching Tokio's LOCAL_QUEUE_CAPACITY (original_source/tokio, via
// SPEC_FULL.md's DOMAIN-STACK SUPPLEMENT). Must be a power of two so index
// wrapping is a mask instead of a modulo.
const localQueueCapacity = 256

const localQueueMask = localQueueCapacity - 1

// localQueue is the bounded, single-producer/multi-consumer deque behind
// spec.md §4.1 (C1). The owner is the only goroutine that ever calls
// PushBack/Pop; any number of peers may concurrently call StealInto.
//
// Design: a Chase-Lev-style deque with the head cursor CAS'd by both the
// owner (Pop) and stealers (StealInto), and the tail cursor written only
// by the owner (PushBack) — the same split the Go runtime's per-P runq
// uses. Lock-free on the owner's hot path; stealer contention resolves via
// CAS retry, never a lock.
type localQueue struct {
	// head is advanced by Pop (owner) and StealInto (any peer) via CAS.
	head atomic.Uint32
	// tail is advanced only by the owner; stealers only read it.
	tail atomic.Uint32

	buf [localQueueCapacity]atomic.Pointer[Notified]
}

func newLocalQueue() *localQueue {
	return &localQueue{}
}

// Len returns a racy snapshot of the queue length; safe to call from any
// goroutine for metrics purposes only.
func (q *localQueue) Len() int {
	h := q.head.Load()
	t := q.tail.Load()
	if t < h {
		return 0
	}
	return int(t - h)
}

// HasTasks reports whether the queue is non-empty (spec.md §4.1 has_tasks).
func (q *localQueue) HasTasks() bool {
	return q.Len() > 0
}

// IsStealable reports whether at least one task is stealable (spec.md
// §4.1 is_stealable). Equivalent to HasTasks for this implementation,
// since any owned task is eligible to be stolen.
func (q *localQueue) IsStealable() bool {
	return q.HasTasks()
}

// PushBack enqueues n at the tail. On overflow, half the queue plus n are
// moved atomically into inject (spec.md §4.1, §4.5 invariant preservation
// for property P5), and the overflow is recorded in metrics.
func (q *localQueue) PushBack(n *Notified, inject *Inject, metrics *WorkerMetrics) {
	for {
		h := q.head.Load()
		t := q.tail.Load()
		if t-h < localQueueCapacity {
			q.buf[t&localQueueMask].Store(n)
			// Release: make the stored task visible before publishing tail.
			q.tail.Store(t + 1)
			return
		}

		// Full: try to claim half the queue (+ n) for the injection queue.
		if q.pushOverflow(h, t, n, inject, metrics) {
			return
		}
		// A steal raced us and made room; retry from scratch.
	}
}

// pushOverflow attempts to move half of [h, t) plus n into inject,
// atomically with respect to concurrent stealers (by CAS'ing head
// forward first, exactly as a steal would). Returns false if the CAS lost
// the race, in which case the caller should retry PushBack.
func (q *localQueue) pushOverflow(h, t uint32, n *Notified, inject *Inject, metrics *WorkerMetrics) bool {
	half := (t - h) / 2
	if half == 0 {
		// Shouldn't happen at capacity, but guard against a spurious call.
		return false
	}
	if !q.head.CompareAndSwap(h, h+half) {
		return false
	}

	batch := make([]*Notified, 0, half+1)
	for i := uint32(0); i < half; i++ {
		batch = append(batch, q.buf[(h+i)&localQueueMask].Load())
	}
	batch = append(batch, n)

	inject.pushBatch(batch)
	if metrics != nil {
		metrics.overflowCount.Add(1)
	}
	return true
}

// Pop dequeues from the front (owner-only).
func (q *localQueue) Pop() (*Notified, bool) {
	for {
		h := q.head.Load()
		t := q.tail.Load()
		if t == h {
			return nil, false
		}
		n := q.buf[h&localQueueMask].Load()
		if q.head.CompareAndSwap(h, h+1) {
			return n, true
		}
		// A stealer raced us; retry.
	}
}

// StealInto atomically transfers ceil(n/2) of q's n tasks into dst and
// returns one of them for immediate execution on the caller's (dst's
// owner's) behalf, per spec.md §4.1's steal_into contract. dst must be
// owned by the calling goroutine. Per the steal precondition in spec.md
// §4.8, dst is empty at call time, so the transfer never needs to
// overflow dst into the injection queue; the count is capped to dst's
// capacity defensively regardless.
func (q *localQueue) StealInto(dst *localQueue, metrics *WorkerMetrics) (*Notified, bool) {
	for {
		h := q.head.Load()
		t := q.tail.Load()
		n := t - h
		if n == 0 || n > localQueueCapacity {
			// Empty, or a torn read of a wrapped cursor pair; bail/retry.
			if n == 0 {
				return nil, false
			}
			continue
		}
		n = n - n/2 // steal ceil(n/2), leaving floor(n/2) behind
		if n == 0 {
			return nil, false
		}
		if dstTail := dst.tail.Load(); n > localQueueCapacity-(dstTail-dst.head.Load()) {
			n = localQueueCapacity - (dstTail - dst.head.Load())
			if n == 0 {
				return nil, false
			}
		}

		if !q.head.CompareAndSwap(h, h+n) {
			continue
		}

		tasks := make([]*Notified, n)
		for i := uint32(0); i < n; i++ {
			tasks[i] = q.buf[(h+i)&localQueueMask].Load()
		}

		first := tasks[0]
		rest := tasks[1:]
		dstTail := dst.tail.Load()
		for i, task := range rest {
			dst.buf[(dstTail+uint32(i))&localQueueMask].Store(task)
		}
		dst.tail.Store(dstTail + uint32(len(rest)))

		if metrics != nil {
			metrics.stealCount.Add(uint64(n))
		}
		return first, true
	}
}
