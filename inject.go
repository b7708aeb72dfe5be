package multiplexer

import (
	"sync"
	"sync/atomic"
)

// injectChunkSize is the number of tasks per node in Inject's chunked
// linked list, directly adapted from the teacher's ChunkedIngress
// (go-eventloop/ingress.go): fixed-size arrays give cache locality and
// amortize allocation versus a plain linked list of single tasks.
const injectChunkSize = 128

// injectChunk is a fixed-size node in Inject's chunked linked list.
type injectChunk struct {
	tasks   [injectChunkSize]*Notified
	next    *injectChunk
	readPos int
	pos     int
}

var injectChunkPool = sync.Pool{
	New: func() any { return &injectChunk{} },
}

func newInjectChunk() *injectChunk {
	c := injectChunkPool.Get().(*injectChunk)
	c.pos = 0
	c.readPos = 0
	c.next = nil
	return c
}

func returnInjectChunk(c *injectChunk) {
	for i := 0; i < c.pos; i++ {
		c.tasks[i] = nil
	}
	c.pos = 0
	c.readPos = 0
	c.next = nil
	injectChunkPool.Put(c)
}

// Inject is the shared MPMC injection queue behind spec.md §4.2 (C2): an
// unbounded queue with a closable bit, used for external submissions and
// local-queue overflow. Unlike the teacher's ChunkedIngress (which
// requires the caller to hold an external mutex and assumes a single
// consumer on the loop goroutine), Inject is self-synchronizing: any
// number of producers and consumers may call Push/Pop concurrently, since
// any worker may drain it.
type Inject struct {
	mu     sync.Mutex
	head   *injectChunk
	tail   *injectChunk
	length int

	closed atomic.Bool
	// lenHint lets Len() avoid lock acquisition on the metrics read path.
	lenHint atomic.Int64
}

// NewInject constructs an empty, open injection queue.
func NewInject() *Inject {
	return &Inject{}
}

// Push appends task. If the queue is already closed, task is returned to
// the caller (ok == false) instead of being enqueued, so the caller can
// cancel it immediately — spec.md §4.2/§7 "inject after close must not
// leave the task enqueued".
func (q *Inject) Push(task *Notified) (ok bool) {
	q.mu.Lock()
	if q.closed.Load() {
		q.mu.Unlock()
		return false
	}
	q.pushLocked(task)
	q.mu.Unlock()
	q.lenHint.Add(1)
	return true
}

// pushBatch appends a whole slice at once, used by localQueue.pushOverflow
// to move half-a-queue-plus-one into inject atomically with respect to
// other Inject operations. If the queue is closed, every task in the
// batch is silently dropped by the caller's contract: overflow only
// happens from a worker that has not yet observed shutdown, and spec.md
// §4.14 guarantees close() happens-before workers stop producing, so this
// is only reachable in the benign race where close landed a moment ago;
// the tasks are already cancelled via pre_shutdown's mass-cancel, so
// dropping them here does not leak (they are already removed from owned).
func (q *Inject) pushBatch(tasks []*Notified) {
	q.mu.Lock()
	if q.closed.Load() {
		q.mu.Unlock()
		return
	}
	for _, t := range tasks {
		q.pushLocked(t)
	}
	q.mu.Unlock()
	q.lenHint.Add(int64(len(tasks)))
}

func (q *Inject) pushLocked(task *Notified) {
	if q.tail == nil {
		q.tail = newInjectChunk()
		q.head = q.tail
	}
	if q.tail.pos == injectChunkSize {
		next := newInjectChunk()
		q.tail.next = next
		q.tail = next
	}
	q.tail.tasks[q.tail.pos] = task
	q.tail.pos++
	q.length++
}

// Pop removes and returns one task; ok is false if the queue is empty.
func (q *Inject) Pop() (task *Notified, ok bool) {
	q.mu.Lock()
	task, ok = q.popLocked()
	q.mu.Unlock()
	if ok {
		q.lenHint.Add(-1)
	}
	return task, ok
}

// PopN drains up to max tasks in FIFO order. This is additive beyond
// spec.md's prose contract, grounded in the original Tokio source's
// Inject::pop_n (see SPEC_FULL.md). The run loop does not call it: its
// tick-61 fairness check takes a single task with Pop.
func (q *Inject) PopN(max int) []*Notified {
	if max <= 0 {
		return nil
	}
	out := make([]*Notified, 0, max)
	q.mu.Lock()
	for len(out) < max {
		t, ok := q.popLocked()
		if !ok {
			break
		}
		out = append(out, t)
	}
	q.mu.Unlock()
	if n := len(out); n > 0 {
		q.lenHint.Add(int64(-n))
	}
	return out
}

func (q *Inject) popLocked() (*Notified, bool) {
	if q.head == nil {
		return nil, false
	}
	if q.head.readPos >= q.head.pos {
		if q.head == q.tail {
			q.head.pos = 0
			q.head.readPos = 0
			return nil, false
		}
		old := q.head
		q.head = q.head.next
		returnInjectChunk(old)
	}
	if q.head.readPos >= q.head.pos {
		return nil, false
	}

	task := q.head.tasks[q.head.readPos]
	q.head.tasks[q.head.readPos] = nil
	q.head.readPos++
	q.length--

	if q.head.readPos >= q.head.pos {
		if q.head == q.tail {
			q.head.pos = 0
			q.head.readPos = 0
			return task, true
		}
		old := q.head
		q.head = q.head.next
		returnInjectChunk(old)
	}

	return task, true
}

// Close marks the queue closed. Returns true the first time it is called
// (spec.md §4.2 "idempotent; returns true the first time"); subsequent
// calls return false.
func (q *Inject) Close() bool {
	return q.closed.CompareAndSwap(false, true)
}

// IsClosed reports whether Close has been called.
func (q *Inject) IsClosed() bool {
	return q.closed.Load()
}

// IsEmpty reports whether the queue currently holds no tasks.
func (q *Inject) IsEmpty() bool {
	return q.Len() == 0
}

// Len returns the current queue length without acquiring the mutex,
// using the atomic hint counter maintained alongside Push/Pop.
func (q *Inject) Len() int {
	n := q.lenHint.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}
