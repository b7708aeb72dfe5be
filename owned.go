package multiplexer

import (
	"sync"
	"sync/atomic"
)

// OwnedTasks is the registry behind spec.md §4.3 (C3): every live task is
// bound here exactly once, and the registry's closable bit gates whether
// new bindings are accepted. Grounded on the teacher's id-keyed promise
// table (go-eventloop/registry.go): a mutex-guarded map plus a monotonic
// id counter, minus the weak-pointer scavenging (tasks here are owned
// outright, not weakly referenced, since the core is their only home
// until completion).
type OwnedTasks struct {
	mu     sync.Mutex
	data   map[uint64]*Notified
	nextID uint64

	closed atomic.Bool
}

// NewOwnedTasks constructs an empty, open registry.
func NewOwnedTasks() *OwnedTasks {
	return &OwnedTasks{
		data:   make(map[uint64]*Notified),
		nextID: 1,
	}
}

// Bind inserts task into the registry and returns a [JoinHandle] plus the
// wrapped [Notified]. If the registry is already closed, the returned
// Notified is non-nil but was never inserted (spec.md §7 "shutdown-race
// bind") — the caller must release it (treat it as immediately cancelled)
// rather than pushing it to any queue.
func (o *OwnedTasks) Bind(task Task) (JoinHandle, *Notified) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextID
	o.nextID++
	n := &Notified{id: id, task: task}

	if o.closed.Load() {
		return JoinHandle{Cancelled: true}, n
	}

	o.data[id] = n
	return JoinHandle{}, n
}

// Remove drops task from the registry on completion, returning the
// removed entry (or nil if it was not present, e.g. already removed by a
// concurrent close_and_shutdown_all).
func (o *OwnedTasks) Remove(n *Notified) *Notified {
	o.mu.Lock()
	defer o.mu.Unlock()
	if existing, ok := o.data[n.id]; ok {
		delete(o.data, n.id)
		return existing
	}
	return nil
}

// AssertOwner is the run loop's ownership check on n (spec.md §4.3). It
// panics if n is nil and otherwise does nothing: it does not verify that
// n is bound in this registry. It runs in every build, not only in tests.
func (o *OwnedTasks) AssertOwner(n *Notified) {
	if n == nil {
		panic("multiplexer: assert_owner: nil task")
	}
}

// CloseAndShutdownAll marks the registry closed and returns every
// currently-bound task, so the caller can drive each to cancellation.
// Safe to call concurrently from every worker during pre-shutdown
// (spec.md §4.14); only the first caller observes a non-empty result,
// since the registry is emptied as part of the same critical section.
func (o *OwnedTasks) CloseAndShutdownAll() []*Notified {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed.Store(true)
	if len(o.data) == 0 {
		return nil
	}
	out := make([]*Notified, 0, len(o.data))
	for id, n := range o.data {
		out = append(out, n)
		delete(o.data, id)
	}
	return out
}

// IsClosed reports whether CloseAndShutdownAll has been called.
func (o *OwnedTasks) IsClosed() bool {
	return o.closed.Load()
}

// IsEmpty reports whether the registry currently holds no tasks.
func (o *OwnedTasks) IsEmpty() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.data) == 0
}
