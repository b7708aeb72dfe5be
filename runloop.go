package multiplexer

import "time"

// globalPollInterval is the tick cadence (spec.md §4.6 step 1, §4.8 step 1)
// at which a core checks the injection queue ahead of its own local queue,
// so external submissions and local-queue overflow can't starve a worker
// that always has local work. Matches the teacher's habit of a small,
// named cadence constant (go-eventloop's batch sizes) rather than a
// magic number inline.
const globalPollInterval = 61

// lifoBudget bounds how many consecutive tasks a core will drain from its
// LIFO slot before yielding back to the outer run loop (spec.md §4.7 step
// 6), preventing a chain of mutually-rescheduling tasks from starving
// maintenance, stealing, and the injection queue.
const lifoBudget = 128

// Run is a worker's entire lifetime on a goroutine: take the Core out of
// the slot, drive it until shutdown or until a block-in-place hand-off
// takes the core away, then exit. Run is what every [BlockingSpawner]
// (including the default) invokes to attach a fresh goroutine to a
// worker's slot.
func (w *Worker) Run() {
	core := w.takeCore()
	if core == nil {
		// Nothing to do: another goroutine is already running this
		// worker's core, or it was already moved to the shutdown list.
		return
	}
	// Whoever takes a core out of the slot is a fresh top-level worker
	// loop, never itself nested inside a pending BlockInPlace hand-off —
	// even if a prior occupant left the core via one. The handshake is
	// safe to reset here because it only ever changes hands through
	// putCore/takeCore's atomic swap.
	core.inBlockInPlace = false
	core.run(w.shared)
}

// run is the per-core state machine of spec.md §4.6: tick, maintenance
// every globalPollInterval ticks, pick a task (local-queue/injection order
// alternates with the tick), run it, or steal, or park.
func (c *Core) run(shared *Shared) {
	for !c.isShutdown {
		c.tick++
		if c.tick%globalPollInterval == 0 {
			c.maintenance(shared)
			if c.isShutdown {
				break
			}
		}

		task, ok := c.nextTask(shared)
		if !ok {
			task, ok = c.steal(shared)
		}
		if ok {
			if c.runTask(shared, task) {
				// Core was handed off via BlockInPlace; this goroutine's
				// life as a worker ends here.
				return
			}
			continue
		}

		c.parkLoop(shared)
	}

	shared.preShutdown(c)
	shared.shutdown(c)
}

// maintenance drains the native wake descriptor without blocking, polls
// the external driver (if any) the same way, publishes the local queue
// depth, and refreshes is_shutdown from the injection queue's closed bit
// (spec.md §4.6 step 2, §4.14).
func (c *Core) maintenance(shared *Shared) {
	c.park.ParkTimeout(0)
	c.metrics.SetLocalQueueDepth(c.runQueue.Len())
	c.checkShutdown(shared)
}

// checkShutdown polls the external driver without blocking and latches
// is_shutdown once the injection queue has been closed. Called both from
// the tick-gated maintenance step and after every park wake, since a
// close can land while a core is asleep.
func (c *Core) checkShutdown(shared *Shared) {
	if shared.driver != nil {
		shared.driver.PollTimeout(0)
	}
	if shared.inject.IsClosed() {
		c.isShutdown = true
	}
}

// nextTask implements spec.md §4.6 step 3/§4.8 step 1's fairness
// alternation: on the tick that also triggers maintenance, the injection
// queue is consulted first so a steady stream of local work can't starve
// external submissions; every other tick the local path (LIFO slot, then
// run queue) goes first.
func (c *Core) nextTask(shared *Shared) (*Notified, bool) {
	if c.tick%globalPollInterval == 0 {
		if n, ok := shared.inject.Pop(); ok {
			return n, true
		}
		return c.nextLocalTask()
	}
	if n, ok := c.nextLocalTask(); ok {
		return n, true
	}
	return shared.inject.Pop()
}

func (c *Core) nextLocalTask() (*Notified, bool) {
	if c.lifoSlot != nil {
		n := c.lifoSlot
		c.lifoSlot = nil
		return n, true
	}
	return c.runQueue.Pop()
}

// steal implements spec.md §4.8: enter the searching state (subject to
// the searcher cap), probe every peer starting at a random offset, fall
// back to the injection queue, and leave the searching state the moment
// work is found so the caller that unblocked us (if any) is not left
// thinking a searcher is still active.
func (c *Core) steal(shared *Shared) (*Notified, bool) {
	if !shared.idle.TransitionWorkerToSearching() {
		return nil, false
	}
	c.isSearching = true
	shared.log.workerSearching(c.index)

	n := uint32(shared.size)
	start := uint32(c.rand.Intn(int(n)))
	for i := uint32(0); i < n; i++ {
		idx := int((start + i) % n)
		if idx == c.index {
			continue
		}
		if task, ok := shared.remotes[idx].stealFrom.StealInto(c.runQueue, c.metrics); ok {
			shared.log.workerStole(c.index, idx, 1)
			c.transitionFromSearching(shared)
			return task, true
		}
	}

	if task, ok := shared.inject.Pop(); ok {
		c.transitionFromSearching(shared)
		return task, true
	}

	return nil, false
}

// transitionFromSearching leaves the searching state, notifying a parked
// peer if this core was the last searcher (spec.md §4.7 step 2, §4.8
// step 4): work was just found, and no one else is looking for more.
func (c *Core) transitionFromSearching(shared *Shared) {
	if !c.isSearching {
		return
	}
	c.isSearching = false
	if shared.idle.TransitionWorkerFromSearching() {
		shared.notifyParked()
	}
}

// runTask drives n, then its LIFO fast path, until the budget is
// exhausted, the LIFO slot is empty, or the task hands this goroutine's
// core off to a replacement mid-task via [BlockInPlace] (spec.md §4.7,
// §4.13). coreLost reports the latter via n.task.Run's own return value
// ([HandedOff]), never via a field on the shared Core: by the time Run
// returns HandedOff, a different goroutine may already be concurrently
// driving this same Core, so the caller must stop touching it
// immediately and exit without consulting lifoSlot/runQueue/tick.
func (c *Core) runTask(shared *Shared, n *Notified) (coreLost bool) {
	shared.owned.AssertOwner(n)
	c.transitionFromSearching(shared)

	budget := lifoBudget
	for {
		start := time.Now()
		result := n.task.Run(c)
		c.metrics.RecordPoll(time.Since(start))

		if result == HandedOff {
			// The task completed its blocking step and is logically
			// done, but the goroutine that ran it no longer owns c —
			// owned is its own independently synchronized structure, so
			// removing n from it here is safe even though nothing else
			// about c may be touched.
			shared.owned.Remove(n)
			return true
		}

		if result == Completed {
			shared.owned.Remove(n)
		}
		// Yielded: rescheduling, if any, is the task's own responsibility
		// (it holds the same Core and calls [Core.Schedule] before
		// returning). runTask never re-enqueues a task on its behalf.

		budget--
		if c.lifoSlot == nil {
			return false
		}
		if budget <= 0 {
			t := c.lifoSlot
			c.lifoSlot = nil
			c.runQueue.PushBack(t, shared.inject, c.metrics)
			return false
		}

		n = c.lifoSlot
		c.lifoSlot = nil
	}
}

// parkLoop implements spec.md §4.9: invoke the optional before-park hook,
// bail out without sleeping if work already arrived, transition into
// the parked bookkeeping, re-scan for pending work if this core was the
// last searcher, then actually sleep until woken, a shutdown is
// observed, or (a defensive bound not named by spec.md, but consistent
// with its maintenance cadence) enough time has passed to re-check
// shutdown regardless.
func (c *Core) parkLoop(shared *Shared) {
	if shared.beforePark != nil {
		shared.beforePark(c.index)
	}

	if c.runQueue.HasTasks() || c.lifoSlot != nil {
		return
	}

	wasLastSearcher := shared.idle.TransitionWorkerToParked(c.index, c.isSearching)
	c.isSearching = false
	c.metrics.RecordPark()
	shared.log.workerParked(c.index)

	if wasLastSearcher {
		shared.notifyIfWorkPending()
	}

	for {
		c.park.ParkTimeout(parkMaintenanceInterval)
		c.checkShutdown(shared)
		if c.isShutdown {
			shared.idle.TransitionFromParked(c.index)
			return
		}
		if c.runQueue.HasTasks() || c.lifoSlot != nil || !shared.idle.IsParked(c.index) {
			// Either genuinely woken (Unpark already removed us from the
			// parked set) or a peer pushed directly into our queue while
			// we were still marked parked; either way, stop sleeping.
			break
		}
	}

	if !shared.idle.TransitionFromParked(c.index) {
		// Already removed by whoever woke us (e.g. notifyParked's direct
		// pop from the parked set); nothing further to reconcile.
	}

	shared.log.workerUnparked(c.index)
	if shared.afterUnpark != nil {
		shared.afterUnpark(c.index)
	}
}

// parkMaintenanceInterval bounds each individual sleep inside parkLoop's
// retry loop, so a parked core re-checks shutdown, its own queue, and its
// parked bookkeeping at least this often even if no Unpark reaches it.
const parkMaintenanceInterval = 250 * time.Millisecond

// notifyIfWorkPending implements spec.md §4.9 step 2: before the last
// searching worker commits to sleeping, re-scan every peer's steal handle
// and the injection queue; if anything is pending, wake a worker instead
// of letting the scan's findings go unobserved.
func (s *Shared) notifyIfWorkPending() {
	pending := !s.inject.IsEmpty()
	if !pending {
		for i := range s.remotes {
			if s.remotes[i].stealFrom.HasTasks() {
				pending = true
				break
			}
		}
	}
	if pending {
		s.notifyParked()
	}
}
