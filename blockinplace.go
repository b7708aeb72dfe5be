package multiplexer

// BlockInPlace hands core's worker slot to a freshly spawned goroutine so
// the pool keeps making progress, then runs f on the calling goroutine
// (spec.md §4.13, C9). core must be the exact value handed to [Task.Run];
// passing nil returns [ErrBlockingOffRuntime] immediately without calling
// f, since there is no implicit way in Go to detect "this goroutine
// happens to be a worker" the way a thread-local would in the system this
// package's scheduling core is modeled on — see SPEC_FULL.md's Open
// Question Resolution for the explicit-Core design.
//
// handedOff reports whether, once f returned, the replacement goroutine
// had taken core out of the worker's cell (the overwhelmingly common case:
// it then keeps servicing the worker's queue until shutdown, and never
// puts core back in the cell). When handedOff is true, the caller's
// [Task.Run] must return [HandedOff] immediately and must not read or
// write core again — it no longer owns it. Only when handedOff is false
// (the replacement had not yet taken core when f returned, so this call
// reclaimed it and the replacement's [Worker.Run] finds the cell empty)
// does the calling goroutine remain the worker, and normal
// [Completed]/[Yielded] results apply.
//
// A nested call (core already mid-hand-off on this same goroutine) just
// invokes f directly: the core was already handed off by the outer call,
// so there is nothing left to give away.
func BlockInPlace[R any](core *Core, f func() R) (result R, handedOff bool, err error) {
	if core == nil {
		var zero R
		return zero, false, ErrBlockingOffRuntime
	}
	if core.inBlockInPlace {
		return f(), false, nil
	}

	w := core.worker
	shared := w.shared

	core.inBlockInPlace = true
	w.putCore(core)
	shared.log.blockInPlace(w.index)
	shared.blockingSpawn(w)

	result = f()

	if reclaimed := w.takeCore(); reclaimed == core {
		core.inBlockInPlace = false
		return result, false, nil
	} else if reclaimed != nil {
		// Not reachable via this package's own code paths (only this
		// hand-off's own replacement should ever be the one to put a
		// core back into w's cell), but handled rather than silently
		// dropping whatever was found there.
		w.putCore(reclaimed)
	}

	return result, true, nil
}
