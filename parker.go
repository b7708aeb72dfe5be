package multiplexer

import (
	"sync/atomic"
	"time"
)

// parkState is the four-state machine behind a Parker (spec.md §4.4, C4):
// a worker either has no goroutine attached (threadless), is running
// freely (empty), has a wake pending that its next park consumes
// without blocking (notified), or is genuinely asleep (parked) and must
// be woken through the channel. The CAS-loop style here is lifted
// directly from the teacher's FastState (go-eventloop/state.go,
// TryTransition/TransitionAny), substituting this package's four states
// for the loop's five.
type parkState uint32

const (
	// parkThreadless is the initial state: no OS thread/goroutine is
	// attached to the owning worker yet. Waking a threadless parker
	// requires the caller to spawn a goroutine to run the worker (spec.md
	// §4.4, §4.12).
	parkThreadless parkState = 0
	parkEmpty      parkState = 1 // running; no one is asleep or about to be
	parkNotified   parkState = 2 // a wake was delivered before the sleeper blocked
	parkParked     parkState = 3 // genuinely blocked in the channel receive
)

// parkerShared is the cross-goroutine cell a Parker/Unparker pair share.
// Exactly one Parker and one Unparker reference a given parkerShared;
// the split mirrors the teacher's habit of returning narrow, single-
// purpose handles (e.g. Promise/Future pairs in promisify.go) rather
// than one object both producer and consumer mutate directly.
type parkerShared struct {
	_     [64]byte
	state atomic.Uint32
	_     [60]byte
	ch    chan struct{}

	wakeFD      int
	wakeWriteFD int
}

// Parker is the sleep-side half of C4: a worker calls Park or
// ParkTimeout to block until woken by its paired Unparker, a timeout
// elapses, or (ParkTimeout(0), used during maintenance) a native wake
// descriptor has pending bytes.
type Parker struct {
	shared *parkerShared
}

// Unparker is the wake-side half of C4. It is safe to call Unpark from
// any goroutine, any number of times; excess wakes are coalesced into a
// single pending notification exactly as spec.md §4.4 requires.
type Unparker struct {
	shared *parkerShared
}

// NewParker constructs a bound Parker/Unparker pair. driver is accepted
// for symmetry with the teacher's constructor signatures (go-eventloop's
// NewLoop takes its poller) but is not retained: the out-of-scope I/O
// driver (spec.md §1) is consulted by the run loop directly during
// maintenance, not by the parker itself.
func NewParker(_ Driver) (*Parker, *Unparker) {
	s := &parkerShared{
		// state's zero value is parkThreadless by construction (see the
		// parkState const block): every worker starts unattached until
		// claimed via TransitionFromThreadless.
		ch:          make(chan struct{}, 1),
		wakeFD:      -1,
		wakeWriteFD: -1,
	}
	if fd, wfd, err := createWakeFD(0, 0); err == nil && fd >= 0 {
		s.wakeFD = fd
		s.wakeWriteFD = wfd
	}
	return &Parker{shared: s}, &Unparker{shared: s}
}

// Close releases any native wake descriptor held by the pair. It is safe
// to call on either half; callers typically invoke it once from the
// worker that owns the Parker, during shutdown.
func (p *Parker) Close() error {
	return closeWakeFD(p.shared.wakeFD, p.shared.wakeWriteFD)
}

// Park blocks the calling goroutine until Unpark is called, consuming a
// single pending notification if one already arrived (the Notified→Empty
// transition) rather than blocking at all.
func (p *Parker) Park() {
	p.park(nil)
}

// ParkTimeout blocks for at most d. A d of zero performs a single
// non-blocking check: it drains any native wake descriptor and returns
// immediately, used by the run loop's maintenance tick (spec.md §4.8 step
// 1) to keep cadence without risking an indefinite sleep.
func (p *Parker) ParkTimeout(d time.Duration) {
	if d <= 0 {
		_ = drainWakeFD(p.shared.wakeFD)
		// still honor a pending notification so it isn't silently lost
		p.shared.state.CompareAndSwap(uint32(parkNotified), uint32(parkEmpty))
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	p.park(timer.C)
}

func (p *Parker) park(timeout <-chan time.Time) {
	// Fast path: a wake already arrived (Notified -> Empty), don't block.
	if p.shared.state.CompareAndSwap(uint32(parkNotified), uint32(parkEmpty)) {
		return
	}

	// Commit to parking: Empty -> Parked.
	if !p.shared.state.CompareAndSwap(uint32(parkEmpty), uint32(parkParked)) {
		// Anything other than Empty here means a notification raced in
		// between the fast-path check and this CAS; treat it as consumed.
		p.shared.state.Store(uint32(parkEmpty))
		return
	}

	if timeout == nil {
		<-p.shared.ch
	} else {
		select {
		case <-p.shared.ch:
		case <-timeout:
			// Only revert to Empty if still Parked: an Unpark may have
			// raced with the timer firing and already set Notified/sent
			// on the channel, in which case draining it here keeps the
			// channel's buffer consistent for the next Park.
			if p.shared.state.CompareAndSwap(uint32(parkParked), uint32(parkEmpty)) {
				return
			}
			select {
			case <-p.shared.ch:
			default:
			}
		}
	}
	p.shared.state.Store(uint32(parkEmpty))
}

// Unpark wakes the paired Parker. If the worker is not yet blocked, the
// wake is recorded (Empty -> Notified) so the next Park call returns
// immediately instead of sleeping; if already Notified, the call is a
// no-op coalesced wake, matching spec.md §4.4's "at most one pending
// notification" requirement. wasThreadless reports true if the target was
// in the threadless state, in which case the caller must spawn a
// goroutine to run the worker (spec.md §4.12) — the transition itself
// already moved the state to notified, so the spawned goroutine's first
// Park call returns immediately rather than racing to miss this wake.
func (u *Unparker) Unpark() (wasThreadless bool) {
	for {
		switch parkState(u.shared.state.Load()) {
		case parkThreadless:
			if u.shared.state.CompareAndSwap(uint32(parkThreadless), uint32(parkNotified)) {
				return true
			}
		case parkNotified:
			return false
		case parkEmpty:
			if u.shared.state.CompareAndSwap(uint32(parkEmpty), uint32(parkNotified)) {
				return false
			}
		case parkParked:
			if u.shared.state.CompareAndSwap(uint32(parkParked), uint32(parkEmpty)) {
				select {
				case u.shared.ch <- struct{}{}:
				default:
				}
				_ = signalWakeFD(u.shared.wakeWriteFD)
				return false
			}
		}
	}
}

// TransitionFromThreadless attempts to atomically leave the threadless
// state, succeeding only if the parker was still in it (spec.md §4.4).
// Used by claim_threadless_worker (Shared.claimThreadlessWorker) when
// attaching a goroutine to a worker that was never started, or whose
// previous goroutine exited.
func (u *Unparker) TransitionFromThreadless() bool {
	return u.shared.state.CompareAndSwap(uint32(parkThreadless), uint32(parkEmpty))
}

// IsThreadless reports whether the parker is currently in the threadless
// state.
func (u *Unparker) IsThreadless() bool {
	return parkState(u.shared.state.Load()) == parkThreadless
}
