package multiplexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdleSearchCapIsHalfRoundedUp(t *testing.T) {
	x := newIdle(5)
	require.Equal(t, uint32(3), x.searchCap())

	for i := 0; i < 3; i++ {
		require.True(t, x.TransitionWorkerToSearching())
	}
	require.False(t, x.TransitionWorkerToSearching())
	require.Equal(t, 3, x.NumSearching())
}

func TestIdleTransitionFromSearchingReportsLast(t *testing.T) {
	x := newIdle(4)
	require.True(t, x.TransitionWorkerToSearching())
	require.True(t, x.TransitionWorkerToSearching())

	require.False(t, x.TransitionWorkerFromSearching())
	require.True(t, x.TransitionWorkerFromSearching())
}

func TestIdleParkAndUnparkBookkeeping(t *testing.T) {
	x := newIdle(3)

	wasLast := x.TransitionWorkerToParked(0, false)
	require.False(t, wasLast)
	require.True(t, x.IsParked(0))

	idx, ok := x.WorkerToNotify()
	require.True(t, ok)
	require.Equal(t, 0, idx)
	require.False(t, x.IsParked(0))
}

func TestIdleWorkerToNotifyPrefersSearchingAsNoOp(t *testing.T) {
	x := newIdle(3)
	x.TransitionWorkerToParked(1, false)
	require.True(t, x.TransitionWorkerToSearching())

	// A searcher is already active: nothing to notify, the searcher will
	// find the work itself.
	_, ok := x.WorkerToNotify()
	require.False(t, ok)
}

func TestIdleUnparkWorkerByIDRemovesFromParkedSet(t *testing.T) {
	x := newIdle(2)
	x.TransitionWorkerToParked(1, false)
	require.True(t, x.IsParked(1))

	x.UnparkWorkerByID(1)
	require.False(t, x.IsParked(1))

	// Idempotent: a second call on an already-unparked index is a no-op.
	x.UnparkWorkerByID(1)
	require.False(t, x.IsParked(1))
}

func TestIdleTransitionFromParkedReportsSpurious(t *testing.T) {
	x := newIdle(2)
	require.False(t, x.TransitionFromParked(0))

	x.TransitionWorkerToParked(0, false)
	require.True(t, x.TransitionFromParked(0))
	require.False(t, x.TransitionFromParked(0))
}
