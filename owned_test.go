package multiplexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOwnedTasksBindAndRemove(t *testing.T) {
	o := NewOwnedTasks()
	handle, n := o.Bind(TaskFunc(func() {}))
	require.False(t, handle.Cancelled)
	require.False(t, o.IsEmpty())

	removed := o.Remove(n)
	require.Same(t, n, removed)
	require.True(t, o.IsEmpty())

	// Removing again is a harmless no-op.
	require.Nil(t, o.Remove(n))
}

func TestOwnedTasksBindAfterCloseIsCancelled(t *testing.T) {
	o := NewOwnedTasks()
	o.CloseAndShutdownAll()

	handle, n := o.Bind(TaskFunc(func() {}))
	require.True(t, handle.Cancelled)
	require.NotNil(t, n)
	require.True(t, o.IsEmpty())
}

func TestOwnedTasksCloseAndShutdownAllDrainsOnce(t *testing.T) {
	o := NewOwnedTasks()
	const count = 50
	for i := 0; i < count; i++ {
		o.Bind(TaskFunc(func() {}))
	}

	drained := o.CloseAndShutdownAll()
	require.Len(t, drained, count)
	require.True(t, o.IsClosed())

	// A second call observes nothing left to drain.
	require.Empty(t, o.CloseAndShutdownAll())
}

func TestOwnedTasksAssertOwnerPanicsOnNil(t *testing.T) {
	o := NewOwnedTasks()
	require.Panics(t, func() {
		o.AssertOwner(nil)
	})
}
