package multiplexer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInjectPushPopFIFO(t *testing.T) {
	q := NewInject()
	for i := 0; i < 300; i++ {
		require.True(t, q.Push(&Notified{id: uint64(i)}))
	}
	require.Equal(t, 300, q.Len())

	for i := 0; i < 300; i++ {
		n, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, uint64(i), n.id)
	}
	require.True(t, q.IsEmpty())
}

func TestInjectPopNDrainsUpToMax(t *testing.T) {
	q := NewInject()
	for i := 0; i < 10; i++ {
		require.True(t, q.Push(&Notified{id: uint64(i)}))
	}
	batch := q.PopN(4)
	require.Len(t, batch, 4)
	for i, n := range batch {
		require.Equal(t, uint64(i), n.id)
	}
	require.Equal(t, 6, q.Len())

	rest := q.PopN(100)
	require.Len(t, rest, 6)
	require.Equal(t, 0, q.Len())
}

func TestInjectCloseIsIdempotentAndRejectsPush(t *testing.T) {
	q := NewInject()
	require.True(t, q.Close())
	require.False(t, q.Close())
	require.True(t, q.IsClosed())
	require.False(t, q.Push(&Notified{id: 1}))
}

func TestInjectConcurrentPushPop(t *testing.T) {
	q := NewInject()
	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(&Notified{id: uint64(base*perProducer + i)})
			}
		}(p)
	}
	wg.Wait()

	require.Equal(t, producers*perProducer, q.Len())

	seen := make(map[uint64]bool)
	var mu sync.Mutex
	var consumers sync.WaitGroup
	for c := 0; c < 4; c++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				n, ok := q.Pop()
				if !ok {
					return
				}
				mu.Lock()
				seen[n.id] = true
				mu.Unlock()
			}
		}()
	}
	consumers.Wait()

	require.Len(t, seen, producers*perProducer)
}
