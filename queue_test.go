package multiplexer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalQueuePushPopFIFO(t *testing.T) {
	q := newLocalQueue()
	inject := NewInject()
	metrics := newWorkerMetrics()

	for i := 0; i < 4; i++ {
		q.PushBack(&Notified{id: uint64(i)}, inject, metrics)
	}
	require.Equal(t, 4, q.Len())
	require.True(t, q.HasTasks())

	for i := 0; i < 4; i++ {
		n, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, uint64(i), n.id)
	}
	_, ok := q.Pop()
	require.False(t, ok)
	require.False(t, q.HasTasks())
}

func TestLocalQueueOverflowSpillsToInject(t *testing.T) {
	q := newLocalQueue()
	inject := NewInject()
	metrics := newWorkerMetrics()

	for i := 0; i < localQueueCapacity+1; i++ {
		q.PushBack(&Notified{id: uint64(i)}, inject, metrics)
	}

	require.Equal(t, uint64(1), metrics.OverflowCount())
	require.Equal(t, localQueueCapacity/2, q.Len())

	seen := make(map[uint64]bool)
	for {
		n, ok := q.Pop()
		if !ok {
			break
		}
		seen[n.id] = true
	}
	for {
		n, ok := inject.Pop()
		if !ok {
			break
		}
		seen[n.id] = true
	}
	require.Len(t, seen, localQueueCapacity+1)
}

func TestLocalQueueStealIntoTakesHalf(t *testing.T) {
	src := newLocalQueue()
	dst := newLocalQueue()
	inject := NewInject()
	metrics := newWorkerMetrics()

	for i := 0; i < 10; i++ {
		src.PushBack(&Notified{id: uint64(i)}, inject, metrics)
	}

	first, ok := src.StealInto(dst, metrics)
	require.True(t, ok)
	require.Equal(t, uint64(0), first.id)

	// 10 tasks -> steal ceil(10/2)=5, one returned directly, 4 placed in dst.
	require.Equal(t, 4, dst.Len())
	require.Equal(t, 5, src.Len())
	require.Equal(t, uint64(5), metrics.StealCount())
}

func TestLocalQueueStealFromEmptyFails(t *testing.T) {
	src := newLocalQueue()
	dst := newLocalQueue()
	metrics := newWorkerMetrics()

	_, ok := src.StealInto(dst, metrics)
	require.False(t, ok)
}

func TestLocalQueueConcurrentOwnerAndStealers(t *testing.T) {
	owner := newLocalQueue()
	inject := NewInject()
	metrics := newWorkerMetrics()

	const total = 2000
	for i := 0; i < total; i++ {
		owner.PushBack(&Notified{id: uint64(i)}, inject, metrics)
	}

	var mu sync.Mutex
	seen := make(map[uint64]bool)
	record := func(n *Notified) {
		mu.Lock()
		seen[n.id] = true
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		dst := newLocalQueue()
		wg.Add(1)
		go func(dst *localQueue) {
			defer wg.Done()
			for {
				n, ok := owner.StealInto(dst, metrics)
				if !ok {
					if n2, ok2 := dst.Pop(); ok2 {
						record(n2)
						continue
					}
					return
				}
				record(n)
				for {
					n2, ok2 := dst.Pop()
					if !ok2 {
						break
					}
					record(n2)
				}
			}
		}(dst)
	}

	for {
		n, ok := owner.Pop()
		if !ok {
			break
		}
		record(n)
	}
	wg.Wait()

	// total exceeds localQueueCapacity, so PushBack spilled the overflow
	// into inject; those tasks count too.
	for {
		n, ok := inject.Pop()
		if !ok {
			break
		}
		record(n)
	}

	require.Len(t, seen, total)
}
