// Command multiplexerdemo demonstrates the core scheduling primitives of
// the multiplexer package: task submission, cooperative self-rescheduling,
// a blocking call handed off via BlockInPlace, and an orderly shutdown.
//
// Run with: go run ./cmd/multiplexerdemo/
package main

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/multiplexer"
)

func main() {
	sched := multiplexer.New(multiplexer.WithSize(4))
	sched.Launch()

	var wg sync.WaitGroup
	var completed atomic.Int64

	// Submit a handful of plain one-shot tasks.
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		sched.BindNewTask(multiplexer.TaskFunc(func() {
			defer wg.Done()
			fmt.Printf("task %d: running\n", i)
			completed.Add(1)
		}))
	}

	// A task that re-submits itself a few times before finishing; each
	// pass goes back through the injection queue.
	var steps atomic.Int32
	var countdown multiplexer.Task
	countdown = multiplexer.NewTask(func(core *multiplexer.Core) multiplexer.RunResult {
		n := steps.Add(1)
		fmt.Printf("countdown: step %d\n", n)
		if n < 5 {
			// Re-admit self for another pass; BindNewTask is used here
			// rather than core.Schedule purely so this demo task doesn't
			// need to carry its own *Notified handle.
			sched.BindNewTask(countdown)
			return multiplexer.Completed
		}
		wg.Done()
		return multiplexer.Completed
	})
	wg.Add(1)
	sched.BindNewTask(countdown)

	// A task that performs a simulated blocking call via BlockInPlace,
	// letting the pool keep making progress on the other tasks above.
	wg.Add(1)
	sched.BindNewTask(multiplexer.NewTask(func(core *multiplexer.Core) multiplexer.RunResult {
		defer wg.Done()
		_, handedOff, err := multiplexer.BlockInPlace(core, func() int {
			fmt.Println("blocking call: start")
			time.Sleep(50 * time.Millisecond)
			fmt.Println("blocking call: done")
			return 0
		})
		if err != nil {
			fmt.Printf("blocking call: error: %v\n", err)
		}
		if handedOff {
			// A replacement goroutine is already driving this worker's
			// core; this goroutine must not touch it again.
			return multiplexer.HandedOff
		}
		return multiplexer.Completed
	}))

	wg.Wait()

	m := sched.Metrics()
	fmt.Printf("completed %d plain tasks across %d workers; steals=%d overflows=%d\n",
		completed.Load(), m.NumWorkers(), m.TotalStealCount(), m.TotalOverflowCount())

	sched.Close()
}
