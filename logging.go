package multiplexer

import (
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// eventLog wraps the optional structured logger plus a per-scheduler
// trace-level rate limiter, so worker lifecycle events (search/steal/
// park/unpark) can be logged at trace level without a busy scheduler
// flooding the sink. A nil logger makes every method a no-op; callers
// never need to guard with a nil check, matching the teacher's habit of
// tolerating a nil *Logger at every call site (go-eventloop/logging.go).
type eventLog struct {
	logger *logiface.Logger[*stumpy.Event]
	trace  *catrate.Limiter
}

func newEventLog(logger *logiface.Logger[*stumpy.Event]) *eventLog {
	if logger == nil {
		return &eventLog{}
	}
	return &eventLog{
		logger: logger,
		// Bound trace-level noise to 200/second, 2000/minute per event
		// category: worker park/unpark/steal events are cheap individually
		// but happen on every idle transition across all N workers.
		trace: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 200,
			time.Minute: 2000,
		}),
	}
}

func (l *eventLog) allowTrace(category any) bool {
	if l.trace == nil {
		return true
	}
	_, ok := l.trace.Allow(category)
	return ok
}

func (l *eventLog) launched(size int) {
	if l.logger == nil {
		return
	}
	l.logger.Info().Int(`size`, size).Log(`scheduler launched`)
}

func (l *eventLog) workerSearching(index int) {
	if l.logger == nil || !l.allowTrace(`searching`) {
		return
	}
	l.logger.Trace().Int(`worker`, index).Log(`worker searching`)
}

func (l *eventLog) workerStole(index, from, n int) {
	if l.logger == nil || !l.allowTrace(`steal`) {
		return
	}
	l.logger.Trace().Int(`worker`, index).Int(`from`, from).Int(`count`, n).Log(`worker stole tasks`)
}

func (l *eventLog) workerParked(index int) {
	if l.logger == nil || !l.allowTrace(`park`) {
		return
	}
	l.logger.Trace().Int(`worker`, index).Log(`worker parked`)
}

func (l *eventLog) workerUnparked(index int) {
	if l.logger == nil || !l.allowTrace(`unpark`) {
		return
	}
	l.logger.Trace().Int(`worker`, index).Log(`worker unparked`)
}

func (l *eventLog) workerSpawned(index int) {
	if l.logger == nil {
		return
	}
	l.logger.Debug().Int(`worker`, index).Log(`worker goroutine spawned`)
}

func (l *eventLog) blockInPlace(index int) {
	if l.logger == nil {
		return
	}
	l.logger.Debug().Int(`worker`, index).Log(`block in place hand-off`)
}

func (l *eventLog) closing() {
	if l.logger == nil {
		return
	}
	l.logger.Info().Log(`scheduler close requested`)
}

func (l *eventLog) closed(numClosedWorkers int) {
	if l.logger == nil {
		return
	}
	l.logger.Info().Int(`num_closed_workers`, numClosedWorkers).Log(`scheduler shutdown complete`)
}

func (l *eventLog) workerError(index int, err error) {
	if l.logger == nil {
		return
	}
	l.logger.Err().Int(`worker`, index).Err(err).Log(`worker exited abnormally`)
}
