package multiplexer

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// schedulerOptions holds configuration accumulated from [Option] values
// passed to [New].
type schedulerOptions struct {
	size          int
	logger        *logiface.Logger[*stumpy.Event]
	beforePark    func(workerIndex int)
	afterUnpark   func(workerIndex int)
	blockingSpawn BlockingSpawner
	driver        Driver
}

// Option configures a [Shared] at construction time, following the same
// shape as the teacher's LoopOption: an exported interface with a single
// unexported apply method, populated by With... constructors below.
type Option interface {
	apply(*schedulerOptions)
}

type optionFunc func(*schedulerOptions)

func (f optionFunc) apply(o *schedulerOptions) { f(o) }

// WithSize sets the number of workers in the pool. Must be >= 1. Defaults
// to 1 if never supplied or supplied as <= 0.
func WithSize(n int) Option {
	return optionFunc(func(o *schedulerOptions) {
		o.size = n
	})
}

// WithLogger attaches a structured logger for worker lifecycle events
// (search/park/steal/shutdown). A nil logger (the default) disables
// logging entirely; no log call sites panic on a nil logger.
func WithLogger(logger *logiface.Logger[*stumpy.Event]) Option {
	return optionFunc(func(o *schedulerOptions) {
		o.logger = logger
	})
}

// WithBeforePark registers a callback invoked on a worker's goroutine
// immediately before it attempts to park (spec.md §4.9 step 1).
func WithBeforePark(fn func(workerIndex int)) Option {
	return optionFunc(func(o *schedulerOptions) {
		o.beforePark = fn
	})
}

// WithAfterUnpark registers a callback invoked on a worker's goroutine
// immediately after it leaves the parked state (spec.md §4.9 step 5).
func WithAfterUnpark(fn func(workerIndex int)) Option {
	return optionFunc(func(o *schedulerOptions) {
		o.afterUnpark = fn
	})
}

// WithBlockingSpawner overrides how [BlockInPlace] offloads a worker's
// Core to a replacement goroutine. The default spawns a plain goroutine
// running [Worker.Run]. Tests substitute a deterministic fake.
func WithBlockingSpawner(spawner BlockingSpawner) Option {
	return optionFunc(func(o *schedulerOptions) {
		o.blockingSpawn = spawner
	})
}

// WithDriver attaches the I/O/timer driver consulted during the
// zero-duration park performed on each maintenance tick (spec.md §4.6
// step 2). The driver is an external collaborator; see [Driver].
func WithDriver(d Driver) Option {
	return optionFunc(func(o *schedulerOptions) {
		o.driver = d
	})
}

func resolveOptions(opts []Option) *schedulerOptions {
	cfg := &schedulerOptions{
		size: 1,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(cfg)
	}
	if cfg.size < 1 {
		cfg.size = 1
	}
	return cfg
}
