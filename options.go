package reactor

// loopOptions holds the resolved configuration for a Loop, built up by
// applying LoopOption values in New.
type loopOptions struct {
	logger              Logger
	runningHook         func()
	backendMaxTimeoutMS int64
	onOverload          func(error)
}

func defaultLoopOptions() loopOptions {
	return loopOptions{
		logger:              nopLogger{},
		backendMaxTimeoutMS: backendMaxTimeoutMS,
	}
}

// LoopOption configures a Loop at construction time.
type LoopOption interface {
	apply(*loopOptions)
}

type loopOptionFunc func(*loopOptions)

func (f loopOptionFunc) apply(o *loopOptions) { f(o) }

// WithLogger injects a structured logger for tick-level diagnostics:
// fatal backend errors, panics recovered from watcher callbacks, and
// overload notifications. The default is a no-op logger.
func WithLogger(l Logger) LoopOption {
	return loopOptionFunc(func(o *loopOptions) { o.logger = l })
}

// WithRunningHook installs a function invoked once at the end of every
// tick, after pending callbacks have run, used for embedder bookkeeping
// (e.g. frame pacing, metrics snapshotting) that must observe a
// quiescent loop.
func WithRunningHook(fn func()) LoopOption {
	return loopOptionFunc(func(o *loopOptions) { o.runningHook = fn })
}

// WithBackendMaxTimeout overrides the ceiling (in milliseconds) the loop
// ever blocks in a single backend Wait call, even with no timers
// pending. Values below 1 are clamped to 1.
func WithBackendMaxTimeout(ms int64) LoopOption {
	return loopOptionFunc(func(o *loopOptions) {
		if ms < backendMinTimeoutMS {
			ms = backendMinTimeoutMS
		}
		o.backendMaxTimeoutMS = ms
	})
}

// WithOverloadHandler installs a callback invoked whenever a tick's busy
// time exceeds the fixed overloadThresholdMS (16ms) threshold (see
// collab/ratelimit, which wires this against go-catrate). The default is
// nil (no callback; the overload is still reported to the Logger).
func WithOverloadHandler(fn func(error)) LoopOption {
	return loopOptionFunc(func(o *loopOptions) { o.onOverload = fn })
}

func resolveLoopOptions(opts []LoopOption) loopOptions {
	o := defaultLoopOptions()
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&o)
		}
	}
	return o
}
