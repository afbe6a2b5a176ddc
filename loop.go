package reactor

import (
	"fmt"
	"sync/atomic"
)

// backendMinTimeoutMS is the smallest timeout ever passed to a backend's
// Wait call; a zero timeout would busy-spin the loop.
const backendMinTimeoutMS = 1

// backendMaxTimeoutMS is the default ceiling on a single Wait call:
// roughly 59.743 seconds, matching the reference implementation's
// constant and far inside the range any backend's timeout argument
// (epoll's is a plain int of milliseconds) accepts.
const backendMaxTimeoutMS = 59743

// overloadThresholdMS is the busy-time floor above which a tick is
// reported to WithOverloadHandler; ticks busier than this are consuming
// a meaningful slice of the backend's minimum granularity rather than
// just doing ordinary dispatch work.
const overloadThresholdMS = 16

// Loop is the reactor core: one readiness backend, one timer heap, one
// pending-event queue, driven by repeated calls to tick from Run. A Loop
// is constructed with New, configured via LoopOption, and must have
// Run called on exactly one goroutine; StartIO/StopIO/StartTimer/
// StopTimer must only be called from that same goroutine (or before Run
// is first called). Wake, Quit and SetBackendTimeCoarse are the only
// methods safe to call from elsewhere.
type Loop struct {
	clock    *Clock
	registry *registry
	backend  Backend
	pending  pendingQueue
	timers   timerHeap
	wake     *wakeNotifier

	opts loopOptions

	done atomic.Bool

	lastMS     int64
	busyTimeMS int64

	// backendTimeCoarseMS is accessed atomically: the loop goroutine
	// writes it every tick, but SetBackendTimeCoarse may lower it from
	// any goroutine.
	backendTimeCoarseMS int64
}

// New constructs a Loop with a real monotonic/wall clock and the
// platform's native readiness backend (epoll on Linux, kqueue on
// Darwin, a channel-driven fallback on Windows — see poller_windows.go).
func New(opts ...LoopOption) (*Loop, error) {
	return newLoop(NewClock(), newBackend(), opts)
}

// NewWithClock is identical to New but takes an explicit Clock,
// typically one built with NewClockFromSource wrapping a
// benbjohnson/clock.Mock, so timer and jump-detection tests can drive
// time deterministically instead of sleeping on the wall clock.
func NewWithClock(clock *Clock, opts ...LoopOption) (*Loop, error) {
	return newLoop(clock, newBackend(), opts)
}

func newLoop(clock *Clock, backend Backend, opts []LoopOption) (*Loop, error) {
	if err := backend.Init(); err != nil {
		return nil, err
	}
	wn, err := newWakeNotifier()
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	l := &Loop{
		clock:    clock,
		registry: &registry{},
		backend:  backend,
		wake:     wn,
		opts:     resolveLoopOptions(opts),
	}
	if err := wn.arm(l); err != nil {
		_ = backend.Close()
		return nil, err
	}
	return l, nil
}

// StartIO registers w with the loop. w must not already be active, must
// have a non-negative Fd, a non-zero requested Events mask, and a
// callback (set via NewIOWatcher). Registration itself is deferred to
// the top of the next tick (fd_reify); StartIO only records the change.
func (l *Loop) StartIO(w *IOWatcher) error {
	if w.base.active != 0 {
		return ErrWatcherActive
	}
	if w.Fd < 0 || w.Events == 0 || w.base.cb == nil {
		return ErrInvalidWatcher
	}
	l.registry.start(w)
	return nil
}

// StopIO unregisters w. Idempotent: stopping an already-inactive watcher
// is a no-op.
func (l *Loop) StopIO(w *IOWatcher) {
	if w.base.active == 0 {
		return
	}
	l.registry.stop(w)
	l.pending.clearPending(&w.base)
}

// StartTimer registers w with the loop's timer heap. w must not already
// be active, must have a non-negative At (the delay before first fire)
// and a non-negative Repeat, and a callback. At is rebased from a
// relative delay to an absolute monotonic deadline as a side effect.
func (l *Loop) StartTimer(w *TimerWatcher) error {
	if w.base.active != 0 {
		return ErrWatcherActive
	}
	if w.At < 0 || w.Repeat < 0 || w.base.cb == nil {
		return ErrInvalidWatcher
	}
	w.At += l.clock.MonotonicMS()
	pushTimer(&l.timers, w)
	return nil
}

// StopTimer unregisters w, converting At back to a relative delay: the
// time remaining until its deadline at the moment of the call (not the
// original delay), so starting it again resumes that remaining delay.
// Idempotent.
func (l *Loop) StopTimer(w *TimerWatcher) {
	if w.base.active == 0 {
		return
	}
	now := l.clock.MonotonicMS()
	removeTimer(&l.timers, w)
	w.At -= now
	l.pending.clearPending(&w.base)
}

// Wake interrupts a blocked backend.Wait call from any goroutine. Used
// internally by Quit, and available directly for collaborators that
// need to push the loop out of a long wait without a timer (e.g. a
// worker thread finishing a job started via StartIO).
func (l *Loop) Wake() error {
	return l.wake.signal()
}

// Quit requests the loop stop at the end of the current tick (or
// immediately, if called before Run). Safe to call from any goroutine,
// including from within a watcher callback running on the loop's own
// goroutine (the stop-inside-callback scenario).
func (l *Loop) Quit() {
	l.done.Store(true)
	_ = l.Wake()
}

// Close releases the backend and wake-notifier resources. Run must have
// returned (or never been called) first.
func (l *Loop) Close() error {
	err1 := l.wake.close()
	err2 := l.backend.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// MonotonicMS returns the loop's last-sampled monotonic time.
func (l *Loop) MonotonicMS() int64 { return l.clock.MonotonicMS() }

// RealtimeSeconds returns the loop's last-sampled, interpolated
// wall-clock time.
func (l *Loop) RealtimeSeconds() int64 { return l.clock.RealtimeSeconds() }

// BusyTimeMS returns how long the most recently completed tick spent
// outside backend.Wait (reification, timer firing, pending dispatch).
func (l *Loop) BusyTimeMS() int64 { return l.busyTimeMS }

// SetBackendTimeCoarse lowers the deadline for the next backend.Wait
// block to ms, a monotonic timestamp. It only ever lowers the deadline:
// calls that would raise it (ms greater than the current value) are
// ignored, so a collaborator racing the loop's own coarse-timeout
// bookkeeping can never extend a wait past what the loop itself already
// committed to. Safe to call from any goroutine; a call made while the
// loop is blocked in Wait does not shorten that wait, and the loop
// resets the deadline to now+backendMaxTimeoutMS when the wait returns.
func (l *Loop) SetBackendTimeCoarse(ms int64) {
	for {
		cur := atomic.LoadInt64(&l.backendTimeCoarseMS)
		if ms >= cur {
			return
		}
		if atomic.CompareAndSwapInt64(&l.backendTimeCoarseMS, cur, ms) {
			return
		}
	}
}

// Run drives the loop until Quit is called or a fatal backend error
// occurs. It returns nil on a clean Quit, or the fatal error otherwise.
func (l *Loop) Run() error {
	l.clock.update()
	l.lastMS = l.clock.MonotonicMS()
	atomic.StoreInt64(&l.backendTimeCoarseMS, l.lastMS+l.opts.backendMaxTimeoutMS)

	for !l.done.Load() {
		if err := l.tick(); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) tick() error {
	if err := l.registry.reify(l.backend); err != nil {
		l.opts.logger.Error("fd_reify", err)
		return err
	}

	l.clock.update()
	now := l.clock.MonotonicMS()
	l.busyTimeMS = now - l.lastMS
	if l.busyTimeMS > overloadThresholdMS {
		l.opts.logger.Warn("tick overload", map[string]string{"busy_ms": fmt.Sprint(l.busyTimeMS)})
		if l.opts.onOverload != nil {
			l.opts.onOverload(fmt.Errorf("reactor: tick busy for %dms", l.busyTimeMS))
		}
	}

	waitMS := l.computeWaitTime(now)
	if err := l.safeWait(waitMS); err != nil {
		l.opts.logger.Error("backend_wait", err)
		return err
	}

	l.clock.update()
	l.lastMS = l.clock.MonotonicMS()
	atomic.StoreInt64(&l.backendTimeCoarseMS, l.lastMS+l.opts.backendMaxTimeoutMS)

	l.timersReify()
	l.invokePendingSafely()

	if l.opts.runningHook != nil {
		l.opts.runningHook()
	}
	return nil
}

// computeWaitTime bounds the next backend.Wait call by the coarse
// backend-timeout deadline and, if any timer is pending, by the time
// until the earliest one fires — never less than backendMinTimeoutMS.
func (l *Loop) computeWaitTime(now int64) int {
	wait := atomic.LoadInt64(&l.backendTimeCoarseMS) - now
	if len(l.timers) > 0 {
		if until := l.timers[0].At - now; until < wait {
			wait = until
		}
	}
	if wait < backendMinTimeoutMS {
		wait = backendMinTimeoutMS
	}
	return int(wait)
}

func (l *Loop) safeWait(waitMS int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reactor: panic in backend wait: %v", r)
		}
	}()
	return l.backend.Wait(l, waitMS)
}

// timersReify fires every timer whose deadline has passed: a repeating
// timer is advanced by Repeat (falling back to Reschedule, or snapping
// to now, if it's still behind) and re-heapified in place; a one-shot
// timer is removed from the heap entirely. Both cases feed a TIMER
// event for dispatch in invokePending.
func (l *Loop) timersReify() {
	now := l.clock.MonotonicMS()
	for len(l.timers) > 0 && l.timers[0].At < now {
		root := l.timers[0]
		if root.Repeat > 0 {
			root.At += root.Repeat
			if root.At < now {
				if root.Reschedule != nil {
					root.At = root.Reschedule(now, root.At)
				} else {
					root.At = now
				}
			}
			fixTimerRoot(&l.timers)
		} else {
			removeTimer(&l.timers, root)
			root.At -= now
		}
		l.pending.feedEvent(&root.base, EventTimer)
	}
}

// invokePendingSafely drains the pending queue, recovering from any
// panicking callback so one misbehaving watcher can't take the whole
// loop down; the panic is logged and dispatch continues with the next
// entry.
func (l *Loop) invokePendingSafely() {
	l.pending.invokePending(l.invokeOne)
}

func (l *Loop) invokeOne(b *watcherBase, revents Events) {
	defer func() {
		if r := recover(); r != nil {
			l.opts.logger.Error("watcher_callback_panic", fmt.Errorf("%v", r))
		}
	}()
	if b.cb != nil {
		b.cb(revents)
	}
}

// onBackendEvent is called by a Backend implementation for each
// readiness event it observes; it looks the fd up in the registry and
// coalesces the event into the pending queue.
func (l *Loop) onBackendEvent(fd int, revents Events) {
	w := l.registry.lookup(fd)
	if w == nil {
		return
	}
	l.pending.feedEvent(&w.base, revents)
}
