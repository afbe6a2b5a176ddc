package reactor

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

// simBackend is a Backend test double: Modify just records what it was
// asked to do, and Wait either runs a caller-supplied hook (to simulate
// readiness or a wall-clock jump arriving mid-wait) or, by default,
// advances the shared mock clock by the requested timeout (plus a
// millisecond, since a real OS wait never returns strictly before its
// deadline) so timer-driven scenarios don't need real sleeps.
type simBackend struct {
	mock     *clock.Mock
	modifies []recordedModify
	onWait   func(l *Loop, timeoutMS int)
}

func (b *simBackend) Init() error  { return nil }
func (b *simBackend) Close() error { return nil }

func (b *simBackend) Modify(fd int, old, want Events) error {
	b.modifies = append(b.modifies, recordedModify{fd: fd, old: old, new: want})
	return nil
}

func (b *simBackend) Wait(l *Loop, timeoutMS int) error {
	if b.onWait != nil {
		b.onWait(l, timeoutMS)
		return nil
	}
	b.mock.Add(time.Duration(timeoutMS+1) * time.Millisecond)
	return nil
}

// newTestLoop builds a Loop over a mock clock and a simBackend, priming
// the scheduling state the same way Run does, so tests can drive
// individual ticks directly without calling Run (which would busy-loop
// forever against a non-blocking fake backend).
func newTestLoop(t *testing.T, opts ...LoopOption) (*Loop, *clock.Mock, *simBackend) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Unix(1_600_000_000, 0))
	c := NewClockFromSource(mock)
	backend := &simBackend{mock: mock}

	l, err := newLoop(c, backend, opts)
	require.NoError(t, err)

	l.clock.update()
	l.lastMS = l.clock.MonotonicMS()
	l.backendTimeCoarseMS = l.lastMS + l.opts.backendMaxTimeoutMS

	return l, mock, backend
}

func TestScenarioFireOnceTimer(t *testing.T) {
	l, _, _ := newTestLoop(t)
	var fired int
	w := NewTimerWatcher(50, 0, func(Events) { fired++ })
	require.NoError(t, l.StartTimer(w))

	require.NoError(t, l.tick())

	require.Equal(t, 1, fired)
	require.False(t, w.Active())
}

func TestScenarioPeriodicCatchUpCollapsesMissedIntervals(t *testing.T) {
	l, _, backend := newTestLoop(t)
	var fired int
	w := NewTimerWatcher(100, 100, func(Events) { fired++ })
	require.NoError(t, l.StartTimer(w))

	// Simulate one long pause (e.g. a GC stall) spanning several
	// intervals' worth of time in a single backend.Wait call.
	backend.onWait = func(l *Loop, timeoutMS int) {
		backend.mock.Add(350 * time.Millisecond)
	}
	require.NoError(t, l.tick())

	require.Equal(t, 1, fired, "a long pause must not burst out every missed interval")
	require.True(t, w.Active())
}

func TestScenarioDescriptorRecyclingWithinOneTick(t *testing.T) {
	l, _, backend := newTestLoop(t)
	backend.onWait = func(*Loop, int) {} // don't let time pass

	first := NewIOWatcher(42, EventRead, func(Events) {})
	require.NoError(t, l.StartIO(first))
	l.StopIO(first)

	second := NewIOWatcher(42, EventWrite, func(Events) {})
	require.NoError(t, l.StartIO(second))

	require.NoError(t, l.tick())

	var modifiesForFD42 []recordedModify
	for _, m := range backend.modifies {
		if m.fd == 42 {
			modifiesForFD42 = append(modifiesForFD42, m)
		}
	}
	require.Equal(t, []recordedModify{{fd: 42, old: 0, new: EventWrite}}, modifiesForFD42,
		"recycling a fd within one tick must collapse to a single ADD for the final watcher")
}

func TestScenarioCoalescedReadiness(t *testing.T) {
	l, _, backend := newTestLoop(t)
	var got Events
	var calls int
	w := NewIOWatcher(9, EventRead|EventWrite, func(e Events) { got = e; calls++ })
	require.NoError(t, l.StartIO(w))

	backend.onWait = func(l *Loop, _ int) {
		l.onBackendEvent(9, EventRead)
		l.onBackendEvent(9, EventWrite)
		l.onBackendEvent(9, EventRead) // duplicate; must still coalesce to one callback
	}
	require.NoError(t, l.tick())

	require.Equal(t, 1, calls)
	require.Equal(t, EventRead|EventWrite, got)
}

func TestScenarioClockJumpDoesNotPerturbTimerScheduling(t *testing.T) {
	var monoMS int64
	var wallSec int64 = 1_700_000_000
	c := newClock(func() int64 { return monoMS }, func() int64 { return wallSec })
	backend := &fakeBackend{}
	l, err := newLoop(c, backend, nil)
	require.NoError(t, err)
	l.clock.update()
	l.lastMS = l.clock.MonotonicMS()
	l.backendTimeCoarseMS = l.lastMS + l.opts.backendMaxTimeoutMS

	var fired int
	w := NewTimerWatcher(100, 0, func(Events) { fired++ })
	require.NoError(t, l.StartTimer(w))

	// A large wall-clock jump, with the monotonic clock barely moving,
	// must not make the timer fire early or late: scheduling is entirely
	// monotonic-driven.
	wallSec += 100_000
	monoMS += 50
	require.NoError(t, l.tick())
	require.Equal(t, 0, fired, "timer must not react to a pure wall-clock jump")

	monoMS += 100
	require.NoError(t, l.tick())
	require.Equal(t, 1, fired)
}

func TestScenarioStopInsideCallbackStopsTheLoop(t *testing.T) {
	l, _, _ := newTestLoop(t)
	var fired int
	w := NewTimerWatcher(10, 0, func(Events) {
		fired++
		l.Quit()
	})
	require.NoError(t, l.StartTimer(w))

	err := l.Run()

	require.NoError(t, err)
	require.Equal(t, 1, fired)
}

func TestScenarioStopInsideCallbackStopsALaterWatcherSafely(t *testing.T) {
	l, _, backend := newTestLoop(t)
	backend.onWait = func(*Loop, int) {}

	var secondFired bool
	second := NewIOWatcher(11, EventRead, func(Events) { secondFired = true })
	require.NoError(t, l.StartIO(second))

	first := NewIOWatcher(10, EventRead, func(Events) {
		l.StopIO(second)
	})
	require.NoError(t, l.StartIO(first))

	backend.onWait = func(l *Loop, _ int) {
		l.onBackendEvent(10, EventRead)
		l.onBackendEvent(11, EventRead)
	}
	require.NoError(t, l.tick())

	require.False(t, secondFired, "a watcher stopped by an earlier callback in the same batch must not fire")
}
