package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimerHeapOrdersByDeadline(t *testing.T) {
	var h timerHeap
	a := &TimerWatcher{At: 300}
	b := &TimerWatcher{At: 100}
	c := &TimerWatcher{At: 200}

	pushTimer(&h, a)
	pushTimer(&h, b)
	pushTimer(&h, c)

	require.Equal(t, b, h[0])
}

func TestTimerHeapRemoveArbitraryPosition(t *testing.T) {
	var h timerHeap
	watchers := make([]*TimerWatcher, 5)
	for i := range watchers {
		watchers[i] = &TimerWatcher{At: int64(100 * (5 - i))}
		pushTimer(&h, watchers[i])
	}
	require.Equal(t, 5, h.Len())

	// Remove one from the middle, not the root.
	target := watchers[2]
	require.NotZero(t, target.base.active)
	removeTimer(&h, target)

	require.Equal(t, 4, h.Len())
	require.Zero(t, target.base.active)
	for _, w := range h {
		require.NotSame(t, target, w)
	}

	// Heap invariant still holds: every parent <= its children.
	for i := 1; i < len(h); i++ {
		parent := (i - 1) / 2
		require.LessOrEqual(t, h[parent].At, h[i].At)
	}
}

func TestTimerHeapRemoveIsIdempotentOnInactiveWatcher(t *testing.T) {
	var h timerHeap
	w := &TimerWatcher{At: 100}
	removeTimer(&h, w) // never pushed; must be a no-op, not a panic
	require.Zero(t, h.Len())
}

func TestTimerHeapFixRootAfterMutation(t *testing.T) {
	var h timerHeap
	a := &TimerWatcher{At: 100}
	b := &TimerWatcher{At: 200}
	c := &TimerWatcher{At: 300}
	pushTimer(&h, a)
	pushTimer(&h, b)
	pushTimer(&h, c)
	require.Equal(t, a, h[0])

	h[0].At = 250 // a now belongs between b and c
	fixTimerRoot(&h)

	require.Equal(t, b, h[0])
}
