package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPendingQueueCoalescesRepeatedFeeds(t *testing.T) {
	var q pendingQueue
	b := &watcherBase{}

	q.feedEvent(b, EventRead)
	q.feedEvent(b, EventWrite)

	require.Equal(t, 1, len(q.items))
	require.Equal(t, EventRead|EventWrite, b.revents)
}

func TestPendingQueueClearPendingNeutralizesWithoutCompaction(t *testing.T) {
	var q pendingQueue
	a := &watcherBase{}
	b := &watcherBase{}
	q.feedEvent(a, EventRead)
	q.feedEvent(b, EventRead)

	q.clearPending(a)
	require.Len(t, q.items, 2, "clearPending must not shift queue entries")
	require.Zero(t, a.pending)
	require.Zero(t, a.revents)

	var dispatched []*watcherBase
	q.invokePending(func(wb *watcherBase, revents Events) {
		dispatched = append(dispatched, wb)
	})
	require.Equal(t, []*watcherBase{b}, dispatched)
}

func TestPendingQueueLateStopDuringDispatchIsHonored(t *testing.T) {
	var q pendingQueue
	var second *watcherBase
	first := &watcherBase{}
	second = &watcherBase{}
	q.feedEvent(first, EventRead)
	q.feedEvent(second, EventRead)

	var dispatched []*watcherBase
	q.invokePending(func(wb *watcherBase, revents Events) {
		dispatched = append(dispatched, wb)
		if wb == first {
			// Simulate first's callback stopping second.
			q.clearPending(second)
		}
	})

	require.Equal(t, []*watcherBase{first}, dispatched)
}

func TestPendingQueueResetsAfterDrain(t *testing.T) {
	var q pendingQueue
	b := &watcherBase{}
	q.feedEvent(b, EventRead)
	q.invokePending(func(*watcherBase, Events) {})
	require.Empty(t, q.items)

	// Re-feeding after a drain must re-queue from scratch.
	q.feedEvent(b, EventWrite)
	require.Len(t, q.items, 1)
	require.Equal(t, 1, b.pending)
}
