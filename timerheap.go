package reactor

import "container/heap"

// timerHeap is a container/heap min-heap of *TimerWatcher ordered by At.
// Each element keeps a back-reference to its current heap slot, so a
// watcher can be removed from an arbitrary position in O(log n) instead
// of only from the root.
type timerHeap []*TimerWatcher

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool { return h[i].At < h[j].At }

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].base.active = i + 1
	h[j].base.active = j + 1
}

func (h *timerHeap) Push(x any) {
	w := x.(*TimerWatcher)
	w.base.active = len(*h) + 1
	*h = append(*h, w)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	w.base.active = 0
	return w
}

// pushTimer inserts w into the heap and marks it active.
func pushTimer(h *timerHeap, w *TimerWatcher) {
	heap.Push(h, w)
}

// removeTimer removes w from wherever it currently sits in the heap. It
// is a no-op if w is not active. The heap slot is the watcher's own
// base.active field (1-based; container/heap itself is 0-based).
func removeTimer(h *timerHeap, w *TimerWatcher) {
	if w.base.active == 0 {
		return
	}
	heap.Remove(h, w.base.active-1)
}

// fixTimerRoot re-heapifies after the root's At has been mutated in
// place (the periodic-reschedule path in timersReify).
func fixTimerRoot(h *timerHeap) {
	heap.Fix(h, 0)
}
