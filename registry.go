package reactor

// registry tracks the set of active IOWatchers by file descriptor and
// the set of descriptors whose backend registration needs reconciling:
// a dense, directly fd-indexed slice rather than a map, so registration/
// lookup is O(1) without hashing. Changes are only recorded as they
// happen; registry.reify flushes the whole change set to the backend
// once per tick, so a descriptor started and stopped within the same
// tick never reaches the kernel at all.
//
// lastMask remembers what the backend was last told to watch for a
// given fd, independent of whether a watcher is still registered there:
// reify needs that value even after stop has already cleared fds[fd],
// otherwise a stop-then-reify sequence would have no "old" mask to diff
// against and would silently skip the DELETE.
type registry struct {
	fds         []*IOWatcher
	lastMask    []Events
	changes     []int
	inChangeSet []bool
}

func (r *registry) ensureSize(fd int) {
	if fd < len(r.fds) {
		return
	}
	n := fd + 1
	fds := make([]*IOWatcher, n)
	copy(fds, r.fds)
	r.fds = fds
	mask := make([]Events, n)
	copy(mask, r.lastMask)
	r.lastMask = mask
	flags := make([]bool, n)
	copy(flags, r.inChangeSet)
	r.inChangeSet = flags
}

func (r *registry) markChanged(fd int) {
	if r.inChangeSet[fd] {
		return
	}
	r.inChangeSet[fd] = true
	r.changes = append(r.changes, fd)
}

// start registers w as the active watcher for its Fd and marks the fd
// for reconciliation. w.Fd must not already have an active watcher.
func (r *registry) start(w *IOWatcher) {
	r.ensureSize(w.Fd)
	r.fds[w.Fd] = w
	w.base.active = w.Fd + 1
	r.markChanged(w.Fd)
}

// stop clears the active watcher for w.Fd (if w is still the one
// registered there) and marks the fd for reconciliation.
func (r *registry) stop(w *IOWatcher) {
	if w.Fd < len(r.fds) && r.fds[w.Fd] == w {
		r.fds[w.Fd] = nil
	}
	w.base.active = 0
	r.markChanged(w.Fd)
}

// lookup returns the watcher currently registered for fd, or nil.
func (r *registry) lookup(fd int) *IOWatcher {
	if fd < 0 || fd >= len(r.fds) {
		return nil
	}
	return r.fds[fd]
}

// reify flushes the accumulated change set to the backend: for each
// touched fd, it diffs the mask the backend was last told to hold
// against the mask it should hold now (0, if no watcher remains
// registered for that fd) and issues a single ADD/MODIFY/DELETE/no-op,
// including the recovery behavior implemented in Backend.Modify.
func (r *registry) reify(backend Backend) error {
	changes := r.changes
	r.changes = r.changes[:0]
	for _, fd := range changes {
		r.inChangeSet[fd] = false
		var want Events
		if w := r.fds[fd]; w != nil {
			want = w.Events
		}
		old := r.lastMask[fd]
		if err := backend.Modify(fd, old, want); err != nil {
			return err
		}
		r.lastMask[fd] = want
	}
	return nil
}
