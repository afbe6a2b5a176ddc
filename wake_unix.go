//go:build linux || darwin

package reactor

// wakeNotifier delivers cross-thread wake-ups by registering the wake
// pipe/eventfd's read end as an ordinary IOWatcher on the loop's own
// backend — the same mechanism any other collaborator uses, rather than
// a special internal case in Loop.Run's wait calculation.
type wakeNotifier struct {
	readFD, writeFD int
	watcher         *IOWatcher
}

func newWakeNotifier() (*wakeNotifier, error) {
	r, w, err := createWakeFd()
	if err != nil {
		return nil, err
	}
	return &wakeNotifier{readFD: r, writeFD: w}, nil
}

func (n *wakeNotifier) arm(l *Loop) error {
	n.watcher = NewIOWatcher(n.readFD, EventRead, func(Events) { drainWake(n.readFD) })
	return l.StartIO(n.watcher)
}

func (n *wakeNotifier) signal() error { return signalWake(n.writeFD) }

func (n *wakeNotifier) close() error { return closeWakeFd(n.readFD, n.writeFD) }
