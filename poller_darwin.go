//go:build darwin

package reactor

import (
	"golang.org/x/sys/unix"
)

// kqueueBackend is the Darwin readiness backend, grounded on the sibling
// pack repo's kqueue wiring (SeleniaProject-Orizon's
// kqueue_poller_bsd.go, which calls unix.Kqueue/Kevent with
// EV_ADD/EV_DELETE). kqueue tracks read and write readiness as two
// independent filters per descriptor rather than epoll's single combined
// event, so Modify diffs each bit separately instead of going through
// classifyTransition's single combined-mask model.
type kqueueBackend struct {
	kq       int
	eventBuf [256]unix.Kevent_t
}

func newBackend() Backend { return &kqueueBackend{kq: -1} }

func (b *kqueueBackend) Init() error {
	fd, err := unix.Kqueue()
	if err != nil {
		return err
	}
	b.kq = fd
	return nil
}

func (b *kqueueBackend) Close() error {
	if b.kq < 0 {
		return nil
	}
	err := unix.Close(b.kq)
	b.kq = -1
	return err
}

func (b *kqueueBackend) Modify(fd int, old, want Events) error {
	if err := b.modifyFilter(fd, unix.EVFILT_READ, old&EventRead != 0, want&EventRead != 0); err != nil {
		return err
	}
	return b.modifyFilter(fd, unix.EVFILT_WRITE, old&EventWrite != 0, want&EventWrite != 0)
}

func (b *kqueueBackend) modifyFilter(fd int, filter int16, had, want bool) error {
	switch {
	case had == want:
		return nil
	case want:
		kev := unix.Kevent_t{Ident: uint64(fd), Filter: filter, Flags: unix.EV_ADD | unix.EV_ENABLE}
		_, err := unix.Kevent(b.kq, []unix.Kevent_t{kev}, nil, nil)
		if err != nil && err != unix.EEXIST {
			return &fatalBackendError{op: "kevent(ADD)", err: err}
		}
		return nil
	default:
		kev := unix.Kevent_t{Ident: uint64(fd), Filter: filter, Flags: unix.EV_DELETE}
		_, err := unix.Kevent(b.kq, []unix.Kevent_t{kev}, nil, nil)
		switch err {
		case nil, unix.ENOENT, unix.EBADF, unix.EPERM:
			return nil
		default:
			return &fatalBackendError{op: "kevent(DELETE)", err: err}
		}
	}
}

func (b *kqueueBackend) Wait(loop *Loop, timeoutMS int) error {
	var ts *unix.Timespec
	if timeoutMS >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMS) * 1_000_000)
		ts = &t
	}
	n, err := unix.Kevent(b.kq, nil, b.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return &fatalBackendError{op: "kevent_wait", err: err}
	}
	for i := 0; i < n; i++ {
		ev := b.eventBuf[i]
		var m Events
		switch ev.Filter {
		case unix.EVFILT_READ:
			m = EventRead
		case unix.EVFILT_WRITE:
			m = EventWrite
		}
		if ev.Flags&unix.EV_ERROR != 0 || ev.Flags&unix.EV_EOF != 0 {
			// Reported as simultaneous read+write readiness so a callback
			// gated on either bit still observes the fd becoming "ready"
			// one last time and detects the condition via its own
			// read/write attempt.
			m |= EventRead | EventWrite
		}
		if m != 0 {
			loop.onBackendEvent(int(ev.Ident), m)
		}
	}
	return nil
}
