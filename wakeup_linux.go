//go:build linux

package reactor

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// createWakeFd creates an eventfd for cross-thread wake-up notifications
// on Linux, used as both the read and write end.
func createWakeFd() (readFd, writeFd int, err error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	return fd, fd, err
}

func closeWakeFd(readFd, writeFd int) error {
	if readFd >= 0 {
		return unix.Close(readFd)
	}
	return nil
}

// drainWake empties the eventfd's counter so repeated wakes before the
// loop notices them don't accumulate unbounded readiness.
func drainWake(readFd int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(readFd, buf[:]); err != nil {
			return
		}
	}
}

// signalWake increments the eventfd's counter by one, waking any Wait
// blocked on it. Safe to call from any goroutine.
func signalWake(writeFd int) error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(writeFd, buf[:])
	return err
}
