//go:build linux

package multiplexer

import (
	"golang.org/x/sys/unix"
)

// createWakeFD creates an eventfd for native wake-draining (Linux),
// directly adapted from the teacher's createWakeFd
// (go-eventloop/wakeup_linux.go). Returns the same fd as both ends, since
// eventfd is read/write on one descriptor.
func createWakeFD(initval uint, flags int) (int, int, error) {
	fd, err := unix.Eventfd(initval, flags)
	return fd, fd, err
}

// closeWakeFD closes the wake eventfd.
func closeWakeFD(wakeFD, _ int) error {
	if wakeFD >= 0 {
		_ = unix.Close(wakeFD)
	}
	return nil
}

// drainWakeFD drains any pending wake-ups without blocking.
func drainWakeFD(wakeFD int) error {
	if wakeFD < 0 {
		return nil
	}
	var buf [8]byte
	for {
		if _, err := unix.Read(wakeFD, buf[:]); err != nil {
			break
		}
	}
	return nil
}

// signalWakeFD writes to the eventfd, incrementing its counter.
func signalWakeFD(wakeFD int) error {
	if wakeFD < 0 {
		return nil
	}
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(wakeFD, buf[:])
	return err
}
