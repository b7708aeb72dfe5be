//go:build darwin

package multiplexer

import (
	"syscall"
)

// createWakeFD creates a self-pipe for native wake-draining (Darwin),
// directly adapted from the teacher's createWakeFd
// (go-eventloop/wakeup_darwin.go). initval/flags are accepted only for
// signature symmetry with the Linux eventfd variant.
func createWakeFD(_ uint, _ int) (int, int, error) {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		return -1, -1, err
	}

	cleanup := func() {
		_ = syscall.Close(fds[0])
		_ = syscall.Close(fds[1])
	}

	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])

	if err := syscall.SetNonblock(fds[0], true); err != nil {
		cleanup()
		return -1, -1, err
	}
	if err := syscall.SetNonblock(fds[1], true); err != nil {
		cleanup()
		return -1, -1, err
	}

	return fds[0], fds[1], nil
}

// closeWakeFD closes both ends of the self-pipe.
func closeWakeFD(wakeFD, wakeWriteFD int) error {
	if wakeFD >= 0 {
		_ = syscall.Close(wakeFD)
	}
	if wakeWriteFD >= 0 && wakeWriteFD != wakeFD {
		_ = syscall.Close(wakeWriteFD)
	}
	return nil
}

// drainWakeFD drains any pending bytes from the read end without blocking.
func drainWakeFD(wakeFD int) error {
	if wakeFD < 0 {
		return nil
	}
	var buf [64]byte
	for {
		if _, err := syscall.Read(wakeFD, buf[:]); err != nil {
			break
		}
	}
	return nil
}

// signalWakeFD writes a single byte to the write end of the self-pipe.
func signalWakeFD(wakeWriteFD int) error {
	if wakeWriteFD < 0 {
		return nil
	}
	_, err := syscall.Write(wakeWriteFD, []byte{1})
	return err
}
