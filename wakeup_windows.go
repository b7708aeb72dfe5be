//go:build windows

package multiplexer

// createWakeFD has no native equivalent on Windows in this package: a
// real implementation would post through an IOCP handle (see the
// teacher's wakeup_windows.go, PostQueuedCompletionStatus), but the IOCP
// handle itself belongs to the I/O driver, which spec.md §1 places out of
// scope. Native wake mode degrades to a no-op here; Park/Unpark still
// function correctly via the portable channel path in parker.go.
func createWakeFD(_ uint, _ int) (int, int, error) {
	return -1, -1, nil
}

func closeWakeFD(_, _ int) error { return nil }

func drainWakeFD(_ int) error { return nil }

func signalWakeFD(_ int) error { return nil }
