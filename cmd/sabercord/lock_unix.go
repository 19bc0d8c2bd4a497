//go:build !windows

package main

import (
	"fmt"
	"os"
	"syscall"
)

// lockFile takes an exclusive flock(2) on f without blocking. It fails with
// EWOULDBLOCK while another daemon holds the PID file.
func lockFile(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return fmt.Errorf("lock file %s: %w", f.Name(), err)
	}
	return nil
}

// unlockFile drops the flock. Closing f drops it too.
func unlockFile(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		return fmt.Errorf("unlock file %s: %w", f.Name(), err)
	}
	return nil
}
