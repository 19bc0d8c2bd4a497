package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ///////////////////////////////////////////////
// PID File
// ///////////////////////////////////////////////

// The PID file holds "PID:TOKEN". The token proves which instance wrote it,
// and the advisory lock on the open file proves that instance is alive.

// pidToken returns a random 16-character hex token.
func pidToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writePID creates the PID file, locks it, and writes this process's PID and
// token. Keep the returned file open for the daemon's lifetime and pass it to
// [removePID] on shutdown.
func writePID(dp DataPaths, token string) (*os.File, error) {
	f, err := os.OpenFile(dp.PID(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	fail := func(step string, err error) (*os.File, error) {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("%s PID file: %w", step, err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		return fail("truncate", err)
	}
	if _, err := fmt.Fprintf(f, "%d:%s", os.Getpid(), token); err != nil {
		return fail("write", err)
	}
	return f, nil
}

// removePID unlocks and closes f, then deletes the PID file if it still
// carries token.
func removePID(dp DataPaths, token string, f *os.File) {
	if f != nil {
		_ = unlockFile(f)
		f.Close()
	}
	data, err := os.ReadFile(dp.PID())
	if err != nil {
		return
	}
	if _, tok, ok := strings.Cut(string(data), ":"); ok && tok == token {
		os.Remove(dp.PID())
	}
}

// checkStalePID reports whether another instance holds the PID file lock.
// A file nobody holds is left over from a crash and is removed.
func checkStalePID(dp DataPaths) (alive bool, pid int) {
	f, err := os.OpenFile(dp.PID(), os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if lockErr := lockFile(f); lockErr != nil {
		data, _ := os.ReadFile(dp.PID())
		f.Close()
		pidStr, _, _ := strings.Cut(string(data), ":")
		if p, convErr := strconv.Atoi(pidStr); convErr == nil {
			return true, p
		}
		return true, 0
	}

	_ = unlockFile(f)
	f.Close()
	os.Remove(dp.PID())
	return false, 0
}
