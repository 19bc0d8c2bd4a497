//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// signalChannel delivers SIGINT and SIGTERM. Service managers stop the daemon
// with SIGTERM.
func signalChannel() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}
