//go:build windows

package main

import (
	"os"
	"os/signal"
)

// signalChannel delivers os.Interrupt. The runtime also maps Ctrl+Break and
// console close to it; Windows has no SIGTERM.
func signalChannel() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	return ch
}
