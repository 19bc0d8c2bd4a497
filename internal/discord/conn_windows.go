// Discord IPC discovery for Windows, where the client listens on named pipes
// reached through go-winio.

//go:build windows

package discord

import (
	"net"
	"strconv"
	"time"

	"github.com/Microsoft/go-winio"
)

// pipeDialTimeout bounds each pipe probe so a busy slot does not stall startup.
var pipeDialTimeout = 500 * time.Millisecond

// connectToDiscord dials the first reachable IPC named pipe.
func connectToDiscord() (net.Conn, error) {
	for i := range maxIPCSlots {
		conn, err := winio.DialPipe(`\\.\pipe\discord-ipc-`+strconv.Itoa(i), &pipeDialTimeout)
		if err == nil {
			return conn, nil
		}
	}
	return nil, ErrIPCNotAvailable
}
