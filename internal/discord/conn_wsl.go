// Under WSL2, Discord runs on the Windows side and its named pipe is not
// visible to Linux processes. A relay such as
//
//	socat UNIX-LISTEN:/tmp/discord-ipc-0,fork EXEC:"npiperelay.exe -ep -s //./pipe/discord-ipc-0"
//
// exposes it as a Unix socket, usually somewhere the standard probe already
// covers. The helpers here add the few extra spots relay scripts use.

//go:build linux

package discord

import (
	"os"
	"path/filepath"
	"strings"
)

// procVersion is read to detect WSL.
var procVersion = "/proc/version"

// isWSL reports whether the process runs inside WSL.
func isWSL() bool {
	data, err := os.ReadFile(procVersion)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), "microsoft")
}

// wslRelayDirs returns extra directories a relay may create sockets in.
func wslRelayDirs() []string {
	if !isWSL() {
		return nil
	}
	dirs := []string{"/mnt/wslg/runtime-dir"}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".discord-relay"))
	}
	return dirs
}
