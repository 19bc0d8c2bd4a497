// Discord IPC socket discovery for Unix-like systems. Beat Saber usually runs
// under Proton on Linux while Discord runs natively, so the daemon probes the
// same directories the native client listens in.

//go:build !windows

package discord

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
)

// clientVariants are the socket name prefixes of the stable, Canary and PTB
// Discord builds.
var clientVariants = []string{"discord-ipc", "discordcanary-ipc", "discordptb-ipc"}

// connectToDiscord dials the first reachable IPC socket.
func connectToDiscord() (net.Conn, error) {
	if conn, ok := dialFirst(socketCandidates(socketDirs())); ok {
		return conn, nil
	}
	if isWSL() {
		return nil, fmt.Errorf("%w: running under WSL, a socat + npiperelay.exe relay is needed to reach the Windows client", ErrIPCNotAvailable)
	}
	return nil, ErrIPCNotAvailable
}

// socketDirs lists the directories that may contain a Discord socket, most
// likely first. Sandboxed installs (Snap, Flatpak) use app-scoped
// subdirectories of the user runtime dir.
func socketDirs() []string {
	var dirs []string
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		dirs = append(dirs, dir)
	}
	for _, env := range []string{"TMPDIR", "TMP", "TEMP"} {
		if dir := os.Getenv(env); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	dirs = append(dirs, "/tmp")

	runtime := "/run/user/" + strconv.Itoa(os.Getuid())
	for _, app := range []string{"snap.discord", "snap.discord-canary", "snap.discord-ptb"} {
		dirs = append(dirs, filepath.Join(runtime, app))
	}
	for _, app := range []string{"com.discordapp.Discord", "com.discordapp.DiscordCanary", "com.discordapp.DiscordPTB"} {
		dirs = append(dirs, filepath.Join(runtime, "app", app))
	}

	return append(dirs, wslRelayDirs()...)
}

// socketCandidates expands each directory into every variant and slot,
// skipping duplicate directories.
func socketCandidates(dirs []string) []string {
	seen := make(map[string]bool, len(dirs))
	var out []string
	for _, dir := range dirs {
		if seen[dir] {
			continue
		}
		seen[dir] = true
		for _, v := range clientVariants {
			for i := range maxIPCSlots {
				out = append(out, filepath.Join(dir, v+"-"+strconv.Itoa(i)))
			}
		}
	}
	return out
}

// dialFirst returns a connection to the first socket in paths that accepts.
func dialFirst(paths []string) (net.Conn, bool) {
	for _, p := range paths {
		if conn, err := net.Dial("unix", p); err == nil {
			return conn, true
		}
	}
	return nil, false
}
