// Package remote resolves where published release files live.
//
// The GitHub owner and repository come from build-time ldflags when set,
// otherwise from the origin remote of the working copy the binary runs in.
// Resolution happens once, on first use.
package remote

import (
	"context"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Set at build time via:
//
//	-X tools.zach/dev/sabercord/internal/remote.ldOwner=...
//	-X tools.zach/dev/sabercord/internal/remote.ldRepo=...
var (
	ldOwner string
	ldRepo  string
)

// Branch is the branch release files are published from.
const Branch = "main"

// gitTimeout bounds the git lookup so a hung credential helper cannot stall startup.
const gitTimeout = 2 * time.Second

// Source identifies a GitHub repository.
type Source struct {
	Owner string
	Repo  string
}

// Valid reports whether both parts are known.
func (s Source) Valid() bool { return s.Owner != "" && s.Repo != "" }

// RawURL returns the raw content URL of path on [Branch], or "" when s is
// not valid.
func (s Source) RawURL(path string) string {
	if !s.Valid() {
		return ""
	}
	return "https://raw.githubusercontent.com/" + s.Owner + "/" + s.Repo + "/" + Branch + "/" + strings.TrimPrefix(path, "/")
}

var githubRemoteRe = regexp.MustCompile(`github\.com[:/]([^/]+)/([^/.\s]+)`)

// ParseGitHubURL extracts owner and repository from an HTTPS or SSH GitHub
// remote URL.
func ParseGitHubURL(s string) (Source, bool) {
	m := githubRemoteRe.FindStringSubmatch(s)
	if len(m) != 3 {
		return Source{}, false
	}
	return Source{Owner: m[1], Repo: m[2]}, true
}

var (
	resolveOnce sync.Once
	resolved    Source

	// gitOrigin is swapped out in tests.
	gitOrigin = func(ctx context.Context) (string, error) {
		out, err := exec.CommandContext(ctx, "git", "remote", "get-url", "origin").Output()
		return string(out), err
	}
)

// Resolve returns the project source, resolving it on first call.
func Resolve() Source {
	resolveOnce.Do(func() {
		if src := (Source{Owner: ldOwner, Repo: ldRepo}); src.Valid() {
			resolved = src
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
		defer cancel()
		out, err := gitOrigin(ctx)
		if err != nil {
			slog.Debug("remote: no ldflags and no git origin", "error", err)
			return
		}
		if src, ok := ParseGitHubURL(out); ok {
			resolved = src
		}
	})
	return resolved
}

// RawURL returns the raw URL of path in the resolved source, or "" when the
// source is unknown.
func RawURL(path string) string {
	return Resolve().RawURL(path)
}
