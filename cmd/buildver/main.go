// Package main prints the sabercord build version for -X main.version.
//
// The version follows git state:
//
//	no tags, clean:       0.0.0-dev+05ffee5
//	no tags, dirty:       0.0.0-dev+05ffee5.dirty
//	on tag v0.1.0:        0.1.0
//	on tag, dirty:        0.1.0-dirty
//	3 commits past tag:   0.1.0-dev.3+g1234567
//	same, dirty:          0.1.0-dev.3+g1234567.dirty
//
// Without tags the base version is read from .release-manifest.json.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"

	"tools.zach/dev/sabercord/internal/paths"
)

// gitFunc runs git with args and returns its trimmed stdout.
type gitFunc func(args ...string) (string, error)

func runGit(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	return strings.TrimSpace(string(out)), err
}

func main() {
	manifest, _ := os.ReadFile(paths.ReleaseManifest)
	fmt.Print(buildVersion(runGit, manifest))
}

// buildVersion derives the version from the nearest v* tag, or from the
// manifest base and the commit hash when there is none.
func buildVersion(git gitFunc, manifest []byte) string {
	if desc, err := git("describe", "--tags", "--match", "v*", "--dirty"); err == nil && desc != "" {
		return formatTaggedVersion(desc)
	}

	base := baseVersion(manifest)
	hash, err := git("rev-parse", "--short=7", "HEAD")
	if err != nil || hash == "" {
		return base + "-dev"
	}
	v := base + "-dev+" + hash
	if status, err := git("status", "--porcelain"); err == nil && status != "" {
		v += ".dirty"
	}
	return v
}

// formatTaggedVersion turns git describe output such as
// "v0.1.0-3-g1234567-dirty" into "0.1.0-dev.3+g1234567.dirty".
func formatTaggedVersion(desc string) string {
	clean, dirty := strings.CutSuffix(desc, "-dirty")
	clean = strings.TrimPrefix(clean, "v")

	// <tag>-<N>-g<hash>; the tag itself may contain dashes.
	if rest, hash, ok := cutLast(clean, "-"); ok && strings.HasPrefix(hash, "g") {
		if tag, n, ok := cutLast(rest, "-"); ok && isDigits(n) {
			meta := hash
			if dirty {
				meta += ".dirty"
			}
			return tag + "-dev." + n + "+" + meta
		}
	}
	if dirty {
		return clean + "-dirty"
	}
	return clean
}

// baseVersion returns the "." entry of the release manifest, or "0.0.0".
func baseVersion(manifest []byte) string {
	if !gjson.ValidBytes(manifest) {
		return "0.0.0"
	}
	if v := gjson.GetBytes(manifest, `\.`); v.Type == gjson.String && v.String() != "" {
		return v.String()
	}
	return "0.0.0"
}

func cutLast(s, sep string) (before, after string, ok bool) {
	i := strings.LastIndex(s, sep)
	if i <= 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
