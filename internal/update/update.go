// Package update reports whether a newer sabercord release has been published.
//
// The release manifest is a small JSON object whose "." key holds the latest
// stable version. Nothing is downloaded or installed; the result is logged.
package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"tools.zach/dev/sabercord/internal/paths"
	"tools.zach/dev/sabercord/internal/remote"
)

// maxManifestSize caps how much of the manifest response is read.
const maxManifestSize = 64 << 10

// ErrNoManifest is returned when no manifest location is configured or
// resolvable.
var ErrNoManifest = errors.New("no release manifest location")

// ///////////////////////////////////////////////
// Checker
// ///////////////////////////////////////////////

// Result is the outcome of one check.
type Result struct {
	Current string
	Latest  string
	// Newer is true when Latest is a strictly greater version than Current.
	Newer bool
}

// Checker fetches the release manifest.
type Checker struct {
	url    string
	client *retryablehttp.Client
}

// NewChecker returns a Checker for manifestURL. An empty URL falls back to
// the manifest in the project's GitHub repository.
func NewChecker(manifestURL string) *Checker {
	if manifestURL == "" {
		manifestURL = remote.RawURL(paths.ReleaseManifest)
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 5 * time.Second
	client.Logger = nil
	return &Checker{url: manifestURL, client: client}
}

// URL returns the manifest location, or "" when none could be resolved.
func (c *Checker) URL() string { return c.url }

// Latest returns the version published in the manifest.
func (c *Checker) Latest(ctx context.Context) (string, error) {
	if c.url == "" {
		return "", ErrNoManifest
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: status %d", c.url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return "", fmt.Errorf("read manifest: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return "", errors.New("parse manifest: invalid JSON")
	}
	latest := gjson.GetBytes(body, `\.`)
	if latest.Type != gjson.String || latest.String() == "" {
		return "", errors.New("parse manifest: no version under \".\"")
	}
	return latest.String(), nil
}

// Check compares current against the published version.
func (c *Checker) Check(ctx context.Context, current string) (Result, error) {
	latest, err := c.Latest(ctx)
	if err != nil {
		return Result{Current: current}, err
	}
	return Result{
		Current: current,
		Latest:  latest,
		Newer:   semverLess(current, latest),
	}, nil
}

// Run performs one check and logs the outcome. Failures are logged at Debug
// since the daemon works the same without them.
func Run(ctx context.Context, manifestURL, current string) {
	c := NewChecker(manifestURL)
	if c.URL() == "" {
		slog.Debug("skipping update check: no manifest location")
		return
	}
	res, err := c.Check(ctx, current)
	if err != nil {
		slog.Debug("update check failed", "error", err)
		return
	}
	if res.Newer {
		slog.Info("new version available", "current", res.Current, "latest", res.Latest)
	}
}

// ///////////////////////////////////////////////
// Version Comparison
// ///////////////////////////////////////////////

// semverLess reports whether a < b. Strings that are not major.minor.patch
// never compare less. A pre-release sorts below the same release
// ("0.1.0-dev" < "0.1.0"); two pre-releases of one version are unordered.
func semverLess(a, b string) bool {
	va, ok := parseSemver(a)
	if !ok {
		return false
	}
	vb, ok := parseSemver(b)
	if !ok {
		return false
	}
	for i := range va.core {
		if va.core[i] != vb.core[i] {
			return va.core[i] < vb.core[i]
		}
	}
	return va.pre && !vb.pre
}

type semver struct {
	core [3]int
	pre  bool
}

// parseSemver parses "v1.2.3", "0.1.0-dev" or "1.0.0+build". Build metadata
// is ignored.
func parseSemver(s string) (semver, bool) {
	s = strings.TrimPrefix(s, "v")
	if i := strings.IndexByte(s, '+'); i >= 0 {
		s = s[:i]
	}
	var v semver
	if i := strings.IndexByte(s, '-'); i >= 0 {
		v.pre = true
		s = s[:i]
	}
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return semver{}, false
	}
	for i, p := range parts {
		if p == "" {
			return semver{}, false
		}
		n := 0
		for _, c := range p {
			if c < '0' || c > '9' {
				return semver{}, false
			}
			n = n*10 + int(c-'0')
		}
		v.core[i] = n
	}
	return v, true
}
