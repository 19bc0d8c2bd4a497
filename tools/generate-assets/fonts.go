package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tdewolff/font"
)

// googleCSSEndpoint is the Google Fonts CSS API; tests point it elsewhere.
var googleCSSEndpoint = "https://fonts.googleapis.com/css2"

// fontURLRe finds the font file referenced by the CSS response.
var fontURLRe = regexp.MustCompile(`url\((https?://[^)\s]+)\)`)

var woff2Magic = []byte("wOF2")

// ///////////////////////////////////////////////
// Font Resolution
// ///////////////////////////////////////////////

// resolveFont loads set.Font from repoRoot, or downloads set.FontFallback
// into cacheDir when the local file is missing.
func resolveFont(set *AssetSet, repoRoot, cacheDir string) ([]byte, error) {
	if set.Font != "" {
		path := filepath.Join(repoRoot, set.Font)
		if data, err := os.ReadFile(path); err == nil {
			fmt.Printf("font: %s (local)\n", set.Font)
			return toSFNT(path, data)
		}
	}
	if set.FontFallback != "" {
		fmt.Printf("font: %s (Google Fonts)\n", set.FontFallback)
		return FetchGoogleFont(newHTTPClient(), set.FontFallback, cacheDir)
	}
	return nil, fmt.Errorf("no font available (set \"font\" or \"font_fallback\")")
}

// ParseGoogleFontSpec splits "google:FAMILY:WEIGHT".
func ParseGoogleFontSpec(spec string) (family, weight string, ok bool) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 || parts[0] != "google" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

func newHTTPClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.HTTPClient.Timeout = 15 * time.Second
	c.Logger = nil
	return c
}

// FetchGoogleFont downloads the font named by spec and caches it as SFNT in
// cacheDir. A cached copy is returned without touching the network.
func FetchGoogleFont(client *retryablehttp.Client, spec, cacheDir string) ([]byte, error) {
	family, weight, ok := ParseGoogleFontSpec(spec)
	if !ok {
		return nil, fmt.Errorf("invalid google font spec %q: want google:FAMILY:WEIGHT", spec)
	}

	cacheFile := filepath.Join(cacheDir, fmt.Sprintf("%s-%s.ttf", family, weight))
	if data, err := os.ReadFile(cacheFile); err == nil {
		return data, nil
	}

	cssURL := fmt.Sprintf("%s?family=%s:wght@%s", googleCSSEndpoint, url.QueryEscape(family), weight)
	// A browser User-Agent gets WOFF2 links, which toSFNT converts.
	css, err := get(client, cssURL, 1<<20, "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
	if err != nil {
		return nil, fmt.Errorf("fetch font CSS: %w", err)
	}
	m := fontURLRe.FindSubmatch(css)
	if m == nil {
		return nil, fmt.Errorf("no font URL in CSS for %s wght@%s", family, weight)
	}
	fontURL := string(m[1])

	raw, err := get(client, fontURL, 10<<20, "")
	if err != nil {
		return nil, fmt.Errorf("download font: %w", err)
	}
	data, err := toSFNT(fontURL, raw)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create font cache dir: %w", err)
	}
	if err := os.WriteFile(cacheFile, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to cache font: %v\n", err)
	}
	return data, nil
}

// get fetches u and returns at most limit bytes of a 200 response.
func get(client *retryablehttp.Client, u string, limit int64, userAgent string) ([]byte, error) {
	req, err := retryablehttp.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// toSFNT converts WOFF2 data, detected by name or magic bytes, to SFNT.
// Other data is returned unchanged.
func toSFNT(name string, data []byte) ([]byte, error) {
	if !isWOFF2(name, data) {
		return data, nil
	}
	sfnt, err := font.ToSFNT(data)
	if err != nil {
		return nil, fmt.Errorf("convert woff2 to sfnt: %w", err)
	}
	return sfnt, nil
}

func isWOFF2(name string, data []byte) bool {
	return strings.HasSuffix(strings.ToLower(name), ".woff2") || bytes.HasPrefix(data, woff2Magic)
}
