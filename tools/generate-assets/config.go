package main

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
)

// AssetStyle describes one square presence image. Empty fields inherit from
// [AssetSet.Defaults].
type AssetStyle struct {
	// Glyph is the text drawn in the middle. It defaults to the upper-cased
	// first letter of the asset key.
	Glyph   string `toml:"glyph"`
	BgColor string `toml:"bg_color"`
	FgColor string `toml:"fg_color"`
	// Size is the image edge in pixels.
	Size int `toml:"size"`
	// FontSize is in points at 72 DPI.
	FontSize int `toml:"font_size"`
}

// AssetSet is the content of data/assets.toml. Asset keys are the Discord
// image keys the daemon sends: the large "default" icon and the small mode
// icons.
type AssetSet struct {
	// Font is a font file path relative to the repository root.
	Font string `toml:"font"`
	// FontFallback is a "google:FAMILY:WEIGHT" spec used when Font is missing.
	FontFallback string                `toml:"font_fallback"`
	Defaults     AssetStyle            `toml:"defaults"`
	Assets       map[string]AssetStyle `toml:"assets"`
}

// LoadAssetSet reads an asset definition file.
func LoadAssetSet(path string) (*AssetSet, error) {
	var set AssetSet
	md, err := toml.DecodeFile(path, &set)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse %s: unknown key %s", path, undecoded[0])
	}
	return &set, nil
}

// Keys returns the asset keys in a stable order.
func (s *AssetSet) Keys() []string {
	keys := make([]string, 0, len(s.Assets))
	for k := range s.Assets {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Resolved returns the style of key with the defaults filled in.
func (s *AssetSet) Resolved(key string) AssetStyle {
	st := s.Defaults
	over := s.Assets[key]
	if over.Glyph != "" {
		st.Glyph = over.Glyph
	}
	if over.BgColor != "" {
		st.BgColor = over.BgColor
	}
	if over.FgColor != "" {
		st.FgColor = over.FgColor
	}
	if over.Size != 0 {
		st.Size = over.Size
	}
	if over.FontSize != 0 {
		st.FontSize = over.FontSize
	}
	if st.Glyph == "" && key != "" {
		r, _ := utf8.DecodeRuneInString(key)
		st.Glyph = strings.ToUpper(string(r))
	}
	return st
}

// Validate checks every resolved style before anything is rendered.
func (s *AssetSet) Validate() error {
	if len(s.Assets) == 0 {
		return fmt.Errorf("no assets defined")
	}
	for _, key := range s.Keys() {
		st := s.Resolved(key)
		if st.Size <= 0 || st.FontSize <= 0 {
			return fmt.Errorf("asset %q: size and font_size must be positive", key)
		}
		if _, err := ParseHexColor(st.BgColor); err != nil {
			return fmt.Errorf("asset %q: bg_color: %w", key, err)
		}
		if _, err := ParseHexColor(st.FgColor); err != nil {
			return fmt.Errorf("asset %q: fg_color: %w", key, err)
		}
	}
	return nil
}
