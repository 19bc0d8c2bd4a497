package main

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ParseHexColor parses "#RRGGBB" (the "#" is optional) into an opaque color.
func ParseHexColor(hex string) (color.NRGBA, error) {
	digits := strings.TrimPrefix(hex, "#")
	if len(digits) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: want 6 hex digits", hex)
	}
	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
