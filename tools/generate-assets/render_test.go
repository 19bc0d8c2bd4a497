package main

import (
	"bytes"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

func goFont(t *testing.T) *opentype.Font {
	t.Helper()
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		t.Fatalf("parse gofont: %v", err)
	}
	return f
}

func TestRenderAsset(t *testing.T) {
	style := AssetStyle{Glyph: "1", BgColor: "#E8434F", FgColor: "#FFFFFF", Size: 256, FontSize: 170}

	data, err := RenderAsset(style, goFont(t))
	if err != nil {
		t.Fatalf("RenderAsset: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 256 || b.Dy() != 256 {
		t.Errorf("image size = %dx%d, want 256x256", b.Dx(), b.Dy())
	}

	corner := color.NRGBAModel.Convert(img.At(0, 0)).(color.NRGBA)
	if corner != (color.NRGBA{R: 0xE8, G: 0x43, B: 0x4F, A: 255}) {
		t.Errorf("corner pixel = %v, want the background", corner)
	}

	inked := false
	for y := 0; y < 256 && !inked; y++ {
		for x := 0; x < 256; x++ {
			if c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA); c.G > 0xC0 {
				inked = true
				break
			}
		}
	}
	if !inked {
		t.Error("glyph was not drawn")
	}
}

func TestRenderAssetErrors(t *testing.T) {
	tests := []struct {
		name  string
		style AssetStyle
	}{
		{"bad background", AssetStyle{Glyph: "S", BgColor: "nope", FgColor: "#FFFFFF", Size: 64, FontSize: 40}},
		{"bad foreground", AssetStyle{Glyph: "S", BgColor: "#000000", FgColor: "#FFF", Size: 64, FontSize: 40}},
		{"zero size", AssetStyle{Glyph: "S", BgColor: "#000000", FgColor: "#FFFFFF", FontSize: 40}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := RenderAsset(tt.style, goFont(t)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWriteAssets(t *testing.T) {
	set := &AssetSet{
		Defaults: AssetStyle{FgColor: "#FFFFFF", Size: 64, FontSize: 40},
		Assets: map[string]AssetStyle{
			"solo":  {BgColor: "#2F7DE1"},
			"party": {BgColor: "#9B4DDB"},
		},
	}
	out := filepath.Join(t.TempDir(), "discord")

	n, err := writeAssets(set, goFont(t), out)
	if err != nil {
		t.Fatalf("writeAssets: %v", err)
	}
	if n != 2 {
		t.Errorf("wrote %d assets, want 2", n)
	}
	for _, key := range []string{"solo", "party"} {
		if _, err := os.Stat(filepath.Join(out, key+".png")); err != nil {
			t.Errorf("missing %s.png: %v", key, err)
		}
	}
}
