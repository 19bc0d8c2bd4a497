package main

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// RenderAsset draws style.Glyph centered on a solid square and returns the
// PNG encoding.
func RenderAsset(style AssetStyle, otFont *opentype.Font) ([]byte, error) {
	bg, err := ParseHexColor(style.BgColor)
	if err != nil {
		return nil, fmt.Errorf("parse bg_color: %w", err)
	}
	fg, err := ParseHexColor(style.FgColor)
	if err != nil {
		return nil, fmt.Errorf("parse fg_color: %w", err)
	}
	if style.Size <= 0 {
		return nil, fmt.Errorf("invalid size %d", style.Size)
	}

	face, err := opentype.NewFace(otFont, &opentype.FaceOptions{
		Size:    float64(style.FontSize),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	img := image.NewNRGBA(image.Rect(0, 0, style.Size, style.Size))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	if style.Glyph != "" {
		// Center the ink box, not the advance box.
		bounds, _ := font.BoundString(face, style.Glyph)
		w := (bounds.Max.X - bounds.Min.X).Ceil()
		h := (bounds.Max.Y - bounds.Min.Y).Ceil()
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(fg),
			Face: face,
			Dot:  fixed.P((style.Size-w)/2-bounds.Min.X.Floor(), (style.Size-h)/2-bounds.Min.Y.Floor()),
		}
		d.DrawString(style.Glyph)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
