// generate-assets renders the Discord image assets sabercord refers to.
//
// Styles come from data/assets.toml. Each asset key becomes {out}/{key}.png,
// ready to upload to the Discord application under the same key. The keys
// must match the ones the daemon sends: "default" for the game icon and
// "solo", "party", "one_saber", "no_arrows" for the mode icons.
//
// Usage:
//
//	cd tools/generate-assets && go run .
//	cd tools/generate-assets && go run . -assets ../../data/assets.toml -out ../../assets/discord
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/image/font/opentype"
)

func main() {
	assetsFile := flag.String("assets", "../../data/assets.toml", "asset definition `file`")
	outDir := flag.String("out", "../../assets/discord", "output `directory`")
	flag.Parse()

	if err := run(*assetsFile, *outDir); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(assetsFile, outDir string) error {
	set, err := LoadAssetSet(assetsFile)
	if err != nil {
		return err
	}
	if err := set.Validate(); err != nil {
		return err
	}

	repoRoot, err := filepath.Abs(filepath.Join(filepath.Dir(assetsFile), ".."))
	if err != nil {
		return fmt.Errorf("resolve repo root: %w", err)
	}
	fontData, err := resolveFont(set, repoRoot, filepath.Join(repoRoot, "assets", "fonts", ".cache"))
	if err != nil {
		return err
	}
	otFont, err := opentype.Parse(fontData)
	if err != nil {
		return fmt.Errorf("parse font: %w", err)
	}

	n, err := writeAssets(set, otFont, outDir)
	if err != nil {
		return err
	}
	fmt.Printf("Done. Generated %d assets in %s.\n", n, outDir)
	return nil
}

// writeAssets renders every asset in set into outDir.
func writeAssets(set *AssetSet, otFont *opentype.Font, outDir string) (int, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}
	for i, key := range set.Keys() {
		style := set.Resolved(key)
		data, err := RenderAsset(style, otFont)
		if err != nil {
			return i, fmt.Errorf("render %s: %w", key, err)
		}
		path := filepath.Join(outDir, key+".png")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return i, fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Printf("  %s.png (%s)\n", key, style.Glyph)
	}
	return len(set.Assets), nil
}
