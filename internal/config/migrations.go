package config

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"

	"tools.zach/dev/sabercord/internal/migrate"
)

func init() {
	migrate.Config.Register(migrate.Migration{
		Version:     2,
		Description: "scene names become glob lists",
		Upgrade:     scenesToLists,
	})
}

// scenesToLists rewrites v1 files, where [scenes] menu and gameplay were
// single scene names, to the list form.
func scenesToLists(data []byte) ([]byte, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse v1 config: %w", err)
	}

	if scenes, ok := doc["scenes"].(map[string]any); ok {
		for _, key := range []string{"menu", "gameplay"} {
			if name, ok := scenes[key].(string); ok {
				scenes[key] = []string{name}
			}
		}
	}
	doc["version"] = 2

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, fmt.Errorf("encode v2 config: %w", err)
	}
	return buf.Bytes(), nil
}
