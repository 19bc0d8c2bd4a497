// Package migrate upgrades versioned on-disk documents one schema version at
// a time.
package migrate

import (
	"fmt"
	"log/slog"
	"slices"
)

// Migration upgrades a document to Version from the version before it.
type Migration struct {
	Version     int
	Description string
	Upgrade     func(data []byte) ([]byte, error)
}

// Run applies, in version order, every migration newer than fromVersion. It
// returns the upgraded data and the version reached.
func Run(data []byte, fromVersion int, migrations []Migration) ([]byte, int, error) {
	sorted := slices.Clone(migrations)
	slices.SortFunc(sorted, func(a, b Migration) int { return a.Version - b.Version })

	version := fromVersion
	for _, m := range sorted {
		if m.Version <= version {
			continue
		}
		slog.Info("applying migration", "version", m.Version, "description", m.Description)
		out, err := m.Upgrade(data)
		if err != nil {
			return nil, version, fmt.Errorf("migration to v%d failed: %w", m.Version, err)
		}
		data, version = out, m.Version
	}
	return data, version, nil
}
