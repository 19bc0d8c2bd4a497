package migrate

import "fmt"

// Registry tracks the current schema version of one document type and the
// migrations leading up to it.
type Registry struct {
	CurrentVersion int
	Migrations     []Migration
}

// Register adds m. It panics on a duplicate version, which is a programming
// error caught at init time.
func (r *Registry) Register(m Migration) {
	for _, existing := range r.Migrations {
		if existing.Version == m.Version {
			panic(fmt.Sprintf("migrate: duplicate migration version %d (%q)", m.Version, m.Description))
		}
	}
	r.Migrations = append(r.Migrations, m)
	r.CurrentVersion = max(r.CurrentVersion, m.Version)
}

// NeedsMigration reports whether a document at fileVersion is behind.
func (r *Registry) NeedsMigration(fileVersion int) bool {
	return fileVersion < r.CurrentVersion
}

// Run upgrades data from fromVersion to the current version.
func (r *Registry) Run(data []byte, fromVersion int) ([]byte, int, error) {
	return Run(data, fromVersion, r.Migrations)
}

// Config is the registry for config.toml. Migrations register themselves
// from the config package.
var Config = &Registry{CurrentVersion: 1}
