// Package sabercord embeds the default configuration shipped with the daemon.
package sabercord

import _ "embed"

// DefaultConfigTOML is config.default.toml, generated by cmd/genconfig. It is
// copied to the data directory on first run.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
