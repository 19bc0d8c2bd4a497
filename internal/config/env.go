package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ///////////////////////////////////////////////
// Environment Overrides
// ///////////////////////////////////////////////

// ApplyEnv overwrites fields tagged with env from SABERCORD_* variables.
// Unset variables leave the file values alone. [LoadFile] applies them after
// any migration rewrite, so overrides never reach the file.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
