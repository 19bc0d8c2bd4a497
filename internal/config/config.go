// Package config loads, validates and saves the sabercord daemon settings.
//
// Configuration lives in config.toml inside the data directory. On first run
// the file is seeded from the embedded config.default.toml, which is
// generated from [ExampleConfig] and [ConfigDocs] by cmd/genconfig. Older
// files are upgraded through the migrate package before parsing.
package config

//go:generate go run ../../cmd/genconfig

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"

	"tools.zach/dev/sabercord/internal/atomicfile"
	"tools.zach/dev/sabercord/internal/migrate"
	"tools.zach/dev/sabercord/internal/paths"
)

// DefaultDiscordAppID is the public Beat Saber Rich Presence application.
const DefaultDiscordAppID = "445053620698742804"

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config is the top-level configuration.
type Config struct {
	// Version is the schema version used for migrations.
	Version   int             `toml:"version"`
	Discord   DiscordConfig   `toml:"discord"`
	Bridge    BridgeConfig    `toml:"bridge"`
	Scenes    ScenesConfig    `toml:"scenes"`
	Display   DisplayConfig   `toml:"display"`
	Detection DetectionConfig `toml:"detection"`
	Behavior  BehaviorConfig  `toml:"behavior"`
	Update    UpdateConfig    `toml:"update"`
	Log       LogConfig       `toml:"log"`
}

// DiscordConfig holds Discord connection settings.
type DiscordConfig struct {
	// AppID is the Discord application the presence is published under.
	AppID string `toml:"app_id" env:"SABERCORD_DISCORD_APP_ID"`
}

// BridgeConfig describes how to reach the in-game shim.
type BridgeConfig struct {
	// URL is the shim's websocket endpoint.
	URL string `toml:"url" env:"SABERCORD_BRIDGE_URL"`
	// ReconnectIntervalSeconds is the wait between dial attempts.
	ReconnectIntervalSeconds int `toml:"reconnect_interval_seconds"`
	// HandshakeTimeoutSeconds bounds each websocket handshake.
	HandshakeTimeoutSeconds int `toml:"handshake_timeout_seconds"`
}

// ScenesConfig selects which host scenes count as menu and gameplay. Entries
// are doublestar glob patterns matched against the scene name.
type ScenesConfig struct {
	Menu     []string `toml:"menu"`
	Gameplay []string `toml:"gameplay"`
}

// DisplayConfig holds the fixed text and image keys of the presence card.
type DisplayConfig struct {
	// MenuDetails is the top line shown in the menus.
	MenuDetails string `toml:"menu_details"`
	// DegradedDetails replaces the song line when the level cannot be read.
	DegradedDetails string `toml:"degraded_details"`
	// LargeImage is the Discord asset key of the game icon.
	LargeImage string `toml:"large_image"`
	// LargeText is the tooltip of the game icon.
	LargeText string `toml:"large_text"`
}

// DetectionConfig tunes how host objects are interpreted. The defaults match
// the stock game; they only need changing when a game or mod update renames
// something.
type DetectionConfig struct {
	// CustomLevelMarker is the substring that marks user-made level IDs.
	CustomLevelMarker string `toml:"custom_level_marker"`
	// NoArrowsCharacteristic is matched case-insensitively against the
	// beatmap characteristic name.
	NoArrowsCharacteristic string `toml:"no_arrows_characteristic"`
	// ReplayControllerKind is the object kind of the leaderboard mod's replay
	// controller. Empty disables replay detection.
	ReplayControllerKind string `toml:"replay_controller_kind"`
	// ReplayModeField is the controller field that reads "Playback" during
	// a replay.
	ReplayModeField string `toml:"replay_mode_field"`
	// PracticeLeadInSeconds is how far before the start point practice
	// playback begins when notes are cleared in advance.
	PracticeLeadInSeconds float64 `toml:"practice_lead_in_seconds"`
}

// BehaviorConfig holds daemon behavior settings.
type BehaviorConfig struct {
	// TickIntervalMS is the period of the driver tick.
	TickIntervalMS int `toml:"tick_interval_ms"`
	// ReconnectIntervalSeconds is the minimum wait between Discord reconnects.
	ReconnectIntervalSeconds int `toml:"reconnect_interval_seconds"`
	// ExitOnQuit stops the daemon when the game reports it is exiting.
	ExitOnQuit bool `toml:"exit_on_quit"`
}

// UpdateConfig controls the startup release check.
type UpdateConfig struct {
	// Check enables the background update check.
	Check bool `toml:"check" env:"SABERCORD_UPDATE_CHECK"`
	// ManifestURL overrides the release manifest location.
	ManifestURL string `toml:"manifest_url,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level" env:"SABERCORD_LOG_LEVEL"`
	// MaxSizeMB is the log file size that triggers rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Defaults
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: migrate.Config.CurrentVersion,
		Discord: DiscordConfig{
			AppID: DefaultDiscordAppID,
		},
		Bridge: BridgeConfig{
			URL:                      "ws://127.0.0.1:6557/presence",
			ReconnectIntervalSeconds: 5,
			HandshakeTimeoutSeconds:  5,
		},
		Scenes: ScenesConfig{
			Menu:     []string{"MenuCore"},
			Gameplay: []string{"GameCore"},
		},
		Display: DisplayConfig{
			MenuDetails:     "In Menu",
			DegradedDetails: "Playing",
			LargeImage:      "default",
			LargeText:       "Beat Saber",
		},
		Detection: DetectionConfig{
			CustomLevelMarker:      "∎",
			NoArrowsCharacteristic: "noarrow",
			ReplayControllerKind:   "Z",
			ReplayModeField:        "mode",
			PracticeLeadInSeconds:  3,
		},
		Behavior: BehaviorConfig{
			TickIntervalMS:           100,
			ReconnectIntervalSeconds: 15,
			ExitOnQuit:               true,
		},
		Update: UpdateConfig{
			Check: true,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ExampleConfig returns the Config written to config.default.toml.
func ExampleConfig() *Config {
	return DefaultConfig()
}

// ///////////////////////////////////////////////
// Derived Durations
// ///////////////////////////////////////////////

// TickInterval returns the driver tick period.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Behavior.TickIntervalMS) * time.Millisecond
}

// DiscordReconnectInterval returns the minimum wait between Discord reconnects.
func (c *Config) DiscordReconnectInterval() time.Duration {
	return time.Duration(c.Behavior.ReconnectIntervalSeconds) * time.Second
}

// BridgeReconnectInterval returns the wait between shim dial attempts.
func (c *Config) BridgeReconnectInterval() time.Duration {
	return time.Duration(c.Bridge.ReconnectIntervalSeconds) * time.Second
}

// BridgeHandshakeTimeout returns the websocket handshake timeout.
func (c *Config) BridgeHandshakeTimeout() time.Duration {
	return time.Duration(c.Bridge.HandshakeTimeoutSeconds) * time.Second
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// PeekVersion reads just the version field from raw TOML. Files without one
// are version 1.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if err := toml.Unmarshal(data, &v); err != nil || v.Version == 0 {
		return 1
	}
	return v.Version
}

// Seed writes defaultTOML to dataDir/config.toml unless the file exists. It
// reports whether a file was written.
func Seed(dataDir string, defaultTOML []byte) (bool, error) {
	path := filepath.Join(dataDir, paths.ConfigFile)
	wrote, err := atomicfile.WriteIfMissing(path, defaultTOML, 0o644)
	if err != nil {
		return false, fmt.Errorf("seeding config: %w", err)
	}
	return wrote, nil
}

// Load reads dataDir/config.toml, upgrading and re-saving it if it uses an
// older schema. A missing file yields [DefaultConfig].
func Load(dataDir string) (*Config, error) {
	return LoadFile(filepath.Join(dataDir, paths.ConfigFile))
}

// LoadFile is [Load] for an explicit path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := DefaultConfig()
			if err := ApplyEnv(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &struct{}{}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	version := PeekVersion(data)
	migrated := migrate.Config.NeedsMigration(version)
	if migrated {
		if err := atomicfile.Write(path+".bak", data, 0o644); err != nil {
			slog.Warn("failed to write config backup", "error", err)
		}
		if data, _, err = migrate.Config.Run(data, version); err != nil {
			return nil, fmt.Errorf("migrate config: %w", err)
		}
	} else if version > migrate.Config.CurrentVersion {
		slog.Warn("config written by a newer sabercord, unknown keys are ignored",
			"file_version", version, "supported", migrate.Config.CurrentVersion)
	}

	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for _, key := range md.Undecoded() {
		slog.Warn("unknown config key", "key", key.String())
	}
	cfg.Version = migrate.Config.CurrentVersion

	if migrated {
		if err := cfg.Save(path); err != nil {
			slog.Warn("failed to save migrated config", "error", err)
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to path as TOML, atomically.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o644)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that every value is usable. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Discord.AppID == "" || strings.Trim(c.Discord.AppID, "0123456789") != "" {
		add("discord.app_id %q must be a numeric application ID", c.Discord.AppID)
	}

	if u, err := url.Parse(c.Bridge.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		add("bridge.url %q must be a ws:// or wss:// URL", c.Bridge.URL)
	}
	if c.Bridge.ReconnectIntervalSeconds <= 0 {
		add("bridge.reconnect_interval_seconds must be > 0, got %d", c.Bridge.ReconnectIntervalSeconds)
	}
	if c.Bridge.HandshakeTimeoutSeconds <= 0 {
		add("bridge.handshake_timeout_seconds must be > 0, got %d", c.Bridge.HandshakeTimeoutSeconds)
	}

	for name, patterns := range map[string][]string{"menu": c.Scenes.Menu, "gameplay": c.Scenes.Gameplay} {
		if len(patterns) == 0 {
			add("scenes.%s must list at least one scene", name)
		}
		for _, p := range patterns {
			if !doublestar.ValidatePattern(p) {
				add("scenes.%s: invalid pattern %q", name, p)
			}
		}
	}

	if c.Display.LargeImage == "" {
		add("display.large_image must not be empty")
	}

	if c.Detection.ReplayControllerKind != "" && c.Detection.ReplayModeField == "" {
		add("detection.replay_mode_field is required when replay_controller_kind is set")
	}
	if c.Detection.PracticeLeadInSeconds < 0 {
		add("detection.practice_lead_in_seconds must be >= 0, got %g", c.Detection.PracticeLeadInSeconds)
	}

	if c.Behavior.TickIntervalMS < 10 || c.Behavior.TickIntervalMS > 1000 {
		add("behavior.tick_interval_ms must be between 10 and 1000, got %d", c.Behavior.TickIntervalMS)
	}
	if c.Behavior.ReconnectIntervalSeconds <= 0 {
		add("behavior.reconnect_interval_seconds must be > 0, got %d", c.Behavior.ReconnectIntervalSeconds)
	}

	if c.Update.ManifestURL != "" {
		if u, err := url.Parse(c.Update.ManifestURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			add("update.manifest_url %q must be an http(s) URL", c.Update.ManifestURL)
		}
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		add("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}
	if c.Log.MaxSizeMB <= 0 {
		add("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}

	return errors.Join(errs...)
}
