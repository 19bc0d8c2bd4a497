package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc documents one config field for the generated default file.
type FieldDoc struct {
	// Comment is emitted above the field.
	Comment string

	// Alternatives are emitted as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps dotted TOML paths (e.g. "bridge.url") to their docs.
// cmd/genconfig uses it to annotate config.default.toml.
var ConfigDocs = map[string]FieldDoc{
	// ── Root ──────────────────────────────────────────────────────
	"version": {
		Comment: "Config schema version. Do not edit.",
	},

	// ── Discord ──────────────────────────────────────────────────
	"discord.app_id": {
		Comment: "Application ID the presence is published under.\nUse your own Discord application to supply custom images.",
	},

	// ── Bridge ───────────────────────────────────────────────────
	"bridge.url": {
		Comment: "Websocket endpoint of the in-game shim mod.",
		Alternatives: []string{
			`url = "ws://192.168.1.20:6557/presence"`,
		},
	},
	"bridge.reconnect_interval_seconds": {
		Comment: "Seconds between connection attempts while the game is closed.",
	},
	"bridge.handshake_timeout_seconds": {},

	// ── Scenes ───────────────────────────────────────────────────
	"scenes.menu": {
		Comment: "Scene names that show the menu status. Glob patterns are allowed.",
		Alternatives: []string{
			`menu = ["MenuCore", "Menu*"]`,
		},
	},
	"scenes.gameplay": {
		Comment: "Scene names that show the song being played. The level is read one\ntick after the scene loads.",
	},

	// ── Display ──────────────────────────────────────────────────
	"display.menu_details": {
		Comment: "Top line while in the menus.",
	},
	"display.degraded_details": {
		Comment: "Top line when the current level cannot be read, e.g. right after a\ngame update.",
	},
	"display.large_image": {
		Comment: "Discord image key and tooltip of the large icon. The small icon is\nchosen from the mode: \"solo\", \"party\", \"one_saber\", \"no_arrows\".",
	},
	"display.large_text": {},

	// ── Detection ────────────────────────────────────────────────
	"detection.custom_level_marker": {
		Comment: "Substring that marks custom levels inside a level ID.",
	},
	"detection.no_arrows_characteristic": {
		Comment: "Beatmap characteristics containing this text (any case) count as No Arrows.",
	},
	"detection.replay_controller_kind": {
		Comment: "Object kind of the leaderboard mod's replay controller, as reported by\nthe shim. It changes between mod releases. Set to \"\" to disable replay\ndetection.",
		Alternatives: []string{
			`replay_controller_kind = ""`,
		},
	},
	"detection.replay_mode_field": {
		Comment: "Controller field that reads \"Playback\" while a replay is shown.",
	},
	"detection.practice_lead_in_seconds": {
		Comment: "Seconds of lead-in before the practice start point when notes are\ncleared in advance. Used to backdate the elapsed timer.",
	},

	// ── Behavior ─────────────────────────────────────────────────
	"behavior.tick_interval_ms": {
		Comment: "Driver tick in milliseconds (10 to 1000). Deferred level reads and\nDiscord re-sends happen on ticks.",
	},
	"behavior.reconnect_interval_seconds": {
		Comment: "Minimum seconds between Discord reconnect attempts.",
	},
	"behavior.exit_on_quit": {
		Comment: "Stop the daemon when the game exits.",
		Alternatives: []string{
			`exit_on_quit = false`,
		},
	},

	// ── Update ───────────────────────────────────────────────────
	"update.check": {
		Comment: "Check for a newer release at startup. Nothing is installed automatically.",
	},
	"update.manifest_url": {
		Comment: "Release manifest location (optional).",
		Alternatives: []string{
			`manifest_url = "https://example.com/sabercord/release.json"`,
		},
	},

	// ── Log ──────────────────────────────────────────────────────
	"log.level": {
		Comment: "Log level. Options: \"trace\", \"debug\", \"info\", \"warn\", \"error\"\n\"trace\" also dumps every object snapshot the shim sends.",
		Alternatives: []string{
			`level = "debug"`,
		},
	},
	"log.max_size_mb": {
		Comment: "Log file size in MB before rotation.",
	},
}
