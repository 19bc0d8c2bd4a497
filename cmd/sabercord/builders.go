package main

import (
	"tools.zach/dev/sabercord/internal/bridge"
	"tools.zach/dev/sabercord/internal/config"
	"tools.zach/dev/sabercord/internal/discord"
	"tools.zach/dev/sabercord/internal/observe"
	"tools.zach/dev/sabercord/internal/presence"
	"tools.zach/dev/sabercord/internal/scene"
)

// ///////////////////////////////////////////////
// Config Builders
// ///////////////////////////////////////////////

// presenceOptions maps the display and detection sections onto
// [presence.Options].
func presenceOptions(cfg *config.Config) presence.Options {
	return presence.Options{
		MenuDetails:            cfg.Display.MenuDetails,
		DegradedDetails:        cfg.Display.DegradedDetails,
		LargeImageKey:          cfg.Display.LargeImage,
		LargeImageText:         cfg.Display.LargeText,
		CustomLevelMarker:      cfg.Detection.CustomLevelMarker,
		NoArrowsCharacteristic: cfg.Detection.NoArrowsCharacteristic,
		ReplayControllerKind:   observe.Kind(cfg.Detection.ReplayControllerKind),
		ReplayModeField:        cfg.Detection.ReplayModeField,
		PracticeLeadIn:         cfg.Detection.PracticeLeadInSeconds,
	}
}

func scenePatterns(cfg *config.Config) scene.Patterns {
	return scene.Patterns{
		Menu:     cfg.Scenes.Menu,
		Gameplay: cfg.Scenes.Gameplay,
	}
}

func bridgeOptions(cfg *config.Config) bridge.Options {
	return bridge.Options{
		URL:               cfg.Bridge.URL,
		ReconnectInterval: cfg.BridgeReconnectInterval(),
		HandshakeTimeout:  cfg.BridgeHandshakeTimeout(),
	}
}

// sinkOptions keeps the default startup retry schedule and takes the
// reconnect interval from the behavior section.
func sinkOptions(cfg *config.Config) discord.SinkOptions {
	opts := discord.DefaultSinkOptions()
	opts.ReconnectInterval = cfg.DiscordReconnectInterval()
	return opts
}
