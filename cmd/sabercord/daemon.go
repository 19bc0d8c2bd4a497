package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"tools.zach/dev/sabercord/internal/bridge"
	"tools.zach/dev/sabercord/internal/config"
	"tools.zach/dev/sabercord/internal/discord"
	"tools.zach/dev/sabercord/internal/logger"
	"tools.zach/dev/sabercord/internal/observe"
	"tools.zach/dev/sabercord/internal/presence"
	"tools.zach/dev/sabercord/internal/scene"
)

// presenceSink is the part of [discord.Sink] the daemon drives directly, on
// top of what the scene driver uses.
type presenceSink interface {
	scene.Sink
	SwitchApp(appID string) error
	SetReconnectInterval(d time.Duration)
}

var _ presenceSink = (*discord.Sink)(nil)

// ///////////////////////////////////////////////
// Daemon
// ///////////////////////////////////////////////

// daemon owns every component that the event loop touches. All of its methods
// run on the loop goroutine.
type daemon struct {
	cfg   *config.Config
	paths DataPaths
	level *slog.LevelVar

	graph   *observe.Graph
	deriver *presence.Deriver
	sink    presenceSink
	driver  *scene.Driver

	// scene is the last scene the shim reported, kept for log context.
	scene string
}

func newDaemon(cfg *config.Config, dp DataPaths, level *slog.LevelVar, graph *observe.Graph, cell *presence.Cell, sink presenceSink) *daemon {
	deriver := presence.NewDeriver(presenceOptions(cfg))
	return &daemon{
		cfg:     cfg,
		paths:   dp,
		level:   level,
		graph:   graph,
		deriver: deriver,
		sink:    sink,
		driver:  scene.NewDriver(deriver, cell, sink, graph, scenePatterns(cfg)),
	}
}

// loopSources are the channels the event loop selects on. A nil channel is
// never ready, so optional sources can be left out.
type loopSources struct {
	bridge  <-chan bridge.Event
	ticks   <-chan time.Time
	config  <-chan struct{}
	signals <-chan os.Signal
	// retick changes the tick period after a config reload.
	retick func(time.Duration)
}

// run is the event loop. It returns on a shutdown signal, or when the game
// quits and exit_on_quit is set.
func (d *daemon) run(src loopSources) {
	for {
		select {
		case <-src.signals:
			slog.Info("received shutdown signal")
			d.driver.Quit()
			return

		case ev := <-src.bridge:
			if d.handleEvent(ev) {
				return
			}

		case <-src.ticks:
			d.driver.Tick()

		case <-src.config:
			prevTick := d.cfg.TickInterval()
			if d.reload() && src.retick != nil && d.cfg.TickInterval() != prevTick {
				src.retick(d.cfg.TickInterval())
			}
		}
	}
}

// handleEvent applies one bridge event and reports whether the daemon should
// stop.
func (d *daemon) handleEvent(ev bridge.Event) bool {
	switch ev := ev.(type) {
	case bridge.ConnectedEvent:
		slog.Debug("bridge session started", "url", ev.URL)

	case bridge.HelloEvent:
		slog.Info("game attached", "game_version", ev.GameVersion, "shim_version", ev.ShimVersion)

	case bridge.SceneEvent:
		// Objects belong to the scene they were pushed in. The new scene's
		// snapshot follows this event.
		d.scene = ev.Scene
		d.graph.Reset()
		d.driver.SceneChanged(ev.Previous, ev.Scene)

	case bridge.ObjectsEvent:
		d.graph.Replace(ev.Objects)
		d.dumpObjects(ev.Objects)
		d.driver.SnapshotReplaced()

	case bridge.DisconnectedEvent:
		if !errors.Is(ev.Err, bridge.ErrClosed) {
			slog.Debug("bridge session lost", "error", ev.Err)
		}
		d.graph.Reset()
		d.driver.Reset()
		d.scene = ""

	case bridge.QuitEvent:
		if d.cfg.Behavior.ExitOnQuit {
			slog.Info("game is quitting, shutting down")
			d.driver.Quit()
			return true
		}
		slog.Info("game is quitting, waiting for it to come back")
		d.graph.Reset()
		d.driver.Reset()
		d.scene = ""
	}
	return false
}

// dumpObjects writes the snapshot's kinds at trace level.
func (d *daemon) dumpObjects(objects []observe.Object) {
	if !slog.Default().Enabled(context.Background(), logger.LevelTrace) {
		return
	}
	kinds := make([]string, 0, len(objects))
	for _, o := range objects {
		kinds = append(kinds, string(o.Kind()))
	}
	slices.Sort(kinds)
	slog.Log(context.Background(), logger.LevelTrace, "object snapshot",
		"scene", d.scene, "count", len(objects), "kinds", strings.Join(kinds, ","))
}

// ///////////////////////////////////////////////
// Config Reload
// ///////////////////////////////////////////////

// reload re-reads the config file and applies what can change at runtime.
// An invalid file is logged and the running settings are kept. It reports
// whether the new config was applied.
func (d *daemon) reload() bool {
	cfg, err := config.LoadFile(d.paths.Config())
	if err != nil {
		slog.Warn("config reload rejected, keeping previous settings", "error", err)
		return false
	}
	old := d.cfg
	d.cfg = cfg

	d.level.Set(logger.ParseLevel(cfg.Log.Level))
	d.deriver.SetOptions(presenceOptions(cfg))
	d.driver.SetPatterns(scenePatterns(cfg))
	d.sink.SetReconnectInterval(cfg.DiscordReconnectInterval())

	if cfg.Discord.AppID != old.Discord.AppID {
		slog.Info("Discord application changed, reconnecting", "app_id", cfg.Discord.AppID)
		if err := d.sink.SwitchApp(cfg.Discord.AppID); err != nil {
			slog.Warn("Discord not available yet, will keep trying", "error", err)
		}
	}
	if cfg.Bridge != old.Bridge {
		slog.Info("bridge settings change on restart")
	}
	if cfg.Log.MaxSizeMB != old.Log.MaxSizeMB {
		slog.Info("log rotation size changes on restart")
	}

	slog.Info("config reloaded")
	return true
}
