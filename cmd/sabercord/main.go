// Package main implements the sabercord daemon, which follows a running Beat
// Saber session through the in-game shim and mirrors it as Discord Rich
// Presence.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	rootpkg "tools.zach/dev/sabercord"
	"tools.zach/dev/sabercord/internal/bridge"
	"tools.zach/dev/sabercord/internal/config"
	"tools.zach/dev/sabercord/internal/discord"
	"tools.zach/dev/sabercord/internal/logger"
	"tools.zach/dev/sabercord/internal/observe"
	"tools.zach/dev/sabercord/internal/paths"
	"tools.zach/dev/sabercord/internal/presence"
	"tools.zach/dev/sabercord/internal/update"
	"tools.zach/dev/sabercord/internal/watch"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time with -X main.version=... . Plain go build
// leaves "dev", and resolveVersion fills in the VCS revision instead.
var version = "dev"

// resolveVersion returns the ldflags version, or "dev+<hash>[.dirty]" from the
// build info embedded by the Go toolchain.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	v := "dev+" + revision[:min(7, len(revision))]
	if dirty {
		v += ".dirty"
	}
	return v
}

// ///////////////////////////////////////////////
// Default Data Directory
// ///////////////////////////////////////////////

// defaultDataDir returns ~/.sabercord, or ./.sabercord when the home
// directory is unknown.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	dataDir := flag.String("data-dir", defaultDataDir(), "Data directory for config, PID file and logs")
	console := flag.Bool("console", false, "Also write log lines to stderr")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	ver := resolveVersion()
	if *showVersion {
		fmt.Println(ver)
		return
	}

	os.Exit(start(DataPaths{Root: *dataDir}, ver, *console))
}

// start brings the daemon up, runs it until it stops, and returns the exit
// code. Only startup failures are non-zero.
func start(dp DataPaths, ver string, console bool) int {
	if err := os.MkdirAll(dp.Root, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: create data dir: %v\n", err)
		return 1
	}

	if alive, pid := checkStalePID(dp); alive {
		fmt.Fprintf(os.Stderr, "daemon already running (pid %d)\n", pid)
		return 1
	}

	if _, err := config.Seed(dp.Root, rootpkg.DefaultConfigTOML); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write default config: %v\n", err)
	}
	cfg, err := config.Load(dp.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: load config: %v\n", err)
		return 1
	}

	level := new(slog.LevelVar)
	level.Set(logger.ParseLevel(cfg.Log.Level))
	logOpts := logger.Options{Path: dp.Log(), Level: level, MaxSizeMB: cfg.Log.MaxSizeMB}
	if console {
		logOpts.Console = os.Stderr
	}
	log, logCloser, err := logger.NewLogger(logOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: init logger: %v\n", err)
		return 1
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("sabercord starting", "version", ver, "data_dir", dp.Root)

	token := pidToken()
	pidFile, err := writePID(dp, token)
	if err != nil {
		logger.Fail(log, "failed to write PID file", "error", err)
		return 1
	}
	defer removePID(dp, token, pidFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Update.Check {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("update check panic", "error", r)
				}
			}()
			update.Run(ctx, cfg.Update.ManifestURL, ver)
		}()
	}

	cell := &presence.Cell{}
	sink := discord.NewSink(cell, sinkOptions(cfg))
	if err := sink.Initialize(cfg.Discord.AppID); err != nil {
		slog.Warn("Discord not available yet, will keep trying", "error", err)
	}

	d := newDaemon(cfg, dp, level, observe.NewGraph(), cell, sink)
	defer d.driver.Quit()

	var configEvents <-chan struct{}
	watcher, err := watch.New(dp.Config(), watch.DefaultPollInterval)
	if err != nil {
		slog.Warn("config hot reload disabled", "error", err)
	} else {
		defer watcher.Close()
		if watcher.Polling() {
			slog.Info("using polling mode for config watching")
		}
		configEvents = watcher.Events()
	}

	br := bridge.NewClient(bridgeOptions(cfg))
	go func() {
		if err := br.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("game bridge stopped", "error", err)
		}
	}()

	ticker := time.NewTicker(cfg.TickInterval())
	defer ticker.Stop()

	d.run(loopSources{
		bridge:  br.Events(),
		ticks:   ticker.C,
		config:  configEvents,
		signals: signalChannel(),
		retick:  ticker.Reset,
	})
	slog.Info("sabercord stopped")
	return 0
}
