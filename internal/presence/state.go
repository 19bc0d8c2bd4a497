// Package presence turns an observed game state into the Rich Presence record
// shown on the player's Discord profile.
//
// The package has three parts:
//
//   - [Observer] reads host objects through an [observe.Lookup] and builds an
//     immutable [ObservedGameState] snapshot, or reports [ErrUnavailable].
//   - [Deriver] maps a snapshot to a [Status] (song, difficulty, mode tags,
//     iconography, elapsed-time origin), with a fixed menu status and a
//     degraded "Playing" fallback.
//   - [Cell] holds the current [Status] between the driver that writes it and
//     the sink that forwards it.
package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"

	"tools.zach/dev/sabercord/internal/logger"
	"tools.zach/dev/sabercord/internal/observe"
)

// ///////////////////////////////////////////////
// Host Object Kinds
// ///////////////////////////////////////////////

// Host object kinds the observer reads. The replay controller kind is not
// listed here because it is obfuscated and changes between leaderboard mod
// releases; see [Options.ReplayControllerKind].
const (
	KindMainFlowCoordinator    observe.Kind = "MainFlowCoordinator"
	KindGameplayCoreSceneSetup observe.Kind = "GameplayCoreSceneSetup"
)

// ///////////////////////////////////////////////
// Enums
// ///////////////////////////////////////////////

// FlowContext is the high-level mode the host is navigating.
type FlowContext int

const (
	FlowSolo FlowContext = iota
	FlowParty
	FlowCampaign
	FlowArcade
	FlowDemo
)

// String returns the label used in the state line.
func (f FlowContext) String() string {
	switch f {
	case FlowParty:
		return "Party"
	case FlowCampaign:
		return "Campaign"
	case FlowArcade:
		return "Arcade"
	case FlowDemo:
		return "Demo"
	default:
		return "Solo"
	}
}

// flowCoordinators maps child flow coordinator type names to contexts.
// Anything not listed is Solo.
var flowCoordinators = map[string]FlowContext{
	"ArcadeFlowCoordinator":        FlowArcade,
	"PartyFreePlayFlowCoordinator": FlowParty,
	"SimpleDemoFlowCoordinator":    FlowDemo,
	"CampaignFlowCoordinator":      FlowCampaign,
}

// ParseFlowContext maps a flow coordinator type name to a [FlowContext].
func ParseFlowContext(coordinator string) FlowContext {
	if f, ok := flowCoordinators[coordinator]; ok {
		return f
	}
	return FlowSolo
}

// Modifier is a gameplay modifier shown as a tag on the state line.
type Modifier uint8

const (
	ModNoFail Modifier = 1 << iota
	ModInstantFail
	ModMirrored
	ModDisappearingArrows
	ModGhostNotes
)

// Modifiers is a set of [Modifier] flags.
type Modifiers uint8

// Has reports whether m is in the set.
func (s Modifiers) Has(m Modifier) bool { return s&Modifiers(m) != 0 }

// With returns the set with m added.
func (s Modifiers) With(m Modifier) Modifiers { return s | Modifiers(m) }

// modifierTags is the fixed display order of modifier tags.
var modifierTags = []struct {
	mod Modifier
	tag string
}{
	{ModNoFail, " | No Fail"},
	{ModInstantFail, " | Instant Fail"},
	{ModMirrored, " | Mirrored"},
	{ModDisappearingArrows, " | Disappearing Arrows"},
	{ModGhostNotes, " | Ghost Notes"},
}

// GameMode is the control scheme of the level being played.
type GameMode int

const (
	ModeStandard GameMode = iota
	ModeOneSaber
	ModeNoArrows
)

// Label returns the text shown on the state line and the small image tooltip.
func (m GameMode) Label() string {
	switch m {
	case ModeOneSaber:
		return "One Saber"
	case ModeNoArrows:
		return "No Arrows"
	default:
		return "Standard"
	}
}

// ImageKey returns the Discord asset key for the small image.
func (m GameMode) ImageKey() string {
	switch m {
	case ModeOneSaber:
		return "one_saber"
	case ModeNoArrows:
		return "no_arrows"
	default:
		return "solo"
	}
}

// ///////////////////////////////////////////////
// Observed State
// ///////////////////////////////////////////////

// PracticeSettings is present only when the level was started from practice.
type PracticeSettings struct {
	// SpeedMultiplier replaces the gameplay speed while practicing.
	SpeedMultiplier float64
	// StartSongTime is the song position, in seconds, practice starts at.
	StartSongTime float64
	// StartInAdvance means playback begins a few seconds before StartSongTime
	// with the notes in between cleared.
	StartInAdvance bool
}

// ObservedGameState is a snapshot of one gameplay-scene entry. It is built
// once by [Observer.Observe] and never mutated afterwards.
type ObservedGameState struct {
	SongName        string
	DifficultyLabel string
	// IsCustomContent is set when the level ID carries the custom-level marker.
	IsCustomContent bool

	// Practice is nil outside practice mode.
	Practice *PracticeSettings
	// GameplaySpeedMultiplier applies only when Practice is nil.
	GameplaySpeedMultiplier float64

	Modifiers Modifiers
	// NoArrowsModifier is the explicit "no arrows" gameplay modifier.
	NoArrowsModifier bool
	// NoArrowsCharacteristic is set when the beatmap characteristic names the
	// no-arrows scheme.
	NoArrowsCharacteristic bool
	// OneSaberCharacteristic is set when the beatmap characteristic is the
	// host's designated single-colour characteristic.
	OneSaberCharacteristic bool

	FlowContext FlowContext
	// ReplayModeActive is true only when a replay controller exists and is in
	// playback mode.
	ReplayModeActive bool
}

// GameMode resolves the control scheme by priority: no-arrows (modifier or
// characteristic) beats one-saber, which beats standard.
func (s *ObservedGameState) GameMode() GameMode {
	switch {
	case s.NoArrowsModifier || s.NoArrowsCharacteristic:
		return ModeNoArrows
	case s.OneSaberCharacteristic:
		return ModeOneSaber
	default:
		return ModeStandard
	}
}

// SpeedMultiplier returns the multiplier in effect: the practice speed while
// practicing, otherwise the gameplay modifier speed.
func (s *ObservedGameState) SpeedMultiplier() float64 {
	if s.Practice != nil {
		return s.Practice.SpeedMultiplier
	}
	return s.GameplaySpeedMultiplier
}

// ///////////////////////////////////////////////
// Observer
// ///////////////////////////////////////////////

// ErrUnavailable is returned when required host objects or fields cannot be
// resolved. It is expected for one tick after a scene loads and on
// unsupported host versions.
var ErrUnavailable = errors.New("game state unavailable")

// difficultyNames maps host difficulty identifiers to display names.
var difficultyNames = map[string]string{
	"ExpertPlus": "Expert+",
}

// Observer builds [ObservedGameState] snapshots from a [observe.Lookup]. It is
// used from the event loop goroutine only.
type Observer struct {
	opts Options
	// replayWarned limits the missing-replay-controller message to once.
	replayWarned bool
}

// NewObserver creates an Observer using the detection settings in opts.
func NewObserver(opts Options) *Observer {
	return &Observer{opts: opts}
}

// SetOptions swaps the detection settings, e.g. after a config reload.
func (o *Observer) SetOptions(opts Options) {
	if opts.ReplayControllerKind != o.opts.ReplayControllerKind {
		o.replayWarned = false
	}
	o.opts = opts
}

// Observe resolves the current gameplay state. It returns an error wrapping
// [ErrUnavailable] that names every missing required part.
func (o *Observer) Observe(lookup observe.Lookup) (*ObservedGameState, error) {
	mainFlow, hasFlow := lookup.FindFirst(KindMainFlowCoordinator)
	setup, hasSetup := lookup.FindFirst(KindGameplayCoreSceneSetup)

	var missing []string
	if !hasFlow {
		missing = append(missing, "main flow coordinator")
	}
	if !hasSetup {
		missing = append(missing, "gameplay setup")
	} else if !setup.Has("sceneSetupData") {
		missing = append(missing, "scene setup data")
	} else {
		if setup.Get("sceneSetupData.difficultyBeatmap.level.songName").String() == "" {
			missing = append(missing, "song name")
		}
		if setup.Get("sceneSetupData.difficultyBeatmap.difficulty").String() == "" {
			missing = append(missing, "difficulty")
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrUnavailable, strings.Join(missing, ", "))
	}

	data := setup.Get("sceneSetupData")
	beatmap := data.Get("difficultyBeatmap")
	mods := data.Get("gameplayModifiers")

	s := &ObservedGameState{
		SongName:                beatmap.Get("level.songName").String(),
		DifficultyLabel:         difficultyLabel(beatmap.Get("difficulty").String()),
		GameplaySpeedMultiplier: 1,
		NoArrowsModifier:        mods.Get("noArrows").Bool(),
	}

	if marker := o.opts.CustomLevelMarker; marker != "" {
		s.IsCustomContent = strings.Contains(beatmap.Get("level.levelID").String(), marker)
	}

	if speed := mods.Get("songSpeedMul"); speed.Exists() {
		s.GameplaySpeedMultiplier = speed.Float()
	}

	if practice := data.Get("practiceSettings"); practice.IsObject() {
		p := &PracticeSettings{
			SpeedMultiplier: 1,
			StartSongTime:   practice.Get("startSongTime").Float(),
			StartInAdvance:  practice.Get("startInAdvanceAndClearNotes").Bool(),
		}
		if speed := practice.Get("songSpeedMul"); speed.Exists() {
			p.SpeedMultiplier = speed.Float()
		}
		s.Practice = p
	}

	if mods.Get("noFail").Bool() {
		s.Modifiers = s.Modifiers.With(ModNoFail)
	}
	if mods.Get("instaFail").Bool() {
		s.Modifiers = s.Modifiers.With(ModInstantFail)
	}
	if data.Get("playerSpecificSettings.swapColors").Bool() {
		s.Modifiers = s.Modifiers.With(ModMirrored)
	}
	if mods.Get("disappearingArrows").Bool() {
		s.Modifiers = s.Modifiers.With(ModDisappearingArrows)
	}
	if mods.Get("ghostNotes").Bool() {
		s.Modifiers = s.Modifiers.With(ModGhostNotes)
	}

	characteristic := beatmap.Get("parentDifficultyBeatmapSet.beatmapCharacteristic").String()
	if needle := o.opts.NoArrowsCharacteristic; needle != "" {
		fold := cases.Fold()
		s.NoArrowsCharacteristic = strings.Contains(fold.String(characteristic), fold.String(needle))
	}
	if oneColor := setup.Get("oneColorBeatmapCharacteristic").String(); oneColor != "" {
		s.OneSaberCharacteristic = characteristic == oneColor
	}

	child := mainFlow.Get("childFlowCoordinator").String()
	s.FlowContext = ParseFlowContext(child)
	slog.Log(context.Background(), logger.LevelTrace, "resolved flow coordinator",
		"coordinator", child, "context", s.FlowContext.String())

	s.ReplayModeActive = o.replayActive(lookup)
	return s, nil
}

// replayActive reports whether the replay controller is in playback mode. A
// missing controller is normal on hosts without a replay-capable leaderboard
// mod, so it is only reported once.
func (o *Observer) replayActive(lookup observe.Lookup) bool {
	kind := o.opts.ReplayControllerKind
	if kind == "" {
		return false
	}
	ctrl, ok := lookup.FindFirst(kind)
	if !ok {
		if !o.replayWarned {
			o.replayWarned = true
			slog.Info("no replay controller found, replay detection disabled for this host",
				"kind", string(kind))
		}
		return false
	}
	return ctrl.Get(o.opts.ReplayModeField).String() == "Playback"
}

// difficultyLabel converts a host difficulty identifier to its display name.
func difficultyLabel(id string) string {
	if name, ok := difficultyNames[id]; ok {
		return name
	}
	return id
}
