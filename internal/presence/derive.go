package presence

import (
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"tools.zach/dev/sabercord/internal/observe"
)

// ///////////////////////////////////////////////
// Options
// ///////////////////////////////////////////////

// Options controls display text and detection heuristics. The zero value is
// not useful; start from [DefaultOptions].
type Options struct {
	MenuDetails     string
	DegradedDetails string
	LargeImageKey   string
	LargeImageText  string

	// CustomLevelMarker marks user-made levels inside a level ID.
	CustomLevelMarker string
	// NoArrowsCharacteristic is matched case-insensitively against the
	// beatmap characteristic name.
	NoArrowsCharacteristic string
	// ReplayControllerKind is the object kind of the third-party replay
	// controller. Empty disables replay detection.
	ReplayControllerKind observe.Kind
	// ReplayModeField holds "Playback" while a replay is shown.
	ReplayModeField string
	// PracticeLeadIn is how many seconds before the practice start time
	// playback begins when notes are cleared in advance.
	PracticeLeadIn float64
}

// DefaultOptions returns the settings matching the stock host.
func DefaultOptions() Options {
	return Options{
		MenuDetails:            "In Menu",
		DegradedDetails:        "Playing",
		LargeImageKey:          "default",
		LargeImageText:         "Beat Saber",
		CustomLevelMarker:      "∎",
		NoArrowsCharacteristic: "noarrow",
		ReplayControllerKind:   "Z",
		ReplayModeField:        "mode",
		PracticeLeadIn:         3,
	}
}

// ///////////////////////////////////////////////
// Deriver
// ///////////////////////////////////////////////

// Deriver maps observed game state to a [Status]. It owns an [Observer] and,
// like it, is used from a single goroutine.
type Deriver struct {
	opts     Options
	observer *Observer
}

// NewDeriver creates a Deriver with the given options.
func NewDeriver(opts Options) *Deriver {
	return &Deriver{opts: opts, observer: NewObserver(opts)}
}

// SetOptions swaps display and detection settings.
func (d *Deriver) SetOptions(opts Options) {
	d.opts = opts
	d.observer.SetOptions(opts)
}

// Menu returns the fixed status shown while the player is in the menus.
func (d *Deriver) Menu() Status {
	return Status{
		Details:        d.opts.MenuDetails,
		LargeImageKey:  d.opts.LargeImageKey,
		LargeImageText: d.opts.LargeImageText,
	}
}

// Degraded returns prev with only the details replaced by the generic
// "Playing" text. It is used when the game state cannot be observed.
func (d *Deriver) Degraded(prev Status) Status {
	prev.Details = d.opts.DegradedDetails
	return prev
}

// Gameplay builds the full in-level status for s. now is the wall clock used
// as the elapsed-time origin.
func (d *Deriver) Gameplay(s *ObservedGameState, now time.Time) Status {
	mode := s.GameMode()

	var state strings.Builder
	if s.ReplayModeActive {
		state.WriteString("[Replay] ")
	}
	if s.IsCustomContent {
		state.WriteString("Custom | ")
	}
	if s.Practice != nil {
		state.WriteString("Practice | ")
	}
	state.WriteString(s.FlowContext.String())
	state.WriteString(" ")
	state.WriteString(mode.Label())

	// Compared at float32 precision so values parsed from JSON doubles like
	// 1.0000000001 still count as normal speed.
	if speed := s.SpeedMultiplier(); float32(speed) != 1 {
		state.WriteString(" | Speed x")
		state.WriteString(strconv.FormatFloat(speed, 'f', -1, 32))
	}
	for _, t := range modifierTags {
		if s.Modifiers.Has(t.mod) {
			state.WriteString(t.tag)
		}
	}

	small := mode.ImageKey()
	if s.FlowContext == FlowParty {
		small = "party"
	}

	return Status{
		Details:        s.SongName + " | " + s.DifficultyLabel,
		State:          state.String(),
		LargeImageKey:  d.opts.LargeImageKey,
		LargeImageText: d.opts.LargeImageText,
		SmallImageKey:  small,
		SmallImageText: mode.Label(),
		StartTimestamp: d.startTimestamp(s, now),
	}
}

// startTimestamp backdates the elapsed-time origin so the counter matches
// the song position when practice starts mid-song.
func (d *Deriver) startTimestamp(s *ObservedGameState, now time.Time) int64 {
	start := now.Unix()
	p := s.Practice
	if p == nil {
		return start
	}
	if p.StartInAdvance {
		return start - int64(math.Max(0, p.StartSongTime-d.opts.PracticeLeadIn))
	}
	return start - int64(p.StartSongTime)
}

// Resolve observes lookup and derives the gameplay status. When the state is
// unavailable, or anything unexpected happens while reading it, the
// degraded form of prev is returned instead and ok is false. It never panics.
func (d *Deriver) Resolve(prev Status, lookup observe.Lookup, now time.Time) (status Status, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered panic while deriving status", "panic", r)
			status, ok = d.Degraded(prev), false
		}
	}()

	s, err := d.observer.Observe(lookup)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			slog.Info("game state not available, showing fallback", "reason", err)
		} else {
			slog.Warn("failed to observe game state", "error", err)
		}
		return d.Degraded(prev), false
	}
	return d.Gameplay(s, now), true
}
