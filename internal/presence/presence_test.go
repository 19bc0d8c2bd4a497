package presence

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"tools.zach/dev/sabercord/internal/logger"
	"tools.zach/dev/sabercord/internal/observe"
)

// ///////////////////////////////////////////////
// Helpers
// ///////////////////////////////////////////////

var testNow = time.Unix(1_700_000_000, 0)

const believerSetup = `{
	"oneColorBeatmapCharacteristic": "OneSaber",
	"sceneSetupData": {
		"difficultyBeatmap": {
			"level": {"songName": "Believer", "levelID": "Believer"},
			"difficulty": "Expert",
			"parentDifficultyBeatmapSet": {"beatmapCharacteristic": "Standard"}
		},
		"gameplayModifiers": {"songSpeedMul": 1.0},
		"playerSpecificSettings": {"swapColors": false},
		"practiceSettings": null
	}
}`

// graphOf builds a lookup from kind/fields pairs.
func graphOf(t *testing.T, pairs ...string) *observe.Graph {
	t.Helper()
	if len(pairs)%2 != 0 {
		t.Fatal("graphOf needs kind/fields pairs")
	}
	g := observe.NewGraph()
	var objs []observe.Object
	for i := 0; i < len(pairs); i += 2 {
		objs = append(objs, observe.NewObject(observe.Kind(pairs[i]), pairs[i+1]))
	}
	g.Replace(objs)
	return g
}

func soloFlow() (string, string) {
	return string(KindMainFlowCoordinator), `{"childFlowCoordinator": "SoloFreePlayFlowCoordinator"}`
}

// captureLog routes the default logger into a buffer at info level for the
// rest of the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(logger.NewHandler(&buf, slog.LevelInfo)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func observeOrFail(t *testing.T, lookup observe.Lookup) *ObservedGameState {
	t.Helper()
	s, err := NewObserver(DefaultOptions()).Observe(lookup)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	return s
}

// ///////////////////////////////////////////////
// Observer
// ///////////////////////////////////////////////

func TestObserve_Believer(t *testing.T) {
	k, f := soloFlow()
	s := observeOrFail(t, graphOf(t, k, f, string(KindGameplayCoreSceneSetup), believerSetup))

	if s.SongName != "Believer" {
		t.Errorf("SongName = %q", s.SongName)
	}
	if s.DifficultyLabel != "Expert" {
		t.Errorf("DifficultyLabel = %q", s.DifficultyLabel)
	}
	if s.IsCustomContent || s.Practice != nil || s.ReplayModeActive {
		t.Errorf("unexpected flags: %+v", s)
	}
	if s.FlowContext != FlowSolo {
		t.Errorf("FlowContext = %v, want Solo", s.FlowContext)
	}
	if s.GameMode() != ModeStandard {
		t.Errorf("GameMode = %v, want Standard", s.GameMode())
	}
	if s.SpeedMultiplier() != 1 {
		t.Errorf("SpeedMultiplier = %v, want 1", s.SpeedMultiplier())
	}
}

func TestObserve_Unavailable(t *testing.T) {
	k, f := soloFlow()
	tests := []struct {
		name    string
		lookup  observe.Lookup
		missing string
	}{
		{"empty graph", observe.NewGraph(), "main flow coordinator, gameplay setup"},
		{"no setup", graphOf(t, k, f), "gameplay setup"},
		{"no flow", graphOf(t, string(KindGameplayCoreSceneSetup), believerSetup), "main flow coordinator"},
		{"no scene data", graphOf(t, k, f, string(KindGameplayCoreSceneSetup), `{"sceneSetupData": null}`), "scene setup data"},
		{
			"no song name",
			graphOf(t, k, f, string(KindGameplayCoreSceneSetup),
				`{"sceneSetupData": {"difficultyBeatmap": {"level": {}, "difficulty": "Hard"}}}`),
			"song name",
		},
		{
			"no difficulty",
			graphOf(t, k, f, string(KindGameplayCoreSceneSetup),
				`{"sceneSetupData": {"difficultyBeatmap": {"level": {"songName": "x"}}}}`),
			"difficulty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewObserver(DefaultOptions()).Observe(tt.lookup)
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("err = %v, want ErrUnavailable", err)
			}
			if !strings.HasSuffix(err.Error(), "missing "+tt.missing) {
				t.Errorf("err = %q, want suffix %q", err, "missing "+tt.missing)
			}
		})
	}
}

func TestObserve_FlowContext(t *testing.T) {
	tests := []struct {
		coordinator string
		want        FlowContext
	}{
		{"SoloFreePlayFlowCoordinator", FlowSolo},
		{"PartyFreePlayFlowCoordinator", FlowParty},
		{"CampaignFlowCoordinator", FlowCampaign},
		{"ArcadeFlowCoordinator", FlowArcade},
		{"SimpleDemoFlowCoordinator", FlowDemo},
		{"", FlowSolo},
	}

	for _, tt := range tests {
		t.Run(tt.want.String()+"/"+tt.coordinator, func(t *testing.T) {
			flow := `{"childFlowCoordinator": "` + tt.coordinator + `"}`
			s := observeOrFail(t, graphOf(t,
				string(KindMainFlowCoordinator), flow,
				string(KindGameplayCoreSceneSetup), believerSetup))
			if s.FlowContext != tt.want {
				t.Errorf("FlowContext = %v, want %v", s.FlowContext, tt.want)
			}
		})
	}
}

func TestObserve_Replay(t *testing.T) {
	k, f := soloFlow()
	setup := string(KindGameplayCoreSceneSetup)

	tests := []struct {
		name   string
		lookup observe.Lookup
		want   bool
	}{
		{"no controller", graphOf(t, k, f, setup, believerSetup), false},
		{"playback", graphOf(t, k, f, setup, believerSetup, "Z", `{"mode": "Playback"}`), true},
		{"recording", graphOf(t, k, f, setup, believerSetup, "Z", `{"mode": "Record"}`), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := observeOrFail(t, tt.lookup).ReplayModeActive; got != tt.want {
				t.Errorf("ReplayModeActive = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestObserve_ReplayWarnedOnce(t *testing.T) {
	k, f := soloFlow()
	lookup := graphOf(t, k, f, string(KindGameplayCoreSceneSetup), believerSetup)
	o := NewObserver(DefaultOptions())

	for range 3 {
		if _, err := o.Observe(lookup); err != nil {
			t.Fatal(err)
		}
	}
	if !o.replayWarned {
		t.Error("replayWarned should be set after a missing controller")
	}

	opts := DefaultOptions()
	opts.ReplayControllerKind = "ReplayPlayer"
	o.SetOptions(opts)
	if o.replayWarned {
		t.Error("changing the controller kind should re-arm the warning")
	}
}

// ///////////////////////////////////////////////
// Game Mode
// ///////////////////////////////////////////////

func TestGameMode_Priority(t *testing.T) {
	tests := []struct {
		name  string
		state ObservedGameState
		want  GameMode
	}{
		{"standard", ObservedGameState{}, ModeStandard},
		{"one saber", ObservedGameState{OneSaberCharacteristic: true}, ModeOneSaber},
		{"no arrows modifier", ObservedGameState{NoArrowsModifier: true}, ModeNoArrows},
		{"no arrows characteristic", ObservedGameState{NoArrowsCharacteristic: true}, ModeNoArrows},
		{"no arrows beats one saber", ObservedGameState{NoArrowsModifier: true, OneSaberCharacteristic: true}, ModeNoArrows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.GameMode(); got != tt.want {
				t.Errorf("GameMode = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestObserve_Characteristics(t *testing.T) {
	k, f := soloFlow()
	setupWith := func(characteristic string) string {
		return `{
			"oneColorBeatmapCharacteristic": "OneSaber",
			"sceneSetupData": {"difficultyBeatmap": {
				"level": {"songName": "s"}, "difficulty": "Easy",
				"parentDifficultyBeatmapSet": {"beatmapCharacteristic": "` + characteristic + `"}
			}}
		}`
	}

	tests := []struct {
		characteristic string
		want           GameMode
	}{
		{"Standard", ModeStandard},
		{"OneSaber", ModeOneSaber},
		{"NoArrows", ModeNoArrows},
		{"NOARROWS", ModeNoArrows},
	}

	for _, tt := range tests {
		t.Run(tt.characteristic, func(t *testing.T) {
			s := observeOrFail(t, graphOf(t, k, f, string(KindGameplayCoreSceneSetup), setupWith(tt.characteristic)))
			if got := s.GameMode(); got != tt.want {
				t.Errorf("GameMode = %v, want %v", got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Deriver
// ///////////////////////////////////////////////

func TestGameplay_Believer(t *testing.T) {
	k, f := soloFlow()
	d := NewDeriver(DefaultOptions())
	got, ok := d.Resolve(Status{}, graphOf(t, k, f, string(KindGameplayCoreSceneSetup), believerSetup), testNow)
	if !ok {
		t.Fatal("Resolve reported a fallback for a complete snapshot")
	}

	want := Status{
		Details:        "Believer | Expert",
		State:          "Solo Standard",
		LargeImageKey:  "default",
		LargeImageText: "Beat Saber",
		SmallImageKey:  "solo",
		SmallImageText: "Standard",
		StartTimestamp: testNow.Unix(),
	}
	if got != want {
		t.Errorf("Resolve =\n  %+v\nwant\n  %+v", got, want)
	}
}

func TestGameplay_StateLine(t *testing.T) {
	tests := []struct {
		name  string
		state ObservedGameState
		want  string
	}{
		{
			name:  "modifiers in fixed order",
			state: ObservedGameState{GameplaySpeedMultiplier: 1, Modifiers: Modifiers(0).With(ModGhostNotes).With(ModNoFail)},
			want:  "Solo Standard | No Fail | Ghost Notes",
		},
		{
			name: "all modifiers",
			state: ObservedGameState{GameplaySpeedMultiplier: 1, Modifiers: Modifiers(0).
				With(ModNoFail).With(ModInstantFail).With(ModMirrored).With(ModDisappearingArrows).With(ModGhostNotes)},
			want: "Solo Standard | No Fail | Instant Fail | Mirrored | Disappearing Arrows | Ghost Notes",
		},
		{
			name:  "speed",
			state: ObservedGameState{GameplaySpeedMultiplier: 1.2},
			want:  "Solo Standard | Speed x1.2",
		},
		{
			name:  "practice speed overrides gameplay speed",
			state: ObservedGameState{GameplaySpeedMultiplier: 1.5, Practice: &PracticeSettings{SpeedMultiplier: 0.8}},
			want:  "Practice | Solo Standard | Speed x0.8",
		},
		{
			name:  "practice at normal speed",
			state: ObservedGameState{GameplaySpeedMultiplier: 1.5, Practice: &PracticeSettings{SpeedMultiplier: 1}},
			want:  "Practice | Solo Standard",
		},
		{
			name: "prefixes in order",
			state: ObservedGameState{
				GameplaySpeedMultiplier: 1, ReplayModeActive: true, IsCustomContent: true,
				Practice: &PracticeSettings{SpeedMultiplier: 1}, FlowContext: FlowCampaign, OneSaberCharacteristic: true,
			},
			want: "[Replay] Custom | Practice | Campaign One Saber",
		},
		{
			name:  "party no arrows",
			state: ObservedGameState{GameplaySpeedMultiplier: 1, FlowContext: FlowParty, NoArrowsModifier: true},
			want:  "Party No Arrows",
		},
	}

	d := NewDeriver(DefaultOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Gameplay(&tt.state, testNow).State; got != tt.want {
				t.Errorf("State = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGameplay_NoSpeedTagAtNormalSpeed(t *testing.T) {
	d := NewDeriver(DefaultOptions())
	for _, speed := range []float64{1, 1.0000000001} {
		got := d.Gameplay(&ObservedGameState{GameplaySpeedMultiplier: speed}, testNow).State
		if strings.Contains(got, "Speed x") {
			t.Errorf("speed %v: State = %q, should not contain a speed tag", speed, got)
		}
	}
}

func TestGameplay_Images(t *testing.T) {
	tests := []struct {
		name      string
		state     ObservedGameState
		wantKey   string
		wantLabel string
	}{
		{"standard", ObservedGameState{}, "solo", "Standard"},
		{"one saber", ObservedGameState{OneSaberCharacteristic: true}, "one_saber", "One Saber"},
		{"no arrows", ObservedGameState{NoArrowsCharacteristic: true}, "no_arrows", "No Arrows"},
		{"party keeps mode label", ObservedGameState{FlowContext: FlowParty, OneSaberCharacteristic: true}, "party", "One Saber"},
	}

	d := NewDeriver(DefaultOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.state.GameplaySpeedMultiplier = 1
			got := d.Gameplay(&tt.state, testNow)
			if got.SmallImageKey != tt.wantKey || got.SmallImageText != tt.wantLabel {
				t.Errorf("small image = (%q, %q), want (%q, %q)",
					got.SmallImageKey, got.SmallImageText, tt.wantKey, tt.wantLabel)
			}
			if got.LargeImageKey != "default" || got.LargeImageText != "Beat Saber" {
				t.Errorf("large image = (%q, %q)", got.LargeImageKey, got.LargeImageText)
			}
		})
	}
}

func TestGameplay_StartTimestamp(t *testing.T) {
	now := testNow.Unix()
	tests := []struct {
		name     string
		practice *PracticeSettings
		want     int64
	}{
		{"not practicing", nil, now},
		{"practice from song start", &PracticeSettings{SpeedMultiplier: 1}, now},
		{"practice mid-song", &PracticeSettings{SpeedMultiplier: 1, StartSongTime: 42.7}, now - 42},
		{"practice in advance", &PracticeSettings{SpeedMultiplier: 1, StartSongTime: 10, StartInAdvance: true}, now - 7},
		{"practice in advance near start", &PracticeSettings{SpeedMultiplier: 1, StartSongTime: 2, StartInAdvance: true}, now},
	}

	d := NewDeriver(DefaultOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &ObservedGameState{GameplaySpeedMultiplier: 1, Practice: tt.practice}
			if got := d.Gameplay(s, testNow).StartTimestamp; got != tt.want {
				t.Errorf("StartTimestamp = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestObserve_PracticeAndModifiers(t *testing.T) {
	k, f := soloFlow()
	setup := `{
		"sceneSetupData": {
			"difficultyBeatmap": {
				"level": {"songName": "Crystallized", "levelID": "custom_level_∎ABC"},
				"difficulty": "ExpertPlus",
				"parentDifficultyBeatmapSet": {"beatmapCharacteristic": "Standard"}
			},
			"gameplayModifiers": {"noFail": true, "ghostNotes": true, "songSpeedMul": 1.0},
			"playerSpecificSettings": {"swapColors": true},
			"practiceSettings": {"startSongTime": 10, "songSpeedMul": 1.0, "startInAdvanceAndClearNotes": true}
		}
	}`

	d := NewDeriver(DefaultOptions())
	got, _ := d.Resolve(Status{}, graphOf(t, k, f, string(KindGameplayCoreSceneSetup), setup), testNow)

	if got.Details != "Crystallized | Expert+" {
		t.Errorf("Details = %q", got.Details)
	}
	if want := "Custom | Practice | Solo Standard | No Fail | Mirrored | Ghost Notes"; got.State != want {
		t.Errorf("State = %q, want %q", got.State, want)
	}
	if want := testNow.Unix() - 7; got.StartTimestamp != want {
		t.Errorf("StartTimestamp = %d, want %d", got.StartTimestamp, want)
	}
}

func TestDegraded(t *testing.T) {
	d := NewDeriver(DefaultOptions())
	prev := d.Menu()

	got, ok := d.Resolve(prev, observe.NewGraph(), testNow)
	if ok {
		t.Error("Resolve on an empty graph should report a fallback")
	}
	if got.Details != "Playing" {
		t.Errorf("Details = %q, want Playing", got.Details)
	}
	prev.Details = "Playing"
	if got != prev {
		t.Errorf("Degraded should keep every other field: got %+v, want %+v", got, prev)
	}
}

func TestMenu_Idempotent(t *testing.T) {
	d := NewDeriver(DefaultOptions())
	first := d.Menu()
	want := Status{Details: "In Menu", LargeImageKey: "default", LargeImageText: "Beat Saber"}
	if first != want {
		t.Errorf("Menu = %+v, want %+v", first, want)
	}
	if second := d.Menu(); second != first || second.Hash() != first.Hash() {
		t.Error("Menu should be identical across calls")
	}
}

// panicLookup stands in for a host object graph that fails mid-read.
type panicLookup struct{}

func (panicLookup) FindFirst(observe.Kind) (observe.Object, bool) { panic("host object destroyed") }
func (panicLookup) FindAll(observe.Kind) []observe.Object         { panic("host object destroyed") }

func TestResolve_RecoversPanic(t *testing.T) {
	d := NewDeriver(DefaultOptions())
	got, ok := d.Resolve(d.Menu(), panicLookup{}, testNow)
	if ok || got.Details != "Playing" {
		t.Errorf("Resolve = (%q, %v), want (Playing, false)", got.Details, ok)
	}
}

func TestResolve_LogsMissingDataAtInfo(t *testing.T) {
	buf := captureLog(t)
	k, f := soloFlow()
	d := NewDeriver(DefaultOptions())

	if _, ok := d.Resolve(d.Menu(), graphOf(t, k, f), testNow); ok {
		t.Fatal("Resolve without a gameplay setup should report a fallback")
	}

	out := buf.String()
	if !strings.Contains(out, "[INFO]") {
		t.Errorf("fallback should be logged at info level, got %q", out)
	}
	if !strings.Contains(out, "missing gameplay setup") {
		t.Errorf("log should name the missing parts, got %q", out)
	}
}

// ///////////////////////////////////////////////
// Status and Cell
// ///////////////////////////////////////////////

func TestStatus_Hash(t *testing.T) {
	a := Status{Details: "x", StartTimestamp: 1}
	b := a
	if a.Hash() != b.Hash() {
		t.Error("equal statuses should hash equal")
	}
	b.StartTimestamp = 2
	if a.Hash() == b.Hash() {
		t.Error("different statuses should hash differently")
	}
}

func TestCell(t *testing.T) {
	var c Cell
	if _, ok := c.Load(); ok {
		t.Fatal("empty cell should report no status")
	}

	c.Store(Status{Details: "a"})
	if s, ok := c.Load(); !ok || s.Details != "a" {
		t.Fatalf("Load = (%+v, %v)", s, ok)
	}

	c.Clear()
	if _, ok := c.Load(); ok {
		t.Error("cleared cell should report no status")
	}
}
