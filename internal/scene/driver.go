// Package scene drives presence updates from host scene transitions.
//
// Entering a menu scene publishes the menu status immediately. Entering a
// gameplay scene schedules a single deferred derivation for the next tick,
// because the host spawns the level's objects over the frame after the scene
// loads. Ticks arrive from the daemon's event loop, which is the only
// goroutine that touches a [Driver].
package scene

import (
	"log/slog"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"tools.zach/dev/sabercord/internal/observe"
	"tools.zach/dev/sabercord/internal/presence"
)

// Sink receives derived presence records.
type Sink interface {
	// Publish sends s without waiting for the result.
	Publish(s presence.Status)
	// Pump is called once per tick to flush and maintain the connection.
	Pump()
	// Clear removes the published record.
	Clear()
	// Shutdown releases the sink. Only the first call has an effect.
	Shutdown()
}

// Patterns selects which scene names take the menu and gameplay paths. Each
// entry is a doublestar glob matched against the full scene name.
type Patterns struct {
	Menu     []string
	Gameplay []string
}

// DefaultPatterns matches the stock host scenes.
func DefaultPatterns() Patterns {
	return Patterns{
		Menu:     []string{"MenuCore"},
		Gameplay: []string{"GameCore"},
	}
}

// deferred is a derivation queued for the next tick. gen is the scene
// generation it was queued in.
type deferred struct {
	gen   uint64
	scene string
}

// ///////////////////////////////////////////////
// Driver
// ///////////////////////////////////////////////

// Driver connects scene notifications to the deriver, the presence cell and
// the sink. It is not safe for concurrent use.
type Driver struct {
	deriver  *presence.Deriver
	cell     *presence.Cell
	sink     Sink
	lookup   observe.Lookup
	patterns Patterns

	// now is the clock used for elapsed-time origins.
	now func() time.Time

	// gen advances on every scene change so stale deferred work is skipped.
	gen     uint64
	pending []deferred
	closed  bool

	// scene is the current gameplay scene, or "" outside gameplay.
	scene string
	// awaiting is set when the current scene's derivation fell back because
	// its objects had not arrived yet.
	awaiting bool
}

// NewDriver creates a Driver. The driver is the only writer of cell.
func NewDriver(deriver *presence.Deriver, cell *presence.Cell, sink Sink, lookup observe.Lookup, patterns Patterns) *Driver {
	return &Driver{
		deriver:  deriver,
		cell:     cell,
		sink:     sink,
		lookup:   lookup,
		patterns: patterns,
		now:      time.Now,
	}
}

// SetPatterns replaces the scene patterns. It takes effect on the next scene
// change.
func (d *Driver) SetPatterns(p Patterns) {
	d.patterns = p
}

// SceneChanged handles a transition from prev to next.
func (d *Driver) SceneChanged(prev, next string) {
	if d.closed {
		return
	}
	d.gen++
	d.scene = ""
	d.awaiting = false
	slog.Debug("scene changed", "from", prev, "to", next)

	switch {
	case matchAny(d.patterns.Menu, next):
		d.emit(d.deriver.Menu())
	case matchAny(d.patterns.Gameplay, next):
		d.scene = next
		d.pending = append(d.pending, deferred{gen: d.gen, scene: next})
	}
}

// SnapshotReplaced is called after the lookup received new objects. If the
// current gameplay scene fell back before its objects arrived, one more
// derivation is queued for the next tick. A scene that already resolved is
// left alone so its start timestamp is kept.
func (d *Driver) SnapshotReplaced() {
	if d.closed || !d.awaiting {
		return
	}
	d.awaiting = false
	d.pending = append(d.pending, deferred{gen: d.gen, scene: d.scene})
}

// Tick runs the derivations queued before this call, then pumps the sink.
// Work queued while the tick runs waits for the next one.
func (d *Driver) Tick() {
	if d.closed {
		return
	}

	due := d.pending
	d.pending = nil
	for _, task := range due {
		if task.gen != d.gen {
			slog.Debug("skipping superseded gameplay derivation", "scene", task.scene)
			continue
		}
		prev, _ := d.cell.Load()
		st, ok := d.deriver.Resolve(prev, d.lookup, d.now())
		d.awaiting = !ok
		d.emit(st)
	}

	d.sink.Pump()
}

// Pending reports how many derivations are waiting for the next tick.
func (d *Driver) Pending() int {
	return len(d.pending)
}

// Reset drops queued work and the current record, e.g. after the host
// disconnects.
func (d *Driver) Reset() {
	if d.closed {
		return
	}
	d.gen++
	d.pending = nil
	d.scene = ""
	d.awaiting = false
	d.cell.Clear()
	d.sink.Clear()
}

// Quit shuts the sink down. Later calls, and any further notifications, are
// ignored.
func (d *Driver) Quit() {
	if d.closed {
		return
	}
	d.closed = true
	d.pending = nil
	d.sink.Shutdown()
}

// emit stores s as the current record and publishes it.
func (d *Driver) emit(s presence.Status) {
	d.cell.Store(s)
	d.sink.Publish(s)
}

// matchAny reports whether name matches any of patterns. Malformed patterns
// never match; config validation rejects them earlier.
func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
