// Package observe exposes the host game's live object graph to the rest of the
// daemon through the [Lookup] capability.
//
// The in-game shim serializes the objects it can see (flow coordinators, scene
// setups, the replay controller) as JSON documents. The daemon never touches
// host internals directly; it only asks a [Lookup] for objects by [Kind] and
// reads their fields through gjson paths. Absence is always a normal answer:
// a freshly loaded scene has no objects until the shim pushes the next
// snapshot, and some kinds never exist on older host versions.
package observe

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Kind names a host object type (e.g. "MainFlowCoordinator").
type Kind string

// Object is one live host object: its kind plus a field document.
type Object struct {
	kind   Kind
	fields gjson.Result
}

// NewObject builds an Object from a kind and a raw JSON field document.
func NewObject(kind Kind, fieldsJSON string) Object {
	return Object{kind: kind, fields: gjson.Parse(fieldsJSON)}
}

// Kind returns the object's type name.
func (o Object) Kind() Kind { return o.kind }

// Get returns the field at a gjson path (e.g. "difficultyBeatmap.level.songName").
// A missing field yields a result whose Exists reports false.
func (o Object) Get(path string) gjson.Result {
	if !o.fields.Exists() {
		return gjson.Result{}
	}
	return o.fields.Get(path)
}

// Has reports whether the field at path is present and not JSON null.
func (o Object) Has(path string) bool {
	r := o.Get(path)
	return r.Exists() && r.Type != gjson.Null
}

// Lookup finds live host objects by kind. Implementations are best-effort and
// must never panic: a kind with no live object yields false or an empty slice.
type Lookup interface {
	FindFirst(kind Kind) (Object, bool)
	FindAll(kind Kind) []Object
}

// ///////////////////////////////////////////////
// Graph
// ///////////////////////////////////////////////

// Graph is the daemon-side mirror of the host object graph. It holds the most
// recent snapshot pushed by the bridge. A Graph is owned by the event loop
// goroutine; it is not safe for concurrent use.
type Graph struct {
	// objects preserves snapshot order so FindFirst is deterministic.
	objects []Object
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Replace swaps the current snapshot for objects.
func (g *Graph) Replace(objects []Object) {
	g.objects = objects
}

// Reset drops every object, e.g. when the bridge disconnects.
func (g *Graph) Reset() {
	g.objects = nil
}

// Len returns the number of objects in the current snapshot.
func (g *Graph) Len() int {
	return len(g.objects)
}

// FindFirst returns the first object of the given kind in snapshot order.
func (g *Graph) FindFirst(kind Kind) (Object, bool) {
	for _, o := range g.objects {
		if o.kind == kind {
			return o, true
		}
	}
	return Object{}, false
}

// FindAll returns every object of the given kind in snapshot order.
func (g *Graph) FindAll(kind Kind) []Object {
	var out []Object
	for _, o := range g.objects {
		if o.kind == kind {
			out = append(out, o)
		}
	}
	return out
}

// ///////////////////////////////////////////////
// Snapshot Decoding
// ///////////////////////////////////////////////

// ErrInvalidSnapshot is returned when a snapshot is not a JSON array.
var ErrInvalidSnapshot = errors.New("invalid object snapshot")

// ParseObjects decodes a snapshot of the form:
//
//	[{"kind": "MainFlowCoordinator", "fields": {...}}, ...]
//
// Entries without a kind are skipped. An entry without fields is kept with an
// empty document, since the presence of an object can matter on its own.
func ParseObjects(raw []byte) ([]Object, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidSnapshot)
	}
	return ParseResult(gjson.ParseBytes(raw))
}

// ParseResult decodes a snapshot that has already been located inside a
// larger document (e.g. the "objects" member of a bridge message).
func ParseResult(r gjson.Result) ([]Object, error) {
	if !r.IsArray() {
		return nil, fmt.Errorf("%w: expected array, got %s", ErrInvalidSnapshot, r.Type)
	}
	var out []Object
	r.ForEach(func(_, v gjson.Result) bool {
		kind := v.Get("kind").String()
		if kind == "" {
			return true
		}
		out = append(out, Object{kind: Kind(kind), fields: v.Get("fields")})
		return true
	})
	return out, nil
}
