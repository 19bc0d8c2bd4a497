package bridge

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"tools.zach/dev/sabercord/internal/observe"
)

// ///////////////////////////////////////////////
// Events
// ///////////////////////////////////////////////

// Event is a notification delivered on [Client.Events].
type Event interface {
	event()
}

// ConnectedEvent is sent after the websocket handshake with the shim succeeds.
type ConnectedEvent struct {
	URL string
}

// DisconnectedEvent is sent when an established connection ends. Err is
// [ErrClosed] when the shim closed the connection cleanly.
type DisconnectedEvent struct {
	Err error
}

// HelloEvent identifies the shim and the game build it runs in.
type HelloEvent struct {
	GameVersion string
	ShimVersion string
}

// SceneEvent reports that the host switched its active scene.
type SceneEvent struct {
	Previous string
	Scene    string
}

// ObjectsEvent carries a complete snapshot of the host objects the shim
// exposes. It replaces any earlier snapshot.
type ObjectsEvent struct {
	Objects []observe.Object
}

// QuitEvent reports that the host process is exiting.
type QuitEvent struct{}

func (ConnectedEvent) event()    {}
func (DisconnectedEvent) event() {}
func (HelloEvent) event()        {}
func (SceneEvent) event()        {}
func (ObjectsEvent) event()      {}
func (QuitEvent) event()         {}

// ///////////////////////////////////////////////
// Decoding
// ///////////////////////////////////////////////

var (
	// ErrMalformed is returned for messages that are not JSON objects.
	ErrMalformed = errors.New("malformed bridge message")
	// ErrUnknownType is returned for messages with an unrecognised type.
	ErrUnknownType = errors.New("unknown bridge message type")
)

// Decode converts one websocket text message into an [Event].
func Decode(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrMalformed
	}
	msg := gjson.ParseBytes(data)
	if !msg.IsObject() {
		return nil, ErrMalformed
	}

	switch typ := msg.Get("type").String(); typ {
	case "hello":
		return HelloEvent{
			GameVersion: msg.Get("game_version").String(),
			ShimVersion: msg.Get("shim_version").String(),
		}, nil
	case "scene":
		scene := msg.Get("scene")
		if scene.Type != gjson.String {
			return nil, fmt.Errorf("%w: scene message without scene name", ErrMalformed)
		}
		return SceneEvent{Previous: msg.Get("previous").String(), Scene: scene.String()}, nil
	case "objects":
		objs, err := observe.ParseResult(msg.Get("objects"))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return ObjectsEvent{Objects: objs}, nil
	case "quit":
		return QuitEvent{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
}
