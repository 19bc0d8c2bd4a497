// Package bridge connects to the in-game shim over a local websocket and turns
// its messages into events for the daemon's event loop.
//
// The shim is a small mod loaded into the game. It pushes scene changes, full
// snapshots of the host objects presence derivation needs, and a final quit
// notice. The daemon never writes application messages back.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is reported in [DisconnectedEvent] when the shim closed the
// connection cleanly, normally because the game is shutting down.
var ErrClosed = errors.New("bridge closed by peer")

// Options configures the websocket client.
type Options struct {
	// URL of the shim's websocket endpoint.
	URL string
	// ReconnectInterval is the wait between dial attempts.
	ReconnectInterval time.Duration
	// HandshakeTimeout bounds each dial.
	HandshakeTimeout time.Duration
}

// DefaultOptions matches the shim's default listen address.
func DefaultOptions() Options {
	return Options{
		URL:               "ws://127.0.0.1:6557/presence",
		ReconnectInterval: 5 * time.Second,
		HandshakeTimeout:  5 * time.Second,
	}
}

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// Client maintains a connection to the shim, redialling whenever it drops.
type Client struct {
	opts   Options
	dialer *websocket.Dialer
	events chan Event
	header http.Header
}

// NewClient creates a client. Call [Client.Run] to start it.
func NewClient(opts Options) *Client {
	return &Client{
		opts:   opts,
		dialer: &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout},
		events: make(chan Event, 16),
		header: http.Header{"User-Agent": []string{"sabercord"}},
	}
}

// Events returns the channel events are delivered on. It is never closed.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Run dials the shim and reads messages until ctx is cancelled, reconnecting
// after every disconnect. It returns ctx.Err().
func (c *Client) Run(ctx context.Context) error {
	quiet := false
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.opts.URL, c.header)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// The shim is absent whenever the game is closed, so only the
			// first failure in a row is worth an Info line.
			if !quiet {
				slog.Info("game bridge not reachable, will keep trying", "url", c.opts.URL, "error", err)
				quiet = true
			} else {
				slog.Debug("game bridge dial failed", "error", err)
			}
		} else {
			quiet = false
			slog.Info("connected to game bridge", "url", c.opts.URL)
			if !c.emit(ctx, ConnectedEvent{URL: c.opts.URL}) {
				conn.Close()
				return ctx.Err()
			}

			err = c.serve(ctx, conn)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Info("game bridge disconnected", "reason", err)
			if !c.emit(ctx, DisconnectedEvent{Err: err}) {
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.ReconnectInterval):
		}
	}
}

// serve reads messages from conn until it fails or ctx is cancelled. The
// returned error is [ErrClosed] for a clean close by the shim.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	})
	defer func() {
		if stop() {
			conn.Close()
		}
	}()

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return ErrClosed
			}
			return err
		}
		if typ != websocket.TextMessage {
			continue
		}

		ev, err := Decode(data)
		if err != nil {
			slog.Debug("ignoring bridge message", "error", err)
			continue
		}
		if !c.emit(ctx, ev) {
			return ctx.Err()
		}
	}
}

// emit delivers ev unless ctx is cancelled first.
func (c *Client) emit(ctx context.Context, ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
