// Package discord talks to the local Discord client over its IPC socket and
// forwards presence records to it.
//
// [Client] owns the socket, the handshake and SET_ACTIVITY framing. [Sink]
// sits on top of it and adapts the client to the daemon's tick-driven loop:
// fire-and-forget publishing, de-duplicated re-sends and rate-limited
// reconnects. Socket discovery is platform specific (conn_unix.go,
// conn_windows.go).
package discord

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
)

// ///////////////////////////////////////////////
// Sentinel Errors
// ///////////////////////////////////////////////

// ErrNotConnected is returned when an operation requires an active connection.
var ErrNotConnected = errors.New("not connected")

// ///////////////////////////////////////////////
// Wire Types
// ///////////////////////////////////////////////

// Timestamps holds the elapsed-time origin of an activity.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
}

// Assets holds image keys and tooltip text for an activity.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Activity is the SET_ACTIVITY payload.
type Activity struct {
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
}

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// Client is a connection to Discord's IPC socket for one application ID.
type Client struct {
	appID string

	// dial opens the socket. Tests replace it with an in-memory pipe.
	dial func() (net.Conn, error)

	// mu guards conn and nonce.
	mu    sync.Mutex
	conn  net.Conn
	nonce uint64
}

// NewClient creates a client for the given application ID. It does not
// connect; call [Client.Connect].
func NewClient(appID string) *Client {
	return &Client{appID: appID, dial: connectToDiscord}
}

// AppID returns the application ID the client identifies as.
func (c *Client) AppID() string { return c.appID }

// Connect opens the socket and performs the handshake, replacing any previous
// connection.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropLocked()

	conn, err := c.dial()
	if err != nil {
		return err
	}
	c.conn = conn

	if err := c.handshake(); err != nil {
		c.dropLocked()
		return err
	}
	return nil
}

// SetActivity publishes activity. A nil activity clears it. A failed write
// drops the connection so [Client.Connected] reports false afterwards.
func (c *Client) SetActivity(activity *Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.setActivityLocked(activity)
	if err != nil && !errors.Is(err, ErrNotConnected) {
		c.dropLocked()
	}
	return err
}

// ClearActivity removes the current activity.
func (c *Client) ClearActivity() error {
	return c.SetActivity(nil)
}

// Close clears the activity on a best-effort basis and closes the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	_ = c.setActivityLocked(nil)

	err := c.conn.Close()
	c.conn = nil
	return err
}

// Connected reports whether the client holds an open socket.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// dropLocked closes and forgets the socket. The caller must hold c.mu.
func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// handshake sends the handshake frame and checks Discord's reply. The caller
// must hold c.mu.
func (c *Client) handshake() error {
	payload, err := json.Marshal(map[string]any{
		"v":         1,
		"client_id": c.appID,
	})
	if err != nil {
		return fmt.Errorf("marshaling handshake: %w", err)
	}

	if err := WriteFrame(c.conn, OpHandshake, payload); err != nil {
		return fmt.Errorf("writing handshake: %w", err)
	}

	opcode, respData, err := DecodeFrame(c.conn)
	if err != nil {
		return fmt.Errorf("reading handshake response: %w", err)
	}
	if opcode == OpClose {
		return fmt.Errorf("handshake rejected: %s", closeReason(respData))
	}
	if opcode != OpFrame {
		return fmt.Errorf("unexpected handshake response opcode: %d", opcode)
	}

	var resp struct {
		Evt  string `json:"evt"`
		Data struct {
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respData, &resp); err != nil {
		return fmt.Errorf("parsing handshake response: %w", err)
	}
	if resp.Evt == "ERROR" {
		return fmt.Errorf("handshake rejected: %s", resp.Data.Message)
	}
	return nil
}

// setActivityLocked writes a SET_ACTIVITY command. The caller must hold c.mu.
func (c *Client) setActivityLocked(activity *Activity) error {
	if c.conn == nil {
		return ErrNotConnected
	}

	c.nonce++
	payload, err := json.Marshal(map[string]any{
		"cmd": "SET_ACTIVITY",
		"args": map[string]any{
			"pid":      os.Getpid(),
			"activity": activity,
		},
		"nonce": strconv.FormatUint(c.nonce, 10),
	})
	if err != nil {
		return fmt.Errorf("marshaling command: %w", err)
	}

	if err := WriteFrame(c.conn, OpFrame, payload); err != nil {
		return fmt.Errorf("writing command: %w", err)
	}
	return nil
}

// closeReason extracts the message from an OpClose payload.
func closeReason(data []byte) string {
	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		return "connection closed by Discord"
	}
	return fmt.Sprintf("%s (code %d)", body.Message, body.Code)
}
