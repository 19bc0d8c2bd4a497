package discord

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tools.zach/dev/sabercord/internal/presence"
)

// ///////////////////////////////////////////////
// Sink
// ///////////////////////////////////////////////

// ipcClient is the part of [Client] the sink drives.
type ipcClient interface {
	Connect() error
	SetActivity(*Activity) error
	Close() error
	Connected() bool
}

// SinkOptions tunes connection handling.
type SinkOptions struct {
	// ConnectAttempts bounds the attempts made by [Sink.Initialize].
	ConnectAttempts int
	// RetryInterval separates the attempts made by [Sink.Initialize].
	RetryInterval time.Duration
	// ReconnectInterval is the minimum time between reconnects from
	// [Sink.Pump].
	ReconnectInterval time.Duration
}

// DefaultSinkOptions returns the settings used when the config leaves them
// unset.
func DefaultSinkOptions() SinkOptions {
	return SinkOptions{
		ConnectAttempts:   3,
		RetryInterval:     time.Second,
		ReconnectInterval: 15 * time.Second,
	}
}

// Sink forwards presence records to Discord. It reads the current record from
// a [presence.Cell] on every [Sink.Pump] and re-sends it only when it changed
// since the last successful send. All methods are called from the event loop
// goroutine; Shutdown may also be called from a deferred cleanup.
type Sink struct {
	cell *presence.Cell
	opts SinkOptions

	newClient func(appID string) ipcClient
	client    ipcClient

	// lastHash is the hash of the last record Discord accepted.
	lastHash    string
	lastAttempt time.Time
	now         func() time.Time

	shutdownOnce sync.Once
	closed       bool
}

// NewSink creates a sink that forwards the records stored in cell.
func NewSink(cell *presence.Cell, opts SinkOptions) *Sink {
	return &Sink{
		cell:      cell,
		opts:      opts,
		newClient: func(appID string) ipcClient { return NewClient(appID) },
		now:       time.Now,
	}
}

// SetReconnectInterval changes the minimum time between reconnects.
func (s *Sink) SetReconnectInterval(d time.Duration) {
	s.opts.ReconnectInterval = d
}

// Initialize connects as appID, retrying up to ConnectAttempts times. A
// failure is not fatal: [Sink.Pump] keeps trying in the background.
func (s *Sink) Initialize(appID string) error {
	return s.connect(appID, max(1, s.opts.ConnectAttempts))
}

// SwitchApp reconnects as appID with a single attempt. It runs on the event
// loop, so further retries are left to the rate-limited reconnect in
// [Sink.Pump].
func (s *Sink) SwitchApp(appID string) error {
	return s.connect(appID, 1)
}

// connect replaces the client with one for appID and tries to connect.
func (s *Sink) connect(appID string, attempts int) error {
	if s.client != nil {
		s.client.Close()
	}
	s.client = s.newClient(appID)
	s.lastHash = ""
	s.lastAttempt = s.now()

	var err error
	for i := range attempts {
		if err = s.client.Connect(); err == nil {
			slog.Info("connected to Discord", "app_id", appID)
			return nil
		}
		slog.Warn("Discord connect attempt failed", "attempt", i+1, "error", err)
		if i < attempts-1 {
			time.Sleep(s.opts.RetryInterval)
		}
	}
	return fmt.Errorf("connecting to Discord after %d attempts: %w", attempts, err)
}

// Publish sends st immediately. Errors are logged, not returned; a record
// that could not be sent is retried by the next [Sink.Pump].
func (s *Sink) Publish(st presence.Status) {
	if s.closed || s.client == nil {
		return
	}
	s.send(st)
}

// Pump keeps Discord in step with the cell. When disconnected it reconnects,
// at most once per ReconnectInterval. When connected it re-sends the cell's
// record if it differs from the last one sent.
func (s *Sink) Pump() {
	if s.closed || s.client == nil {
		return
	}

	if !s.client.Connected() {
		if s.now().Sub(s.lastAttempt) < s.opts.ReconnectInterval {
			return
		}
		s.lastAttempt = s.now()
		if err := s.client.Connect(); err != nil {
			slog.Debug("Discord reconnect failed", "error", err)
			return
		}
		slog.Info("reconnected to Discord")
		s.lastHash = ""
	}

	st, ok := s.cell.Load()
	if !ok || st.Hash() == s.lastHash {
		return
	}
	s.send(st)
}

// Clear removes the activity from the profile.
func (s *Sink) Clear() {
	s.lastHash = ""
	if s.closed || s.client == nil || !s.client.Connected() {
		return
	}
	if err := s.client.SetActivity(nil); err != nil {
		slog.Warn("failed to clear activity", "error", err)
	}
}

// Shutdown clears the activity and closes the connection. Only the first call
// has an effect.
func (s *Sink) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.closed = true
		if s.client == nil {
			return
		}
		if s.client.Connected() {
			if err := s.client.SetActivity(nil); err != nil {
				slog.Debug("clearing activity on shutdown", "error", err)
			}
		}
		if err := s.client.Close(); err != nil {
			slog.Debug("closing Discord connection", "error", err)
		}
		slog.Info("Discord connection closed")
	})
}

// send publishes st and records its hash on success.
func (s *Sink) send(st presence.Status) {
	hash := st.Hash()
	if err := s.client.SetActivity(ToActivity(st)); err != nil {
		if errors.Is(err, ErrNotConnected) {
			slog.Debug("Discord not connected, presence queued", "details", st.Details)
		} else {
			slog.Warn("failed to set activity", "error", err)
		}
		return
	}
	s.lastHash = hash
	slog.Debug("presence updated", "details", st.Details, "state", st.State)
}

// ToActivity converts a presence record to its wire form. A zero start
// timestamp is omitted so Discord shows no elapsed-time counter.
func ToActivity(st presence.Status) *Activity {
	a := &Activity{
		Details: st.Details,
		State:   st.State,
	}
	if st.StartTimestamp != 0 {
		a.Timestamps = &Timestamps{Start: st.StartTimestamp}
	}
	if st.LargeImageKey != "" || st.LargeImageText != "" || st.SmallImageKey != "" || st.SmallImageText != "" {
		a.Assets = &Assets{
			LargeImage: st.LargeImageKey,
			LargeText:  st.LargeImageText,
			SmallImage: st.SmallImageKey,
			SmallText:  st.SmallImageText,
		}
	}
	return a
}
