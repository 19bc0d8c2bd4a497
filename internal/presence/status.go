package presence

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// ///////////////////////////////////////////////
// Status
// ///////////////////////////////////////////////

// Status is the presence record shown on the player's profile. A zero
// StartTimestamp means no elapsed-time counter is shown.
type Status struct {
	Details        string `json:"details"`
	State          string `json:"state"`
	LargeImageKey  string `json:"large_image"`
	LargeImageText string `json:"large_text"`
	SmallImageKey  string `json:"small_image"`
	SmallImageText string `json:"small_text"`
	StartTimestamp int64  `json:"start"`
}

// Hash returns a SHA-256 hex digest of the status for dedup comparison.
func (s Status) Hash() string {
	data, err := json.Marshal(s)
	if err != nil {
		slog.Warn("failed to hash status", "error", err)
		return ""
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// ///////////////////////////////////////////////
// Cell
// ///////////////////////////////////////////////

// Cell holds the most recently derived [Status]. Writers replace the whole
// record, so readers on other goroutines never observe a partial update.
type Cell struct {
	v atomic.Pointer[Status]
}

// Store replaces the current status.
func (c *Cell) Store(s Status) {
	c.v.Store(&s)
}

// Load returns the current status and whether one has been stored.
func (c *Cell) Load() (Status, bool) {
	p := c.v.Load()
	if p == nil {
		return Status{}, false
	}
	return *p, true
}

// Clear forgets the current status.
func (c *Cell) Clear() {
	c.v.Store(nil)
}
