// Package history records device state changes in SQLite.
//
// The history is an audit trail of what the core observed; the registry is
// never rebuilt from it. Rows are pruned after the configured retention.
package history

import (
	"context"
	"time"
)

// Source values describe how a state change was observed.
const (
	SourcePoll    = "poll"
	SourceCommand = "command"
	SourceAPI     = "api"
)

// Entry is a single recorded device state.
type Entry struct {
	ID        int64          `json:"id"`
	Room      string         `json:"room"`
	Device    string         `json:"device"`
	Kind      string         `json:"kind"`
	State     map[string]any `json:"state"`
	Source    string         `json:"source"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store records and retrieves device state history.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Record persists e. CreatedAt defaults to now and Source to SourcePoll.
	Record(ctx context.Context, e Entry) error

	// List returns the newest entries for a device, newest first.
	// limit is clamped to [1, 200]; zero or negative means 50.
	List(ctx context.Context, room, device string, limit int) ([]Entry, error)
}
