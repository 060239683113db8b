package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	// timestampFormat is fixed-width so stored timestamps sort lexically.
	timestampFormat = "2006-01-02T15:04:05.000000Z"
)

// ErrInvalidEntry is returned when an entry lacks its room or device.
var ErrInvalidEntry = errors.New("history: invalid entry")

// SQLiteStore implements Store on the device_history table.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a store using db, which must have the device_history
// migration applied.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Record inserts e.
func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	if e.Room == "" || e.Device == "" {
		return fmt.Errorf("%w: room and device are required", ErrInvalidEntry)
	}
	if e.Source == "" {
		e.Source = SourcePoll
	}
	if e.State == nil {
		e.State = map[string]any{}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	stateJSON, err := json.Marshal(e.State)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO device_history (room, device, kind, state, source, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		e.Room,
		e.Device,
		e.Kind,
		string(stateJSON),
		e.Source,
		formatTimestamp(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting device history: %w", err)
	}
	return nil
}

// List returns a device's newest entries first.
func (s *SQLiteStore) List(ctx context.Context, room, device string, limit int) ([]Entry, error) {
	if room == "" || device == "" {
		return nil, fmt.Errorf("%w: room and device are required", ErrInvalidEntry)
	}
	limit = clampLimit(limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room, device, kind, state, source, created_at
		 FROM device_history
		 WHERE room = ? AND device = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		room,
		device,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying device history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var stateJSON, createdAt string

		if err := rows.Scan(&e.ID, &e.Room, &e.Device, &e.Kind, &stateJSON, &e.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning device history: %w", err)
		}
		if err := json.Unmarshal([]byte(stateJSON), &e.State); err != nil {
			return nil, fmt.Errorf("unmarshalling state: %w", err)
		}
		if e.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device history: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than olderThan and returns how many were removed.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := formatTimestamp(time.Now().Add(-olderThan))
	result, err := s.db.ExecContext(ctx, "DELETE FROM device_history WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting device history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// DeleteDevice removes every entry for a device. Called when a device is
// removed from the registry so a later device with the same name starts clean.
func (s *SQLiteStore) DeleteDevice(ctx context.Context, room, device string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM device_history WHERE room = ? AND device = ?", room, device,
	); err != nil {
		return fmt.Errorf("deleting device history: %w", err)
	}
	return nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}
	t, err := time.Parse(timestampFormat, value)
	if err == nil {
		return t, nil
	}
	if fallback, fallbackErr := time.Parse(time.RFC3339, value); fallbackErr == nil {
		return fallback, nil
	}
	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
