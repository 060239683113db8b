package device

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxNameLength is the maximum length of a device name in characters.
const MaxNameLength = 100

// Kind identifies the type of a device.
type Kind string

// Supported device kinds.
const (
	KindOutlet Kind = "outlet"
	KindSensor Kind = "sensor"
)

// AllKinds returns all supported device kinds.
func AllKinds() []Kind {
	return []Kind{KindOutlet, KindSensor}
}

// ParseKind converts a string to a Kind.
// Returns ErrUnknownKind if the value is not recognised.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllKinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// State is a point-in-time view of a device's observable values.
//
// Keys per kind:
//
//	outlet: "on" (bool), "power_w" (float32)
//	sensor: "temperature_c" (float32), "updated_at" (time.Time, zero if no reading yet)
type State map[string]any

// Device is the contract shared by every device kind.
//
// Name is immutable after construction. Uniqueness is enforced by the
// room that owns the device, not by the device itself.
type Device interface {
	// Name returns the device's identifier within its room.
	Name() string

	// Description returns a free-form human-readable description.
	Description() string

	// Kind returns the device's type tag.
	Kind() Kind

	// State reports the device's current observable values. Outlets query
	// the network and may fail; sensors return their cached reading.
	State(ctx context.Context) (State, error)

	// Close releases resources held by the device. Safe to call more than once.
	Close() error
}

// Info is a serialisable description of a device.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        Kind   `json:"kind"`
}

// InfoOf returns the identifying fields of d.
func InfoOf(d Device) Info {
	return Info{
		Name:        d.Name(),
		Description: d.Description(),
		Kind:        d.Kind(),
	}
}

// ValidateName checks that name is non-empty and within MaxNameLength.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, MaxNameLength)
	}
	return nil
}

// Logger defines the logging interface used by devices.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

func loggerOrNoop(l Logger) Logger {
	if l == nil {
		return noopLogger{}
	}
	return l
}
