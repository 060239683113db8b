package location

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Validation limits for rooms.
const (
	maxNameLength = 100

	// MaxCapacity is the largest number of device slots a room may have.
	MaxCapacity = 256
)

// ValidateName checks if a room name is valid.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateCapacity checks if a room capacity is within range.
// Zero is allowed: such a room rejects every device with ErrRoomFull.
func ValidateCapacity(capacity int) error {
	if capacity < 0 || capacity > MaxCapacity {
		return fmt.Errorf("%w: capacity must be between 0 and %d", ErrInvalidCapacity, MaxCapacity)
	}
	return nil
}
