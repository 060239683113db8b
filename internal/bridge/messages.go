package bridge

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/smarthome-core/internal/device"
)

// Command names accepted on the command topic.
const (
	CommandSwitch  = "switch"
	CommandRefresh = "refresh"
)

// CommandMessage is received on smarthome/command/{room}/{device}.
type CommandMessage struct {
	// ID correlates the command with its ack. Generated when empty.
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Command   string    `json:"command"`
	Source    string    `json:"source,omitempty"`
}

// AckStatus is the outcome of a command.
type AckStatus string

const (
	AckAccepted AckStatus = "accepted"
	AckFailed   AckStatus = "failed"
	AckTimeout  AckStatus = "timeout"
)

// Error codes carried in failed acks.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeTimeout           = "TIMEOUT"
)

// AckMessage is published to smarthome/ack/{room}/{device}.
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	Room      string    `json:"room"`
	Device    string    `json:"device"`
	Command   string    `json:"command"`
	Status    AckStatus `json:"status"`

	// On is the outlet state after a successful switch.
	On    *bool     `json:"on,omitempty"`
	Error *AckError `json:"error,omitempty"`
}

// AckError describes why a command failed.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StateMessage is published retained to smarthome/state/{room}/{device}.
type StateMessage struct {
	Room      string       `json:"room"`
	Device    string       `json:"device"`
	Kind      string       `json:"kind"`
	Timestamp time.Time    `json:"timestamp"`
	State     device.State `json:"state,omitempty"`

	// Error is set instead of State when the device could not be read.
	Error string `json:"error,omitempty"`
}

// StateEvent is delivered to state listeners.
type StateEvent struct {
	StateMessage
	Source string `json:"source"`
}

// NewAckMessage creates an accepted ack for cmd.
func NewAckMessage(cmd CommandMessage, room, dev string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		Room:      room,
		Device:    dev,
		Command:   cmd.Command,
		Status:    AckAccepted,
	}
}

// NewAckError creates a failed (or timed out) ack for cmd.
func NewAckError(cmd CommandMessage, room, dev string, status AckStatus, code, message string) AckMessage {
	ack := NewAckMessage(cmd, room, dev)
	ack.Status = status
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// ensureID fills in a command ID when the sender did not supply one.
func (c *CommandMessage) ensureID() {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
}
