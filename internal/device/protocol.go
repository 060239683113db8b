package device

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Command is an outlet protocol command.
type Command string

// Outlet protocol commands.
const (
	CommandSwitch   Command = "switch"
	CommandGetState Command = "getState"
	CommandGetValue Command = "getValue"
)

// Wire sizes.
const (
	// StateSize is the size of a switch/getState reply.
	StateSize = 1

	// ReadingSize is the size of a getValue reply and of a sensor datagram.
	ReadingSize = 4
)

// ParseCommand converts a command line (without the trailing newline) to a Command.
func ParseCommand(s string) (Command, bool) {
	switch Command(s) {
	case CommandSwitch, CommandGetState, CommandGetValue:
		return Command(s), true
	default:
		return "", false
	}
}

// ReplySize returns the number of bytes an outlet sends in reply to c.
func (c Command) ReplySize() int {
	if c == CommandGetValue {
		return ReadingSize
	}
	return StateSize
}

// EncodeCommand returns the wire form of c: the command text followed by a newline.
func EncodeCommand(c Command) []byte {
	return append([]byte(c), '\n')
}

// EncodeState encodes an on/off state as a single byte.
func EncodeState(on bool) []byte {
	if on {
		return []byte{1}
	}
	return []byte{0}
}

// DecodeState decodes a single-byte state reply. Only the value 1 means on.
func DecodeState(b []byte) (bool, error) {
	if len(b) != StateSize {
		return false, fmt.Errorf("state reply: want %d byte, got %d", StateSize, len(b))
	}
	return b[0] == 1, nil
}

// EncodeFloat32 encodes v as 4 bytes big-endian IEEE-754.
func EncodeFloat32(v float32) []byte {
	buf := make([]byte, ReadingSize)
	binary.BigEndian.PutUint32(buf, math.Float32bits(v))
	return buf
}

// DecodeFloat32 decodes 4 bytes big-endian IEEE-754.
func DecodeFloat32(b []byte) (float32, error) {
	if len(b) != ReadingSize {
		return 0, fmt.Errorf("reading: want %d bytes, got %d", ReadingSize, len(b))
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}
