package location

import "errors"

var (
	// ErrDuplicateRoomName is returned when adding a room whose name already exists in the home.
	ErrDuplicateRoomName = errors.New("location: duplicate room name")

	// ErrRoomNotFound is returned when a room name does not exist in the home.
	ErrRoomNotFound = errors.New("location: room not found")

	// ErrDuplicateDeviceName is returned when adding a device whose name already exists in the room.
	ErrDuplicateDeviceName = errors.New("location: duplicate device name")

	// ErrRoomFull is returned when a room has no empty slot.
	ErrRoomFull = errors.New("location: room is full")

	// ErrDeviceNotFound is returned when a device name does not exist in the room.
	ErrDeviceNotFound = errors.New("location: device not found")

	// ErrInvalidDevice is returned when adding a nil device.
	ErrInvalidDevice = errors.New("location: invalid device")

	// ErrInvalidRoom is returned when adding a nil room.
	ErrInvalidRoom = errors.New("location: invalid room")

	// ErrInvalidName is returned when a room name is empty or too long.
	ErrInvalidName = errors.New("location: invalid name")

	// ErrInvalidCapacity is returned when a room capacity is out of range.
	ErrInvalidCapacity = errors.New("location: invalid capacity")

	// ErrReport is returned when a device report cannot be produced.
	ErrReport = errors.New("location: report failed")
)
