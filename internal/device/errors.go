package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrTimeout) {
//	    // the outlet did not answer in time
//	}
var (
	// ErrDeviceIO is returned when connecting to, writing to, or reading
	// from a device fails.
	ErrDeviceIO = errors.New("device: io error")

	// ErrTimeout is returned when a device exchange exceeds its deadline.
	ErrTimeout = errors.New("device: timeout")

	// ErrListen is returned when a sensor cannot bind its listening endpoint.
	ErrListen = errors.New("device: listen failed")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrUnknownKind is returned when building a device of an unknown kind.
	ErrUnknownKind = errors.New("device: unknown kind")

	// ErrClosed is returned by operations on a device after Close.
	ErrClosed = errors.New("device: closed")
)
