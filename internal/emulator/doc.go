// Package emulator provides software stand-ins for smart home hardware.
//
// Outlet serves the outlet TCP protocol with an in-memory switch and a
// fixed power draw. SensorFeed pushes temperature datagrams to a sensor's
// UDP endpoint. Both are used by tests and by cmd/smarthome-emulator for
// running the core without real devices.
package emulator
