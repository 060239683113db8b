// Package location provides the home and room hierarchy that owns devices.
//
// A Home is a named collection of Rooms keyed by unique room name. A Room
// is a fixed-capacity array of device slots: devices occupy the lowest
// empty slot, device names are unique within a room, and vacated slots are
// reused. The hierarchy is the only path to a device:
//
//	Home ──▶ Room ──▶ slot ──▶ device.Device
//
// Rooms own their devices. Removing a device or a room closes the devices
// removed with it, which stops sensor listeners.
//
// # Thread Safety
//
// Home guards its room map with a read-write mutex and each Room guards its
// slots with its own. Locks are never held across device I/O: DeviceReport
// and Snapshot copy the device list under the locks and query state after
// releasing them.
package location
