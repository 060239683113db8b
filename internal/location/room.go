package location

import (
	"fmt"
	"sync"

	"github.com/nerrad567/smarthome-core/internal/device"
)

// Room is a fixed-capacity container of device slots.
//
// Invariants:
//   - The number of slots never changes after construction.
//   - No two occupied slots hold devices with the same name.
//   - New devices occupy the lowest-indexed empty slot.
//
// All methods are safe for concurrent use.
type Room struct {
	name  string
	mu     sync.RWMutex
	slots  []device.Device // nil entries are empty slots
	closed bool            // set once the room is removed from its home
}

// NewRoom creates a room with capacity empty slots.
// A negative capacity is treated as zero.
func NewRoom(name string, capacity int) *Room {
	if capacity < 0 {
		capacity = 0
	}
	return &Room{
		name:  name,
		slots: make([]device.Device, capacity),
	}
}

// Name returns the room's name.
func (r *Room) Name() string { return r.name }

// Capacity returns the number of slots.
func (r *Room) Capacity() int { return len(r.slots) }

// Len returns the number of occupied slots.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, d := range r.slots {
		if d != nil {
			n++
		}
	}
	return n
}

// AddDevice places d in the lowest empty slot and returns it.
//
// Returns ErrDuplicateDeviceName if a device with the same name is present
// (checked first), or ErrRoomFull if no slot is empty. A room that has been
// removed from its home returns ErrRoomNotFound. On error the room is
// unchanged and the caller keeps ownership of d.
func (r *Room) AddDevice(d device.Device) (device.Device, error) {
	if d == nil {
		return nil, ErrInvalidDevice
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("%w: %q was removed", ErrRoomNotFound, r.name)
	}

	free := -1
	for i, existing := range r.slots {
		if existing == nil {
			if free < 0 {
				free = i
			}
			continue
		}
		if existing.Name() == d.Name() {
			return nil, fmt.Errorf("%w: %q in room %q", ErrDuplicateDeviceName, d.Name(), r.name)
		}
	}

	if free < 0 {
		return nil, fmt.Errorf("%w: %q has %d slots", ErrRoomFull, r.name, len(r.slots))
	}

	r.slots[free] = d
	return d, nil
}

// RemoveDeviceByName vacates the slot holding the named device and closes it.
// Returns ErrDeviceNotFound if no such device exists.
func (r *Room) RemoveDeviceByName(name string) error {
	r.mu.Lock()
	i := r.indexOf(name)
	if i < 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q in room %q", ErrDeviceNotFound, name, r.name)
	}
	d := r.slots[i]
	r.slots[i] = nil
	r.mu.Unlock()

	return d.Close()
}

// FindDeviceByName returns the named device, scanning slots in order.
func (r *Room) FindDeviceByName(name string) (device.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOf(name)
	if i < 0 {
		return nil, false
	}
	return r.slots[i], true
}

// ListDeviceNames returns the names of occupied slots in slot order.
func (r *Room) ListDeviceNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.slots))
	for _, d := range r.slots {
		if d != nil {
			names = append(names, d.Name())
		}
	}
	return names
}

// Devices returns the devices in occupied slots, in slot order.
func (r *Room) Devices() []device.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]device.Device, 0, len(r.slots))
	for _, d := range r.slots {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

// isClosed reports whether the room has been removed from a home.
func (r *Room) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// close empties every slot, closes the removed devices and rejects any
// later AddDevice.
func (r *Room) close() error {
	r.mu.Lock()
	r.closed = true
	removed := make([]device.Device, 0, len(r.slots))
	for i, d := range r.slots {
		if d != nil {
			removed = append(removed, d)
			r.slots[i] = nil
		}
	}
	r.mu.Unlock()

	var firstErr error
	for _, d := range removed {
		if err := d.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// indexOf returns the slot index of the named device, or -1. Caller holds r.mu.
func (r *Room) indexOf(name string) int {
	for i, d := range r.slots {
		if d != nil && d.Name() == name {
			return i
		}
	}
	return -1
}
