package location

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/smarthome-core/internal/device"
	"github.com/nerrad567/smarthome-core/internal/report"
)

// stateQueryLimit bounds concurrent device state queries during a snapshot.
const stateQueryLimit = 8

// Logger defines the logging interface used by Home.
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

// DeviceStatus is a point-in-time view of one device.
type DeviceStatus struct {
	Room   string
	Slot   int // position among the room's occupied slots
	Device device.Device
	State  device.State
	Err    error
}

// RoomStatus is a point-in-time view of one room.
type RoomStatus struct {
	Name     string
	Capacity int
	Devices  []DeviceStatus
}

// Home is a named collection of rooms with unique names.
//
// All methods are safe for concurrent use.
type Home struct {
	name   string
	mu     sync.RWMutex
	rooms  map[string]*Room
	logger Logger
}

// NewHome creates an empty home.
func NewHome(name string) *Home {
	return &Home{
		name:   name,
		rooms:  make(map[string]*Room),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the home.
func (h *Home) SetLogger(logger Logger) {
	h.mu.Lock()
	h.logger = logger
	h.mu.Unlock()
}

// Name returns the home's name.
func (h *Home) Name() string { return h.name }

// AddRoom inserts room and returns it.
// Returns ErrDuplicateRoomName if a room with the same name exists, or
// ErrInvalidRoom for nil or a room already removed from a home.
func (h *Home) AddRoom(room *Room) (*Room, error) {
	if room == nil {
		return nil, ErrInvalidRoom
	}
	if room.isClosed() {
		return nil, fmt.Errorf("%w: %q was removed", ErrInvalidRoom, room.Name())
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rooms[room.Name()]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateRoomName, room.Name())
	}
	h.rooms[room.Name()] = room

	h.logger.Info("room added", "room", room.Name(), "capacity", room.Capacity())
	return room, nil
}

// RemoveRoomByName removes the named room and closes every device it holds.
// Returns ErrRoomNotFound if no such room exists.
func (h *Home) RemoveRoomByName(name string) error {
	h.mu.Lock()
	room, ok := h.rooms[name]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrRoomNotFound, name)
	}
	delete(h.rooms, name)
	logger := h.logger
	h.mu.Unlock()

	if err := room.close(); err != nil {
		logger.Warn("closing devices of removed room", "room", name, "error", err)
	}
	logger.Info("room removed", "room", name)
	return nil
}

// FindRoomByName returns the named room.
func (h *Home) FindRoomByName(name string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[name]
	return room, ok
}

// ListRoomNames returns the names of all rooms, sorted.
func (h *Home) ListRoomNames() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.rooms))
	for name := range h.rooms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// AddDevice adds d to the named room.
// Returns ErrRoomNotFound, or any error from Room.AddDevice.
func (h *Home) AddDevice(roomName string, d device.Device) (device.Device, error) {
	room, ok := h.FindRoomByName(roomName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRoomNotFound, roomName)
	}
	added, err := room.AddDevice(d)
	if err != nil {
		return nil, err
	}

	h.log().Info("device added", "room", roomName, "device", d.Name(), "kind", string(d.Kind()))
	return added, nil
}

// RemoveDeviceByName removes and closes a device.
// Returns ErrRoomNotFound or ErrDeviceNotFound.
func (h *Home) RemoveDeviceByName(roomName, deviceName string) error {
	room, ok := h.FindRoomByName(roomName)
	if !ok {
		return fmt.Errorf("%w: %q", ErrRoomNotFound, roomName)
	}
	if err := room.RemoveDeviceByName(deviceName); err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return err
		}
		h.log().Warn("closing removed device", "room", roomName, "device", deviceName, "error", err)
	}

	h.log().Info("device removed", "room", roomName, "device", deviceName)
	return nil
}

// FindDeviceByName returns the named device in the named room.
// A missing room and a missing device are both reported as not found.
func (h *Home) FindDeviceByName(roomName, deviceName string) (device.Device, bool) {
	room, ok := h.FindRoomByName(roomName)
	if !ok {
		return nil, false
	}
	return room.FindDeviceByName(deviceName)
}

// Snapshot reads the state of every device and returns rooms sorted by name.
//
// The room and device lists are copied under the locks; states are queried
// afterwards, concurrently, so a slow outlet never blocks registry
// mutations. A device whose state cannot be read carries the error in its
// DeviceStatus.
func (h *Home) Snapshot(ctx context.Context) []RoomStatus {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	slices.SortFunc(rooms, func(a, b *Room) int { return strings.Compare(a.Name(), b.Name()) })

	out := make([]RoomStatus, len(rooms))
	for i, r := range rooms {
		devices := r.Devices()
		status := RoomStatus{
			Name:     r.Name(),
			Capacity: r.Capacity(),
			Devices:  make([]DeviceStatus, len(devices)),
		}
		for j, d := range devices {
			status.Devices[j] = DeviceStatus{Room: r.Name(), Slot: j, Device: d}
		}
		out[i] = status
	}

	var g errgroup.Group
	g.SetLimit(stateQueryLimit)
	for i := range out {
		for j := range out[i].Devices {
			ds := &out[i].Devices[j]
			g.Go(func() error {
				ds.State, ds.Err = ds.Device.State(ctx)
				return nil
			})
		}
	}
	_ = g.Wait()

	return out
}

// DeviceReport renders a human-readable status report of every device.
//
// Devices whose state cannot be read are reported as unavailable; they do
// not fail the report. ErrReport is returned only if ctx is done before
// the snapshot completes.
func (h *Home) DeviceReport(ctx context.Context) (string, error) {
	snapshot := h.Snapshot(ctx)
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrReport, err)
	}

	rooms := make([]report.Room, len(snapshot))
	for i, rs := range snapshot {
		rooms[i] = report.Room{
			Name:     rs.Name,
			Capacity: rs.Capacity,
			Devices:  make([]report.Device, len(rs.Devices)),
		}
		for j, ds := range rs.Devices {
			rooms[i].Devices[j] = report.Device{
				Info:  device.InfoOf(ds.Device),
				State: ds.State,
				Err:   ds.Err,
			}
		}
	}

	return report.Render(h.name, rooms), nil
}

// Close removes every room and closes all devices. Used at shutdown.
func (h *Home) Close() error {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]*Room)
	h.mu.Unlock()

	var firstErr error
	for _, r := range rooms {
		if err := r.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *Home) log() Logger {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.logger
}
