package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/smarthome-core/internal/bridge"
	"github.com/nerrad567/smarthome-core/internal/device"
	"github.com/nerrad567/smarthome-core/internal/history"
	"github.com/nerrad567/smarthome-core/internal/location"
)

// stateQueryLimit bounds concurrent device state queries per request.
const stateQueryLimit = 8

// deviceView is the JSON representation of a device and its live state.
type deviceView struct {
	Room        string       `json:"room"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Kind        device.Kind  `json:"kind"`
	Address     string       `json:"address,omitempty"`
	State       device.State `json:"state,omitempty"`
	Error       string       `json:"error,omitempty"`
	ListenError string       `json:"listen_error,omitempty"`
}

// createDeviceRequest is the body of POST /rooms/{room}/devices.
type createDeviceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
	Address     string `json:"address"`
}

type switcher interface {
	Switch(ctx context.Context) (bool, error)
}

// viewDevice builds a view without querying state.
func viewDevice(room string, d device.Device) deviceView {
	v := deviceView{
		Room:        room,
		Name:        d.Name(),
		Description: d.Description(),
		Kind:        d.Kind(),
	}
	switch dev := d.(type) {
	case interface{ Address() string }:
		v.Address = dev.Address()
	case interface{ Endpoint() string }:
		v.Address = dev.Endpoint()
	}
	if src, ok := d.(interface{ Err() error }); ok {
		if err := src.Err(); err != nil {
			v.ListenError = err.Error()
		}
	}
	return v
}

// withState fills in the device's live state. A failed read is reported
// in the view rather than failing the request.
func (v *deviceView) withState(ctx context.Context, d device.Device) {
	state, err := d.State(ctx)
	if err != nil {
		v.Error = err.Error()
		return
	}
	v.State = state
}

// handleListDevices returns every device in a room with its live state.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	roomName := pathParam(r, "room")
	room, ok := s.home.FindRoomByName(roomName)
	if !ok {
		writeNotFound(w, "room not found")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.deviceTimeout)
	defer cancel()

	devices := room.Devices()
	views := make([]deviceView, len(devices))

	var g errgroup.Group
	g.SetLimit(stateQueryLimit)
	for i, d := range devices {
		views[i] = viewDevice(roomName, d)
		g.Go(func() error {
			views[i].withState(ctx, d)
			return nil
		})
	}
	_ = g.Wait()

	writeJSON(w, http.StatusOK, map[string]any{"devices": views, "count": len(views)})
}

// handleCreateDevice builds a device and places it in the room's first
// empty slot.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	roomName := pathParam(r, "room")

	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	kind, err := device.ParseKind(req.Kind)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := device.ValidateName(req.Name); err != nil {
		writeDomainError(w, err)
		return
	}
	if _, ok := s.home.FindRoomByName(roomName); !ok {
		writeNotFound(w, "room not found")
		return
	}

	d, err := s.factory.Build(device.Spec{
		Name:        req.Name,
		Description: req.Description,
		Kind:        kind,
		Address:     req.Address,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if _, err := s.home.AddDevice(roomName, d); err != nil {
		//nolint:errcheck // Device was never registered
		d.Close()
		writeDomainError(w, err)
		return
	}

	s.logger.Info("device created", "room", roomName, "device", d.Name(), "kind", d.Kind())
	writeJSON(w, http.StatusCreated, viewDevice(roomName, d))
}

// handleGetDevice returns one device with its live state.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	roomName := pathParam(r, "room")
	d, ok := s.home.FindDeviceByName(roomName, pathParam(r, "device"))
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.deviceTimeout)
	defer cancel()

	v := viewDevice(roomName, d)
	v.withState(ctx, d)
	writeJSON(w, http.StatusOK, v)
}

// handleDeleteDevice removes a device and closes it.
//
// Query parameters:
//   - purge_history: also delete the device's history
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	roomName := pathParam(r, "room")
	name := pathParam(r, "device")
	purge, err := parseBoolQuery(r, "purge_history")
	if err != nil {
		writeBadRequest(w, "invalid purge_history")
		return
	}

	if err := s.home.RemoveDeviceByName(roomName, name); err != nil {
		writeDomainError(w, err)
		return
	}
	s.forgetDevice(r, roomName, name, purge)

	s.logger.Info("device removed", "room", roomName, "device", name)
	w.WriteHeader(http.StatusNoContent)
}

// handleSwitchDevice toggles an outlet and returns its new state.
func (s *Server) handleSwitchDevice(w http.ResponseWriter, r *http.Request) {
	roomName := pathParam(r, "room")
	name := pathParam(r, "device")

	ctx, cancel := context.WithTimeout(r.Context(), s.deviceTimeout)
	defer cancel()

	on, err := s.switchDevice(ctx, roomName, name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"room": roomName, "device": name, "on": on})
}

// switchDevice goes through the bridge when one is configured so the new
// state is published and recorded.
func (s *Server) switchDevice(ctx context.Context, roomName, name string) (bool, error) {
	if s.bridge != nil {
		return s.bridge.Switch(ctx, roomName, name, history.SourceAPI)
	}

	d, ok := s.home.FindDeviceByName(roomName, name)
	if !ok {
		return false, fmt.Errorf("%w: %q in room %q", location.ErrDeviceNotFound, name, roomName)
	}
	sw, ok := d.(switcher)
	if !ok {
		return false, fmt.Errorf("%w: %q is a %s", bridge.ErrNotSwitchable, name, d.Kind())
	}
	return sw.Switch(ctx)
}

// forgetDevice clears bridge state and optionally purges history for a
// removed device. Purge failures are logged only; the device is gone either way.
func (s *Server) forgetDevice(r *http.Request, roomName, name string, purge bool) {
	if s.bridge != nil {
		s.bridge.Forget(roomName, name)
	}
	if !purge || s.history == nil {
		return
	}
	if err := s.history.DeleteDevice(r.Context(), roomName, name); err != nil {
		s.logger.Warn("history purge failed", "room", roomName, "device", name, "error", err)
	}
}
