package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/smarthome-core/internal/location"
)

// roomView is the JSON representation of a room.
type roomView struct {
	Name     string   `json:"name"`
	Capacity int      `json:"capacity"`
	Used     int      `json:"used"`
	Devices  []string `json:"devices"`
}

// createRoomRequest is the body of POST /rooms.
type createRoomRequest struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

func viewRoom(r *location.Room) roomView {
	names := r.ListDeviceNames()
	return roomView{
		Name:     r.Name(),
		Capacity: r.Capacity(),
		Used:     len(names),
		Devices:  names,
	}
}

// handleListRooms returns every room sorted by name.
func (s *Server) handleListRooms(w http.ResponseWriter, _ *http.Request) {
	names := s.home.ListRoomNames()
	rooms := make([]roomView, 0, len(names))
	for _, name := range names {
		// A room removed between listing and lookup is skipped.
		if r, ok := s.home.FindRoomByName(name); ok {
			rooms = append(rooms, viewRoom(r))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms, "count": len(rooms)})
}

// handleCreateRoom adds an empty room.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := location.ValidateName(req.Name); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := location.ValidateCapacity(req.Capacity); err != nil {
		writeDomainError(w, err)
		return
	}

	room, err := s.home.AddRoom(location.NewRoom(req.Name, req.Capacity))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.logger.Info("room created", "room", room.Name(), "capacity", room.Capacity())
	writeJSON(w, http.StatusCreated, viewRoom(room))
}

// handleGetRoom returns one room.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := s.home.FindRoomByName(pathParam(r, "room"))
	if !ok {
		writeNotFound(w, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, viewRoom(room))
}

// handleDeleteRoom removes a room and closes its devices.
//
// Query parameters:
//   - purge_history: also delete the history of every device in the room
func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "room")
	purge, err := parseBoolQuery(r, "purge_history")
	if err != nil {
		writeBadRequest(w, "invalid purge_history")
		return
	}

	room, ok := s.home.FindRoomByName(name)
	if !ok {
		writeNotFound(w, "room not found")
		return
	}
	devices := room.ListDeviceNames()

	if err := s.home.RemoveRoomByName(name); err != nil {
		writeDomainError(w, err)
		return
	}

	for _, dev := range devices {
		s.forgetDevice(r, name, dev, purge)
	}

	s.logger.Info("room removed", "room", name, "devices", len(devices))
	w.WriteHeader(http.StatusNoContent)
}

// pathParam returns a chi URL parameter, unescaped when it is valid
// percent-encoding.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func parseBoolQuery(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
