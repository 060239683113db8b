package api

import (
	"net/http"
	"testing"
)

func TestRooms_Create(t *testing.T) {
	h := testServer(t).Handler()
	mustCreateRoom(t, h, "kitchen", 2)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"duplicate", `{"name":"kitchen","capacity":1}`, http.StatusConflict},
		{"empty name", `{"name":"","capacity":1}`, http.StatusBadRequest},
		{"negative capacity", `{"name":"hall","capacity":-1}`, http.StatusBadRequest},
		{"capacity too large", `{"name":"hall","capacity":1000}`, http.StatusBadRequest},
		{"invalid JSON", `{"name":`, http.StatusBadRequest},
		{"zero capacity", `{"name":"attic","capacity":0}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/api/v1/rooms", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestRooms_ListGetDelete(t *testing.T) {
	h := testServer(t).Handler()
	mustCreateRoom(t, h, "kitchen", 2)
	mustCreateRoom(t, h, "bedroom", 1)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/rooms", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	list := decodeBody[struct {
		Rooms []roomView `json:"rooms"`
		Count int        `json:"count"`
	}](t, rec)
	if list.Count != 2 || list.Rooms[0].Name != "bedroom" || list.Rooms[1].Name != "kitchen" {
		t.Errorf("rooms = %+v, want bedroom then kitchen", list.Rooms)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/rooms/kitchen", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if room := decodeBody[roomView](t, rec); room.Capacity != 2 || room.Used != 0 {
		t.Errorf("room = %+v, want capacity 2 used 0", room)
	}

	if rec := doRequest(t, h, http.MethodGet, "/api/v1/rooms/garage", ""); rec.Code != http.StatusNotFound {
		t.Errorf("get missing status = %d, want 404", rec.Code)
	}

	if rec := doRequest(t, h, http.MethodDelete, "/api/v1/rooms/kitchen", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodDelete, "/api/v1/rooms/kitchen", ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodDelete, "/api/v1/rooms/bedroom?purge_history=maybe", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad purge_history status = %d, want 400", rec.Code)
	}
}

func TestRooms_EscapedName(t *testing.T) {
	h := testServer(t).Handler()
	mustCreateRoom(t, h, "living room", 1)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/rooms/living%20room", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if room := decodeBody[roomView](t, rec); room.Name != "living room" {
		t.Errorf("name = %q, want %q", room.Name, "living room")
	}
}
