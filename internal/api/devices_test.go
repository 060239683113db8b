package api

import (
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/nerrad567/smarthome-core/internal/bridge"
	"github.com/nerrad567/smarthome-core/internal/history"
)

func TestDevices_CreateErrors(t *testing.T) {
	outlet := testOutlet(t)
	h := testServer(t).Handler()
	mustCreateRoom(t, h, "kitchen", 1)
	mustCreateDevice(t, h, "kitchen", createDeviceRequest{Name: "kettle", Kind: "outlet", Address: outlet.Addr()})

	tests := []struct {
		name   string
		room   string
		body   string
		status int
	}{
		{"room full", "kitchen", `{"name":"toaster","kind":"outlet"}`, http.StatusConflict},
		{"unknown kind", "kitchen", `{"name":"toaster","kind":"fridge"}`, http.StatusBadRequest},
		{"empty name", "kitchen", `{"name":"","kind":"outlet"}`, http.StatusBadRequest},
		{"missing room", "garage", `{"name":"drill","kind":"outlet"}`, http.StatusNotFound},
		{"invalid JSON", "kitchen", `[`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/api/v1/rooms/"+tt.room+"/devices", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestDevices_DuplicateName(t *testing.T) {
	h := testServer(t).Handler()
	mustCreateRoom(t, h, "kitchen", 2)
	mustCreateDevice(t, h, "kitchen", createDeviceRequest{Name: "kettle", Kind: "outlet"})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/rooms/kitchen/devices", `{"name":"kettle","kind":"outlet"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestDevices_GetAndSwitch(t *testing.T) {
	outlet := testOutlet(t)
	h := testServer(t).Handler()
	mustCreateRoom(t, h, "kitchen", 2)
	mustCreateDevice(t, h, "kitchen", createDeviceRequest{
		Name:        "kettle",
		Description: "by the sink",
		Kind:        "outlet",
		Address:     outlet.Addr(),
	})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/rooms/kitchen/devices/kettle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	v := decodeBody[deviceView](t, rec)
	if v.Kind != "outlet" || v.Address != outlet.Addr() || v.Description != "by the sink" {
		t.Errorf("view = %+v", v)
	}
	if v.Error != "" || v.State["on"] != false {
		t.Errorf("state = %v, error = %q, want off", v.State, v.Error)
	}

	for _, want := range []bool{true, false} {
		rec := doRequest(t, h, http.MethodPost, "/api/v1/rooms/kitchen/devices/kettle/switch", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("switch status = %d, body = %s", rec.Code, rec.Body.String())
		}
		if body := decodeBody[map[string]any](t, rec); body["on"] != want {
			t.Errorf("switch on = %v, want %v", body["on"], want)
		}
		if outlet.IsOn() != want {
			t.Errorf("emulator on = %v, want %v", outlet.IsOn(), want)
		}
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/rooms/kitchen/devices", "")
	list := decodeBody[struct {
		Devices []deviceView `json:"devices"`
		Count   int          `json:"count"`
	}](t, rec)
	if list.Count != 1 || list.Devices[0].Name != "kettle" {
		t.Errorf("devices = %+v", list.Devices)
	}
}

func TestDevices_SwitchErrors(t *testing.T) {
	// Reserve a port and release it so the outlet is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	deadAddr := ln.Addr().String()
	ln.Close()

	h := testServer(t).Handler()
	mustCreateRoom(t, h, "hall", 3)
	mustCreateDevice(t, h, "hall", createDeviceRequest{Name: "lamp", Kind: "outlet", Address: deadAddr})
	mustCreateDevice(t, h, "hall", createDeviceRequest{Name: "thermo", Kind: "sensor", Address: "127.0.0.1:0"})

	tests := []struct {
		name   string
		device string
		status int
	}{
		{"unreachable outlet", "lamp", http.StatusBadGateway},
		{"sensor", "thermo", http.StatusBadRequest},
		{"missing", "heater", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/api/v1/rooms/hall/devices/"+tt.device+"/switch", "")
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}

	rec := doRequest(t, h, http.MethodGet, "/api/v1/rooms/hall/devices/lamp", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if v := decodeBody[deviceView](t, rec); v.Error == "" || v.State != nil {
		t.Errorf("view = %+v, want error and no state", v)
	}
}

func TestDevices_Delete(t *testing.T) {
	store := testHistory(t)
	h := testServer(t, func(d *Deps) { d.History = store }).Handler()
	mustCreateRoom(t, h, "hall", 2)
	mustCreateDevice(t, h, "hall", createDeviceRequest{Name: "lamp", Kind: "outlet"})
	mustCreateDevice(t, h, "hall", createDeviceRequest{Name: "fan", Kind: "outlet"})

	for _, dev := range []string{"lamp", "fan"} {
		if err := store.Record(t.Context(), history.Entry{Room: "hall", Device: dev, Kind: "outlet"}); err != nil {
			t.Fatalf("Record() error: %v", err)
		}
	}

	if rec := doRequest(t, h, http.MethodDelete, "/api/v1/rooms/hall/devices/lamp", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodDelete, "/api/v1/rooms/hall/devices/fan?purge_history=true", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete+purge status = %d, want 204", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodGet, "/api/v1/rooms/hall/devices/lamp", ""); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted status = %d, want 404", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodDelete, "/api/v1/rooms/hall/devices/lamp", ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}

	lamp, _ := store.List(t.Context(), "hall", "lamp", 10)
	fan, _ := store.List(t.Context(), "hall", "fan", 10)
	if len(lamp) != 1 || len(fan) != 0 {
		t.Errorf("history after delete: lamp=%d fan=%d, want 1 and 0", len(lamp), len(fan))
	}
}

func TestDevices_SwitchThroughBridge(t *testing.T) {
	outlet := testOutlet(t)
	store := testHistory(t)

	srv := testServer(t, func(d *Deps) {
		b, err := bridge.New(bridge.Options{Home: d.Home, History: store, CommandTimeout: time.Second})
		if err != nil {
			t.Fatalf("bridge.New() error: %v", err)
		}
		d.Bridge = b
		d.History = store
	})
	h := srv.Handler()
	mustCreateRoom(t, h, "kitchen", 1)
	mustCreateDevice(t, h, "kitchen", createDeviceRequest{Name: "kettle", Kind: "outlet", Address: outlet.Addr()})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/rooms/kitchen/devices/kettle/switch", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("switch status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/rooms/kitchen/devices/kettle/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	body := decodeBody[struct {
		Entries []history.Entry `json:"entries"`
	}](t, rec)
	if len(body.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(body.Entries))
	}
	if body.Entries[0].Source != history.SourceAPI || body.Entries[0].State["on"] != true {
		t.Errorf("entry = %+v, want api source and on", body.Entries[0])
	}
}
