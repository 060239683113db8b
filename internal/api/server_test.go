package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/smarthome-core/internal/bridge"
	"github.com/nerrad567/smarthome-core/internal/device"
	"github.com/nerrad567/smarthome-core/internal/emulator"
	"github.com/nerrad567/smarthome-core/internal/history"
	"github.com/nerrad567/smarthome-core/internal/infrastructure/config"
	"github.com/nerrad567/smarthome-core/internal/infrastructure/database"
	"github.com/nerrad567/smarthome-core/internal/infrastructure/logging"
	"github.com/nerrad567/smarthome-core/internal/location"
	"github.com/nerrad567/smarthome-core/migrations"
)

// testServer creates a Server over an empty home. opts adjust the deps
// before New is called.
func testServer(t *testing.T, opts ...func(*Deps)) *Server {
	t.Helper()

	home := location.NewHome("test")
	t.Cleanup(func() { home.Close() }) //nolint:errcheck // Test cleanup

	deps := Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger: logging.Discard(),
		Home:   home,
		Factory: device.NewFactory(t.Context(), device.FactoryOptions{
			OutletDialTimeout: time.Second,
			OutletIOTimeout:   time.Second,
		}),
		DeviceTimeout: 2 * time.Second,
		Version:       "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

// testHistory opens an in-memory history store.
func testHistory(t *testing.T) *history.SQLiteStore {
	t.Helper()

	db, err := database.Open(t.Context(), database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("database.Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(t.Context(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	return history.NewSQLiteStore(db.DB)
}

// testOutlet starts an emulated outlet and returns its address.
func testOutlet(t *testing.T) *emulator.Outlet {
	t.Helper()

	o, err := emulator.NewOutlet(t.Context(), emulator.OutletOptions{})
	if err != nil {
		t.Fatalf("emulator.NewOutlet() error: %v", err)
	}
	t.Cleanup(func() { o.Close() }) //nolint:errcheck // Test cleanup
	return o
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return v
}

func mustCreateRoom(t *testing.T, h http.Handler, name string, capacity int) {
	t.Helper()

	body, _ := json.Marshal(createRoomRequest{Name: name, Capacity: capacity})
	rec := doRequest(t, h, http.MethodPost, "/api/v1/rooms", string(body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create room %q: status = %d, body = %s", name, rec.Code, rec.Body.String())
	}
}

func mustCreateDevice(t *testing.T, h http.Handler, room string, req createDeviceRequest) {
	t.Helper()

	body, _ := json.Marshal(req)
	rec := doRequest(t, h, http.MethodPost, "/api/v1/rooms/"+room+"/devices", string(body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create device %q: status = %d, body = %s", req.Name, rec.Code, rec.Body.String())
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Deps)
	}{
		{"no logger", func(d *Deps) { d.Logger = nil }},
		{"no home", func(d *Deps) { d.Home = nil }},
		{"no factory", func(d *Deps) { d.Factory = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := Deps{
				Logger:  logging.Discard(),
				Home:    location.NewHome("test"),
				Factory: device.NewFactory(t.Context(), device.FactoryOptions{}),
			}
			tt.mutate(&deps)
			if _, err := New(deps); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(t)
	h := srv.Handler()
	mustCreateRoom(t, h, "kitchen", 2)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["status"] != "ok" || body["home"] != "test" || body["version"] != "test" {
		t.Errorf("health body = %v", body)
	}
	if body["rooms"] != float64(1) {
		t.Errorf("rooms = %v, want 1", body["rooms"])
	}
}

func TestRequestID(t *testing.T) {
	h := testServer(t).Handler()

	rec := doRequest(t, h, http.MethodGet, "/api/v1/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestCORS(t *testing.T) {
	h := testServer(t, func(d *Deps) {
		d.Config.CORS.AllowedOrigins = []string{"http://panel.local"}
	}).Handler()

	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{"allowed", "http://panel.local", "http://panel.local"},
		{"denied", "http://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/rooms", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRouting_Errors(t *testing.T) {
	h := testServer(t).Handler()

	tests := []struct {
		name   string
		method string
		path   string
		status int
		code   string
	}{
		{"unknown route", http.MethodGet, "/api/v1/nope", http.StatusNotFound, ErrCodeNotFound},
		{"wrong method", http.MethodPut, "/api/v1/rooms", http.StatusMethodNotAllowed, ErrCodeMethodNotAllow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, tt.method, tt.path, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if body := decodeBody[Error](t, rec); body.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Code, tt.code)
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := testServer(t)
	h := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := doRequest(t, h, http.MethodGet, "/", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestServer_StartClose(t *testing.T) {
	srv := testServer(t)
	if err := srv.HealthCheck(t.Context()); err == nil {
		t.Error("HealthCheck() before Start expected error")
	}

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := srv.HealthCheck(t.Context()); err != nil {
		t.Errorf("HealthCheck() error: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr().String() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{location.ErrRoomNotFound, http.StatusNotFound},
		{location.ErrRoomFull, http.StatusConflict},
		{location.ErrInvalidCapacity, http.StatusBadRequest},
		{device.ErrUnknownKind, http.StatusBadRequest},
		{bridge.ErrNotSwitchable, http.StatusBadRequest},
		{device.ErrTimeout, http.StatusGatewayTimeout},
		{device.ErrDeviceIO, http.StatusBadGateway},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got, _ := classify(tt.err); got != tt.status {
				t.Errorf("classify(%v) = %d, want %d", tt.err, got, tt.status)
			}
		})
	}
}
