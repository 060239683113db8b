package report

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/smarthome-core/internal/device"
)

func TestRender_Empty(t *testing.T) {
	got := Render("Дом", nil)
	want := "Home \"Дом\": 0 rooms, 0 devices\n"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRender_Full(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rooms := []Room{
		{
			Name:     "комната1",
			Capacity: 4,
			Devices: []Device{
				{
					Info:  device.Info{Name: "розетка", Description: "kitchen outlet", Kind: device.KindOutlet},
					State: device.State{"power_w": float32(123), "on": true},
				},
				{
					Info:  device.Info{Name: "термометр", Kind: device.KindSensor},
					State: device.State{"temperature_c": float32(23.5), "updated_at": at},
				},
			},
		},
		{
			Name:     "attic",
			Capacity: 2,
		},
	}

	got := Render("Дом", rooms)
	want := strings.Join([]string{
		`Home "Дом": 2 rooms, 2 devices`,
		`[attic] 0/2 slots`,
		`  (no devices)`,
		`[комната1] 2/4 slots`,
		`  - розетка (outlet) "kitchen outlet": on=true power_w=123`,
		`  - термометр (sensor): temperature_c=23.5 updated_at=2026-03-01T12:00:00Z`,
		``,
	}, "\n")

	if got != want {
		t.Errorf("Render() mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestRender_DeviceError(t *testing.T) {
	rooms := []Room{{
		Name:     "kitchen",
		Capacity: 1,
		Devices: []Device{{
			Info: device.Info{Name: "kettle", Kind: device.KindOutlet},
			Err:  errors.New("device: timeout"),
		}},
	}}

	got := Render("home", rooms)
	if !strings.Contains(got, "  - kettle (outlet): unavailable (device: timeout)\n") {
		t.Errorf("Render() = %q, want unavailable line", got)
	}
	if !strings.HasPrefix(got, `Home "home": 1 room, 1 device`) {
		t.Errorf("Render() header = %q", strings.SplitN(got, "\n", 2)[0])
	}
}

func TestRender_DoesNotReorderInput(t *testing.T) {
	rooms := []Room{{Name: "b"}, {Name: "a"}}
	Render("h", rooms)
	if rooms[0].Name != "b" {
		t.Error("Render() mutated the caller's slice")
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"float32", float32(21.25), "21.25"},
		{"float64", 0.1, "0.1"},
		{"bool", false, "false"},
		{"zero time", time.Time{}, "never"},
		{"nil", nil, "-"},
		{"string", "x", "x"},
		{"int", 3, "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.in); got != tt.want {
				t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
