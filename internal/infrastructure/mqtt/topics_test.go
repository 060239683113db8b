package mqtt

import (
	"errors"
	"testing"
)

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"state", Topics{}.DeviceState("kitchen", "kettle"), "smarthome/state/kitchen/kettle"},
		{"command", Topics{}.DeviceCommand("kitchen", "kettle"), "smarthome/command/kitchen/kettle"},
		{"ack", Topics{}.DeviceAck("kitchen", "kettle"), "smarthome/ack/kitchen/kettle"},
		{"escaped space and slash", Topics{}.DeviceState("Living room", "lamp/1"), "smarthome/state/Living%20room/lamp%2F1"},
		{"escaped wildcards", Topics{}.DeviceState("a+b", "c#d"), "smarthome/state/a%2Bb/c%23d"},
		{"cyrillic", Topics{}.DeviceState("комната1", "розетка"), "smarthome/state/%D0%BA%D0%BE%D0%BC%D0%BD%D0%B0%D1%82%D0%B01/%D1%80%D0%BE%D0%B7%D0%B5%D1%82%D0%BA%D0%B0"},
		{"status", Topics{}.SystemStatus(), "smarthome/system/status"},
		{"all states", Topics{}.AllDeviceStates(), "smarthome/state/+/+"},
		{"all commands", Topics{}.AllDeviceCommands(), "smarthome/command/+/+"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParseDeviceTopic(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		names := [][2]string{
			{"kitchen", "kettle"},
			{"Living room", "lamp/1"},
			{"a+b", "c#d"},
			{"комната1", "розетка"},
		}
		for _, n := range names {
			category, room, device, err := ParseDeviceTopic(Topics{}.DeviceCommand(n[0], n[1]))
			if err != nil {
				t.Fatalf("ParseDeviceTopic(%v) error = %v", n, err)
			}
			if category != CategoryCommand || room != n[0] || device != n[1] {
				t.Errorf("ParseDeviceTopic(%v) = (%q, %q, %q)", n, category, room, device)
			}
		}
	})

	invalid := []string{
		"",
		"smarthome/state/kitchen",
		"other/state/kitchen/kettle",
		"smarthome/state/kitchen/kettle/extra",
		"smarthome/state//kettle",
		"smarthome/state/%zz/kettle",
	}
	for _, topic := range invalid {
		t.Run("invalid "+topic, func(t *testing.T) {
			if _, _, _, err := ParseDeviceTopic(topic); !errors.Is(err, ErrInvalidTopic) {
				t.Errorf("ParseDeviceTopic(%q) error = %v, want ErrInvalidTopic", topic, err)
			}
		})
	}
}
