package mqtt

import (
	"fmt"
	"net/url"
	"strings"
)

// TopicPrefix is the root of every smarthome topic.
const TopicPrefix = "smarthome"

// Topic categories.
const (
	CategoryState   = "state"
	CategoryCommand = "command"
	CategoryAck     = "ack"
)

// Topics builds smarthome topic names.
//
// Room and device names may contain spaces, slashes or non-ASCII letters, so
// each name segment is path-escaped:
//
//	mqtt.Topics{}.DeviceState("Living room", "lamp/1")
//	// "smarthome/state/Living%20room/lamp%2F1"
type Topics struct{}

// DeviceState is the retained state topic for a device.
func (Topics) DeviceState(room, device string) string {
	return deviceTopic(CategoryState, room, device)
}

// DeviceCommand is the topic commands for a device arrive on.
func (Topics) DeviceCommand(room, device string) string {
	return deviceTopic(CategoryCommand, room, device)
}

// DeviceAck is the topic command acknowledgements are published to.
func (Topics) DeviceAck(room, device string) string {
	return deviceTopic(CategoryAck, room, device)
}

// SystemStatus is the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// AllDeviceStates matches every device state topic.
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/%s/+/+", TopicPrefix, CategoryState)
}

// AllDeviceCommands matches every device command topic.
func (Topics) AllDeviceCommands() string {
	return fmt.Sprintf("%s/%s/+/+", TopicPrefix, CategoryCommand)
}

// ParseDeviceTopic splits a device topic into its category, room and device,
// unescaping the name segments.
func ParseDeviceTopic(topic string) (category, room, device string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}

	room, err = url.PathUnescape(parts[2])
	if err != nil {
		return "", "", "", fmt.Errorf("%w: room segment: %w", ErrInvalidTopic, err)
	}
	device, err = url.PathUnescape(parts[3])
	if err != nil {
		return "", "", "", fmt.Errorf("%w: device segment: %w", ErrInvalidTopic, err)
	}
	if room == "" || device == "" {
		return "", "", "", fmt.Errorf("%w: empty name in %q", ErrInvalidTopic, topic)
	}
	return parts[1], room, device, nil
}

func deviceTopic(category, room, device string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefix, category, escapeSegment(room), escapeSegment(device))
}

// escapeSegment path-escapes a name. PathEscape leaves the "+" wildcard
// alone, so it is escaped separately.
func escapeSegment(s string) string {
	return strings.ReplaceAll(url.PathEscape(s), "+", "%2B")
}
