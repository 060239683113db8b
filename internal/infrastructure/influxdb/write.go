package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementDeviceState   = "device_state"
	MeasurementSensorReading = "sensor_reading"
)

// WriteDeviceState records the numeric and boolean fields of a device state.
// Other field types are skipped; a state with no usable fields writes nothing.
func (c *Client) WriteDeviceState(room, device, kind string, state map[string]any, at time.Time) {
	point := DeviceStatePoint(room, device, kind, state, at)
	if point == nil {
		return
	}
	c.writePoint(point)
}

// WriteReading records one sensor datagram.
func (c *Client) WriteReading(room, sensor string, value float32, at time.Time) {
	c.writePoint(ReadingPoint(room, sensor, value, at))
}

func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

// DeviceStatePoint builds the point WriteDeviceState sends, or nil when
// state has no numeric or boolean fields.
func DeviceStatePoint(room, device, kind string, state map[string]any, at time.Time) *write.Point {
	fields := make(map[string]any, len(state))
	for k, v := range state {
		if f, ok := fieldValue(v); ok {
			fields[k] = f
		}
	}
	if len(fields) == 0 {
		return nil
	}

	return write.NewPoint(
		MeasurementDeviceState,
		map[string]string{
			"room":   room,
			"device": device,
			"kind":   kind,
		},
		fields,
		at,
	)
}

// ReadingPoint builds the point WriteReading sends.
func ReadingPoint(room, sensor string, value float32, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementSensorReading,
		map[string]string{
			"room":   room,
			"device": sensor,
		},
		map[string]any{"value": float64(value)},
		at,
	)
}

// fieldValue converts a state value to an InfluxDB field type.
func fieldValue(v any) (any, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case int:
		return int64(x), true
	case int64:
		return x, true
	case uint32:
		return int64(x), true
	default:
		return nil, false
	}
}
