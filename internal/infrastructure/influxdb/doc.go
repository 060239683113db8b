// Package influxdb writes device telemetry to InfluxDB v2.
//
// Outlet state changes are written to the device_state measurement and every
// sensor datagram to sensor_reading, both tagged with room and device. Writes
// are batched and non-blocking; failures arrive on the SetOnError callback.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteReading("hall", "thermo", 21.5, time.Now())
package influxdb
