// Package bridge connects the device registry to the message bus.
//
// On every poll the bridge snapshots the home, and for each device whose
// state changed since the last poll it:
//   - publishes a retained StateMessage to smarthome/state/{room}/{device}
//   - writes numeric state fields to InfluxDB
//   - records the state in the history store
//   - notifies registered state listeners (the WebSocket hub)
//
// It also accepts CommandMessages on smarthome/command/{room}/{device}.
// "switch" toggles an outlet and "refresh" republishes the current state.
// Every command is answered with an AckMessage on smarthome/ack/{room}/{device}.
//
// The MQTT client, metrics writer and history store are all optional; a
// bridge with none of them still polls and notifies listeners.
package bridge
