// Package mqtt connects the smarthome core to an MQTT broker.
//
// The core publishes retained device state to smarthome/state/{room}/{device},
// accepts commands on smarthome/command/{room}/{device} and answers them on
// smarthome/ack/{room}/{device}. A retained smarthome/system/status message
// (backed by the client's last will) tells subscribers whether the core is
// online.
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        _, room, device, err := mqtt.ParseDeviceTopic(topic)
//	        ...
//	    })
//
// Subscriptions survive reconnects; the paho client reconnects with
// exponential backoff between reconnect.initial_delay and max_delay.
package mqtt
