// Package device implements the network-attached devices managed by the
// smart home core.
//
// Two device kinds exist today:
//
//   - Outlet: a switchable power outlet controlled over TCP. Every command
//     opens a fresh connection, writes one command line and reads a
//     fixed-size reply.
//   - Sensor: a temperature sensor that pushes readings over UDP. A
//     background listener caches the most recent reading so reads never
//     block.
//
// # Wire Protocols
//
//	Outlet (TCP, one exchange per connection)
//	  request:  "switch\n" | "getState\n" | "getValue\n"
//	  response: 1 byte (0 = off, 1 = on) for switch/getState
//	            4 bytes big-endian IEEE-754 float32 for getValue
//
//	Sensor (UDP push)
//	  datagram: exactly 4 bytes big-endian IEEE-754 float32
//
// # Usage
//
//	factory := device.NewFactory(ctx, device.FactoryOptions{
//	    OutletAddress: "127.0.0.1:9555",
//	    Logger:        log,
//	})
//	dev, err := factory.Build(device.Spec{
//	    Name: "kettle", Kind: device.KindOutlet,
//	})
//	if err != nil {
//	    return err
//	}
//	defer dev.Close()
//
//	if outlet, ok := dev.(*device.Outlet); ok {
//	    on, err := outlet.Switch(ctx)
//	    ...
//	}
//
// # Thread Safety
//
// Outlet and Sensor are safe for concurrent use. Outlet holds no
// connection state between calls. Sensor readings are stored in an atomic
// cell, so Value never blocks even while a datagram is being processed.
package device
