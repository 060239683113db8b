package emulator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"time"

	"github.com/nerrad567/smarthome-core/internal/device"
)

// SensorFeed pushes temperature readings to a sensor's UDP endpoint.
type SensorFeed struct {
	conn   net.Conn
	logger Logger
}

// NewSensorFeed dials the sensor endpoint. UDP has no handshake, so this
// succeeds even if nothing is listening yet.
func NewSensorFeed(ctx context.Context, target string, logger Logger) (*SensorFeed, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp", target)
	if err != nil {
		return nil, fmt.Errorf("emulator: dial %s: %w", target, err)
	}
	return &SensorFeed{conn: conn, logger: logger}, nil
}

// Send pushes a single reading.
func (f *SensorFeed) Send(v float32) error {
	return f.SendRaw(device.EncodeFloat32(v))
}

// SendRaw pushes an arbitrary datagram.
func (f *SensorFeed) SendRaw(b []byte) error {
	if _, err := f.conn.Write(b); err != nil {
		return fmt.Errorf("emulator: send: %w", err)
	}
	return nil
}

// Run sends a random-walk temperature series starting at start every
// interval until ctx is cancelled.
func (f *SensorFeed) Run(ctx context.Context, start float32, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	value := start
	for {
		if err := f.Send(value); err != nil {
			f.logger.Warn("sensor feed send failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			value += float32(rand.Float64()-0.5) * 0.5
		}
	}
}

// Close releases the socket.
func (f *SensorFeed) Close() error {
	return f.conn.Close()
}
