package emulator

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/nerrad567/smarthome-core/internal/device"
)

func listenUDP(t *testing.T) net.PacketConn {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	t.Cleanup(func() { pc.Close() })
	return pc
}

func readDatagram(t *testing.T, pc net.PacketConn) []byte {
	t.Helper()

	//nolint:errcheck // Test deadline
	pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	return buf[:n]
}

func TestSensorFeed_Send(t *testing.T) {
	pc := listenUDP(t)
	feed, err := NewSensorFeed(t.Context(), pc.LocalAddr().String(), nil)
	if err != nil {
		t.Fatalf("NewSensorFeed() error = %v", err)
	}
	defer feed.Close()

	if err := feed.Send(21.5); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	v, err := device.DecodeFloat32(readDatagram(t, pc))
	if err != nil || v != 21.5 {
		t.Errorf("datagram = %v, %v; want 21.5", v, err)
	}

	if err := feed.SendRaw([]byte{1, 2}); err != nil {
		t.Fatalf("SendRaw() error = %v", err)
	}
	if got := readDatagram(t, pc); len(got) != 2 {
		t.Errorf("raw datagram length = %d, want 2", len(got))
	}
}

func TestSensorFeed_Run(t *testing.T) {
	pc := listenUDP(t)
	feed, err := NewSensorFeed(t.Context(), pc.LocalAddr().String(), nil)
	if err != nil {
		t.Fatalf("NewSensorFeed() error = %v", err)
	}
	defer feed.Close()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx, 20, 10*time.Millisecond) }()

	first, err := device.DecodeFloat32(readDatagram(t, pc))
	if err != nil || first != 20 {
		t.Errorf("first reading = %v, %v; want 20", first, err)
	}
	if _, err := device.DecodeFloat32(readDatagram(t, pc)); err != nil {
		t.Errorf("second reading: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
