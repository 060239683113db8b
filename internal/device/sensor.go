package device

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// maxDatagramSize is the receive buffer size. It is larger than a reading
// so oversized datagrams are detected instead of silently truncated.
const maxDatagramSize = 512

// SensorOptions configures a new Sensor.
type SensorOptions struct {
	Name        string
	Description string

	// Endpoint is the local UDP address to listen on (e.g. "127.0.0.1:4000").
	// An empty endpoint starts no listener and the reading stays 0.0.
	Endpoint string

	Logger Logger
}

// Reading is a single decoded sensor datagram.
type Reading struct {
	Sensor string
	Value  float32
	At     time.Time
	From   net.Addr
}

// SensorStats holds operational counters for a sensor.
type SensorStats struct {
	Received  uint64
	Dropped   uint64
	Listening bool
}

// Sensor is a temperature sensor that receives readings pushed over UDP.
//
// A single listener goroutine decodes datagrams in arrival order and stores
// each reading in an atomic cell (last writer wins). Value never blocks.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Reading callbacks run on the listener goroutine; panics are recovered.
type Sensor struct {
	name        string
	description string
	endpoint    string
	logger      Logger

	bits      atomic.Uint32 // math.Float32bits of the latest reading
	updatedAt atomic.Int64  // Unix nanoseconds, 0 until the first reading

	conn      net.PacketConn
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	listening atomic.Bool

	errMu sync.RWMutex
	err   error

	onReading  func(Reading)
	callbackMu sync.RWMutex

	received atomic.Uint64
	dropped  atomic.Uint64
}

var _ Device = (*Sensor)(nil)

// NewSensor creates a sensor and, when an endpoint is configured, binds it
// and starts the listener.
//
// The listener stops when ctx is cancelled or Close is called. A bind
// failure does not fail construction: it is logged, reported by Err, and
// the reading stays at 0.0.
func NewSensor(ctx context.Context, opts SensorOptions) (*Sensor, error) {
	if err := ValidateName(opts.Name); err != nil {
		return nil, err
	}

	s := &Sensor{
		name:        opts.Name,
		description: opts.Description,
		endpoint:    opts.Endpoint,
		logger:      loggerOrNoop(opts.Logger),
		cancel:      func() {},
	}

	if opts.Endpoint == "" {
		return s, nil
	}

	listenCtx, cancel := context.WithCancel(ctx)
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(listenCtx, "udp", opts.Endpoint)
	if err != nil {
		cancel()
		s.setErr(fmt.Errorf("%w: %s: %w", ErrListen, opts.Endpoint, err))
		s.logger.Error("sensor listener bind failed",
			"device", s.name, "endpoint", opts.Endpoint, "error", err)
		return s, nil
	}

	s.conn = conn
	s.cancel = cancel
	s.listening.Store(true)

	// Cancelling the context unblocks the pending read.
	stop := context.AfterFunc(listenCtx, func() { conn.Close() })

	s.wg.Add(1)
	go func() {
		defer stop()
		s.listen(listenCtx)
	}()

	s.logger.Info("sensor listening", "device", s.name, "endpoint", conn.LocalAddr().String())
	return s, nil
}

// Name returns the sensor's name.
func (s *Sensor) Name() string { return s.name }

// Description returns the sensor's description.
func (s *Sensor) Description() string { return s.description }

// Kind returns KindSensor.
func (s *Sensor) Kind() Kind { return KindSensor }

// Endpoint returns the configured listen endpoint.
func (s *Sensor) Endpoint() string { return s.endpoint }

// ListenAddr returns the bound local address, or nil if no listener is running.
// Useful when the endpoint uses port 0.
func (s *Sensor) ListenAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Value returns the most recent reading, or 0.0 if none has arrived.
func (s *Sensor) Value() float32 {
	return math.Float32frombits(s.bits.Load())
}

// LastUpdate returns when the most recent reading arrived, or the zero time.
func (s *Sensor) LastUpdate() time.Time {
	ns := s.updatedAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// State returns the cached reading. It performs no I/O and never fails.
func (s *Sensor) State(_ context.Context) (State, error) {
	return State{
		"temperature_c": s.Value(),
		"updated_at":    s.LastUpdate(),
	}, nil
}

// Err returns the error that stopped the listener, or nil.
func (s *Sensor) Err() error {
	s.errMu.RLock()
	defer s.errMu.RUnlock()
	return s.err
}

// SetOnReading sets a callback invoked for every accepted reading.
// The callback runs on the listener goroutine and must not block.
func (s *Sensor) SetOnReading(callback func(Reading)) {
	s.callbackMu.Lock()
	s.onReading = callback
	s.callbackMu.Unlock()
}

// Stats returns current operational counters.
func (s *Sensor) Stats() SensorStats {
	return SensorStats{
		Received:  s.received.Load(),
		Dropped:   s.dropped.Load(),
		Listening: s.listening.Load(),
	}
}

// Close stops the listener and waits for it to exit. Safe to call multiple times.
func (s *Sensor) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.conn != nil {
			s.conn.Close()
		}
		s.wg.Wait()
	})
	return nil
}

// listen receives datagrams until the context is cancelled or a read fails.
func (s *Sensor) listen(ctx context.Context) {
	defer s.wg.Done()
	defer s.listening.Store(false)

	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Debug("sensor listener stopped", "device", s.name)
				return
			}
			s.setErr(fmt.Errorf("%w: read: %w", ErrDeviceIO, err))
			s.logger.Error("sensor listener failed", "device", s.name, "error", err)
			return
		}

		value, err := DecodeFloat32(buf[:n])
		if err != nil {
			s.dropped.Add(1)
			s.logger.Debug("sensor datagram dropped", "device", s.name, "size", n, "from", from)
			continue
		}

		now := time.Now()
		s.bits.Store(math.Float32bits(value))
		s.updatedAt.Store(now.UnixNano())
		s.received.Add(1)

		s.notify(Reading{Sensor: s.name, Value: value, At: now, From: from})
	}
}

func (s *Sensor) notify(r Reading) {
	s.callbackMu.RLock()
	callback := s.onReading
	s.callbackMu.RUnlock()

	if callback == nil {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("sensor reading callback panic", "device", s.name, "panic", fmt.Sprintf("%v", rec))
		}
	}()
	callback(r)
}

func (s *Sensor) setErr(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}
