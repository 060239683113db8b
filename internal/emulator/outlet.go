package emulator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/smarthome-core/internal/device"
)

// DefaultPower is the power draw reported by an emulated outlet that is on.
const DefaultPower float32 = 123.0

const defaultReadTimeout = 5 * time.Second

// Logger defines the logging interface used by the emulators.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// OutletOptions configures an emulated outlet.
type OutletOptions struct {
	// Address to listen on. Default: "127.0.0.1:0" (random port).
	Address string

	// Power is the value returned by getValue. Default: DefaultPower.
	Power float32

	// InitialOn sets the starting switch state.
	InitialOn bool

	// ReplyDelay delays every reply. Used to exercise client timeouts.
	ReplyDelay time.Duration

	Logger Logger
}

// OutletStats holds counters for an emulated outlet.
type OutletStats struct {
	Connections uint64
	Commands    uint64
	Rejected    uint64
}

// Outlet serves the outlet protocol over TCP: one command line per
// connection, one fixed-size reply, then the connection is closed.
type Outlet struct {
	opts     OutletOptions
	listener net.Listener

	on    atomic.Bool
	power atomic.Uint32

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	connections atomic.Uint64
	commands    atomic.Uint64
	rejected    atomic.Uint64
}

// NewOutlet binds the listener and starts serving in the background.
func NewOutlet(ctx context.Context, opts OutletOptions) (*Outlet, error) {
	if opts.Address == "" {
		opts.Address = "127.0.0.1:0"
	}
	if opts.Power == 0 {
		opts.Power = DefaultPower
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", opts.Address)
	if err != nil {
		return nil, fmt.Errorf("emulator: listen %s: %w", opts.Address, err)
	}

	o := &Outlet{
		opts:     opts,
		listener: listener,
		done:     make(chan struct{}),
	}
	o.on.Store(opts.InitialOn)
	o.power.Store(math.Float32bits(opts.Power))

	o.wg.Add(1)
	go o.acceptLoop()

	opts.Logger.Info("outlet emulator listening", "address", listener.Addr().String())
	return o, nil
}

// Addr returns the address the emulator is listening on.
func (o *Outlet) Addr() string {
	return o.listener.Addr().String()
}

// IsOn returns the emulated switch state.
func (o *Outlet) IsOn() bool {
	return o.on.Load()
}

// SetPower changes the value returned by getValue.
func (o *Outlet) SetPower(v float32) {
	o.power.Store(math.Float32bits(v))
}

// Stats returns current counters.
func (o *Outlet) Stats() OutletStats {
	return OutletStats{
		Connections: o.connections.Load(),
		Commands:    o.commands.Load(),
		Rejected:    o.rejected.Load(),
	}
}

// Close stops accepting connections and waits for in-flight ones to finish.
func (o *Outlet) Close() error {
	var err error
	o.stopOnce.Do(func() {
		close(o.done)
		err = o.listener.Close()
		o.wg.Wait()
	})
	return err
}

func (o *Outlet) acceptLoop() {
	defer o.wg.Done()

	for {
		conn, err := o.listener.Accept()
		if err != nil {
			select {
			case <-o.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			o.opts.Logger.Warn("outlet emulator accept failed", "error", err)
			continue
		}

		o.connections.Add(1)
		o.wg.Add(1)
		go o.serve(conn)
	}
}

func (o *Outlet) serve(conn net.Conn) {
	defer o.wg.Done()
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(defaultReadTimeout)); err != nil {
		return
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		o.opts.Logger.Debug("outlet emulator read failed", "error", err)
		return
	}

	cmd, ok := device.ParseCommand(strings.TrimRight(line, "\r\n"))
	if !ok {
		o.rejected.Add(1)
		o.opts.Logger.Warn("outlet emulator unknown command", "command", strings.TrimSpace(line))
		return
	}
	o.commands.Add(1)

	var reply []byte
	switch cmd {
	case device.CommandSwitch:
		reply = device.EncodeState(o.toggle())
	case device.CommandGetState:
		reply = device.EncodeState(o.on.Load())
	case device.CommandGetValue:
		reply = device.EncodeFloat32(math.Float32frombits(o.power.Load()))
	}

	if o.opts.ReplyDelay > 0 {
		select {
		case <-time.After(o.opts.ReplyDelay):
		case <-o.done:
			return
		}
	}

	if _, err := conn.Write(reply); err != nil {
		o.opts.Logger.Debug("outlet emulator write failed", "error", err)
	}
}

// toggle flips the switch state and returns the new state.
func (o *Outlet) toggle() bool {
	for {
		cur := o.on.Load()
		if o.on.CompareAndSwap(cur, !cur) {
			return !cur
		}
	}
}
