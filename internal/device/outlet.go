package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"
)

// Outlet defaults.
const (
	// DefaultOutletAddress is the endpoint used when an outlet has no address configured.
	DefaultOutletAddress = "127.0.0.1:9555"

	defaultDialTimeout = 3 * time.Second
	defaultIOTimeout   = 5 * time.Second
)

// OutletOptions configures a new Outlet.
type OutletOptions struct {
	Name        string
	Description string

	// Address is the outlet's TCP endpoint (host:port). Defaults to DefaultOutletAddress.
	Address string

	// DialTimeout bounds connection establishment. Default: 3s.
	DialTimeout time.Duration

	// IOTimeout bounds the whole exchange when the caller's context has no
	// earlier deadline. Default: 5s.
	IOTimeout time.Duration

	Logger Logger
}

// OutletStats holds operational counters for an outlet.
type OutletStats struct {
	Requests     uint64
	Failures     uint64
	Timeouts     uint64
	LastExchange time.Time
}

// Outlet is a switchable power outlet reached over TCP.
//
// Every command uses its own connection: dial, write one command line,
// read the fixed-size reply, close. Failures are never retried.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Concurrent commands use
//     independent connections.
type Outlet struct {
	name        string
	description string
	address     string
	dialTimeout time.Duration
	ioTimeout   time.Duration
	logger      Logger

	closed atomic.Bool

	requests     atomic.Uint64
	failures     atomic.Uint64
	timeouts     atomic.Uint64
	lastExchange atomic.Int64 // Unix nanoseconds
}

var _ Device = (*Outlet)(nil)

// NewOutlet creates an outlet. No connection is made until a command is issued.
func NewOutlet(opts OutletOptions) (*Outlet, error) {
	if err := ValidateName(opts.Name); err != nil {
		return nil, err
	}
	if opts.Address == "" {
		opts.Address = DefaultOutletAddress
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = defaultIOTimeout
	}

	return &Outlet{
		name:        opts.Name,
		description: opts.Description,
		address:     opts.Address,
		dialTimeout: opts.DialTimeout,
		ioTimeout:   opts.IOTimeout,
		logger:      loggerOrNoop(opts.Logger),
	}, nil
}

// Name returns the outlet's name.
func (o *Outlet) Name() string { return o.name }

// Description returns the outlet's description.
func (o *Outlet) Description() string { return o.description }

// Kind returns KindOutlet.
func (o *Outlet) Kind() Kind { return KindOutlet }

// Address returns the outlet's TCP endpoint.
func (o *Outlet) Address() string { return o.address }

// Switch toggles the outlet and returns the state reported after the toggle.
func (o *Outlet) Switch(ctx context.Context) (bool, error) {
	reply, err := o.exchange(ctx, CommandSwitch)
	if err != nil {
		return false, err
	}
	return DecodeState(reply)
}

// IsOn reports whether the outlet is currently on.
func (o *Outlet) IsOn(ctx context.Context) (bool, error) {
	reply, err := o.exchange(ctx, CommandGetState)
	if err != nil {
		return false, err
	}
	return DecodeState(reply)
}

// Power returns the outlet's current power draw.
func (o *Outlet) Power(ctx context.Context) (float32, error) {
	reply, err := o.exchange(ctx, CommandGetValue)
	if err != nil {
		return 0, err
	}
	return DecodeFloat32(reply)
}

// State queries the outlet for its on/off state and power draw.
func (o *Outlet) State(ctx context.Context) (State, error) {
	on, err := o.IsOn(ctx)
	if err != nil {
		return nil, err
	}
	power, err := o.Power(ctx)
	if err != nil {
		return nil, err
	}
	return State{"on": on, "power_w": power}, nil
}

// Close marks the outlet closed. Outlets hold no connection between
// commands, so there is nothing else to release.
func (o *Outlet) Close() error {
	o.closed.Store(true)
	return nil
}

// Stats returns current operational counters.
func (o *Outlet) Stats() OutletStats {
	var last time.Time
	if ns := o.lastExchange.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return OutletStats{
		Requests:     o.requests.Load(),
		Failures:     o.failures.Load(),
		Timeouts:     o.timeouts.Load(),
		LastExchange: last,
	}
}

// exchange performs one request/response round trip on a fresh connection.
func (o *Outlet) exchange(ctx context.Context, cmd Command) ([]byte, error) {
	if o.closed.Load() {
		return nil, ErrClosed
	}
	o.requests.Add(1)

	dialCtx, cancel := context.WithTimeout(ctx, o.dialTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", o.address)
	if err != nil {
		return nil, o.fail(ctx, cmd, "dial", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(o.ioTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, o.fail(ctx, cmd, "set deadline", err)
	}

	// Closing the connection unblocks the exchange if ctx is cancelled
	// before the deadline.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if _, err := conn.Write(EncodeCommand(cmd)); err != nil {
		return nil, o.fail(ctx, cmd, "write", err)
	}

	reply := make([]byte, cmd.ReplySize())
	if _, err := io.ReadFull(conn, reply); err != nil {
		return nil, o.fail(ctx, cmd, "read", err)
	}

	o.lastExchange.Store(time.Now().UnixNano())
	return reply, nil
}

// fail classifies err as a timeout or an I/O failure and records it.
func (o *Outlet) fail(ctx context.Context, cmd Command, op string, err error) error {
	o.failures.Add(1)

	if isTimeout(ctx, err) {
		o.timeouts.Add(1)
		o.logger.Warn("outlet exchange timed out",
			"device", o.name, "address", o.address, "command", string(cmd), "op", op)
		return fmt.Errorf("%w: %s %s %s: %w", ErrTimeout, o.address, cmd, op, err)
	}

	o.logger.Warn("outlet exchange failed",
		"device", o.name, "address", o.address, "command", string(cmd), "op", op, "error", err)
	return fmt.Errorf("%w: %s %s %s: %w", ErrDeviceIO, o.address, cmd, op, err)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
