package device

import (
	"context"
	"fmt"
	"time"
)

// Spec describes a device to be built by a Factory.
type Spec struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Kind        Kind   `json:"kind" yaml:"kind"`

	// Address is the outlet's TCP endpoint or the sensor's UDP listen
	// endpoint. An empty outlet address falls back to the factory default.
	Address string `json:"address,omitempty" yaml:"address"`
}

// FactoryOptions configures a Factory.
type FactoryOptions struct {
	// OutletAddress is used for outlets whose Spec has no address.
	OutletAddress string

	OutletDialTimeout time.Duration
	OutletIOTimeout   time.Duration

	Logger Logger
}

// Factory builds devices from specs with shared defaults.
//
// Sensors built by a factory are bound to the context passed to
// NewFactory: cancelling it stops every sensor listener.
type Factory struct {
	ctx  context.Context
	opts FactoryOptions
}

// NewFactory creates a Factory. ctx bounds the lifetime of sensor listeners.
func NewFactory(ctx context.Context, opts FactoryOptions) *Factory {
	if opts.OutletAddress == "" {
		opts.OutletAddress = DefaultOutletAddress
	}
	opts.Logger = loggerOrNoop(opts.Logger)
	return &Factory{ctx: ctx, opts: opts}
}

// Build constructs the device described by spec. On error the returned
// Device is a nil interface.
func (f *Factory) Build(spec Spec) (Device, error) {
	switch spec.Kind {
	case KindOutlet:
		addr := spec.Address
		if addr == "" {
			addr = f.opts.OutletAddress
		}
		o, err := NewOutlet(OutletOptions{
			Name:        spec.Name,
			Description: spec.Description,
			Address:     addr,
			DialTimeout: f.opts.OutletDialTimeout,
			IOTimeout:   f.opts.OutletIOTimeout,
			Logger:      f.opts.Logger,
		})
		if err != nil {
			return nil, err
		}
		return o, nil
	case KindSensor:
		s, err := NewSensor(f.ctx, SensorOptions{
			Name:        spec.Name,
			Description: spec.Description,
			Endpoint:    spec.Address,
			Logger:      f.opts.Logger,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, spec.Kind)
	}
}
