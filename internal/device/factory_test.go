package device

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFactory_Build(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewFactory(ctx, FactoryOptions{
		OutletAddress:   "10.0.0.5:9555",
		OutletIOTimeout: 2 * time.Second,
	})

	tests := []struct {
		name     string
		spec     Spec
		wantKind Kind
		wantErr  error
	}{
		{
			name:     "outlet with default address",
			spec:     Spec{Name: "kettle", Kind: KindOutlet},
			wantKind: KindOutlet,
		},
		{
			name:     "outlet with explicit address",
			spec:     Spec{Name: "heater", Kind: KindOutlet, Address: "10.0.0.9:9555"},
			wantKind: KindOutlet,
		},
		{
			name:     "sensor without endpoint",
			spec:     Spec{Name: "thermo", Kind: KindSensor},
			wantKind: KindSensor,
		},
		{
			name:    "unknown kind",
			spec:    Spec{Name: "tv", Kind: "television"},
			wantErr: ErrUnknownKind,
		},
		{
			name:    "empty name",
			spec:    Spec{Kind: KindOutlet},
			wantErr: ErrInvalidName,
		},
		{
			name:    "sensor with empty name",
			spec:    Spec{Kind: KindSensor, Address: "127.0.0.1:0"},
			wantErr: ErrInvalidName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := f.Build(tt.spec)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Build() error = %v, want %v", err, tt.wantErr)
				}
				if dev != nil {
					t.Errorf("Build() device = %#v, want nil interface on error", dev)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build() error: %v", err)
			}
			defer dev.Close()

			if dev.Kind() != tt.wantKind {
				t.Errorf("Kind() = %q, want %q", dev.Kind(), tt.wantKind)
			}
			if dev.Name() != tt.spec.Name {
				t.Errorf("Name() = %q, want %q", dev.Name(), tt.spec.Name)
			}
		})
	}
}

func TestFactory_OutletAddressFallback(t *testing.T) {
	f := NewFactory(context.Background(), FactoryOptions{OutletAddress: "10.0.0.5:9555"})

	dev, err := f.Build(Spec{Name: "kettle", Kind: KindOutlet})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if got := dev.(*Outlet).Address(); got != "10.0.0.5:9555" {
		t.Errorf("Address() = %q, want factory default", got)
	}

	dev, err = f.Build(Spec{Name: "heater", Kind: KindOutlet, Address: "10.0.0.9:9555"})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if got := dev.(*Outlet).Address(); got != "10.0.0.9:9555" {
		t.Errorf("Address() = %q, want explicit address", got)
	}
}

func TestFactory_DefaultOutletAddress(t *testing.T) {
	f := NewFactory(context.Background(), FactoryOptions{})

	dev, err := f.Build(Spec{Name: "kettle", Kind: KindOutlet})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if got := dev.(*Outlet).Address(); got != DefaultOutletAddress {
		t.Errorf("Address() = %q, want %q", got, DefaultOutletAddress)
	}
}

func TestFactory_SensorBoundToContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := NewFactory(ctx, FactoryOptions{})

	dev, err := f.Build(Spec{Name: "thermo", Kind: KindSensor, Address: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	s := dev.(*Sensor)
	if !s.Stats().Listening {
		t.Fatalf("sensor not listening: %v", s.Err())
	}

	cancel()
	s.Close()
	if s.Stats().Listening {
		t.Error("sensor still listening after factory context cancelled")
	}
}

func TestInfoOf(t *testing.T) {
	o, err := NewOutlet(OutletOptions{Name: "lamp", Description: "desk lamp"})
	if err != nil {
		t.Fatalf("NewOutlet() error: %v", err)
	}

	got := InfoOf(o)
	want := Info{Name: "lamp", Description: "desk lamp", Kind: KindOutlet}
	if got != want {
		t.Errorf("InfoOf() = %+v, want %+v", got, want)
	}
}
