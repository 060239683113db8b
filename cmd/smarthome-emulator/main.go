// Smart Home Emulator
//
// Runs an emulated outlet and any number of sensor feeds so the core can be
// exercised without hardware. Point outlet.default_address at the outlet
// and each sensor's address at one of the -sensor targets.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/smarthome-core/internal/emulator"
	"github.com/nerrad567/smarthome-core/internal/infrastructure/config"
	"github.com/nerrad567/smarthome-core/internal/infrastructure/logging"
)

var version = "dev"

type options struct {
	outletAddr string
	initialOn  bool
	power      float64
	sensors    string
	interval   time.Duration
	start      float64
	logLevel   string
}

func main() {
	var opts options
	flag.StringVar(&opts.outletAddr, "outlet", "127.0.0.1:9555", "outlet listen address (empty disables the outlet)")
	flag.BoolVar(&opts.initialOn, "on", false, "start with the outlet switched on")
	flag.Float64Var(&opts.power, "power", float64(emulator.DefaultPower), "reported power draw in watts")
	flag.StringVar(&opts.sensors, "sensor", "", "comma-separated sensor UDP endpoints to feed")
	flag.DurationVar(&opts.interval, "interval", 2*time.Second, "sensor reading interval")
	flag.Float64Var(&opts.start, "start", 21.5, "initial sensor temperature")
	flag.StringVar(&opts.logLevel, "log-level", "info", "log level")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	log := logging.New(config.LoggingConfig{Level: opts.logLevel, Format: "text", Output: "stdout"}, version)

	targets := splitTargets(opts.sensors)
	if opts.outletAddr == "" && len(targets) == 0 {
		return errors.New("nothing to emulate: set -outlet or -sensor")
	}
	if len(targets) > 0 && opts.interval <= 0 {
		return errors.New("-interval must be positive")
	}

	if opts.outletAddr != "" {
		outlet, err := emulator.NewOutlet(ctx, emulator.OutletOptions{
			Address:   opts.outletAddr,
			Power:     float32(opts.power),
			InitialOn: opts.initialOn,
			Logger:    log.Component("outlet"),
		})
		if err != nil {
			return fmt.Errorf("starting outlet: %w", err)
		}
		defer outlet.Close() //nolint:errcheck // Shutdown
		log.Info("outlet listening", "address", outlet.Addr(), "on", opts.initialOn)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		feed, err := emulator.NewSensorFeed(gctx, target, log.Component("sensor"))
		if err != nil {
			return fmt.Errorf("starting sensor feed: %w", err)
		}
		defer feed.Close() //nolint:errcheck // Shutdown
		log.Info("sensor feed started", "target", target, "interval", opts.interval.String())

		g.Go(func() error {
			return feed.Run(gctx, float32(opts.start), opts.interval)
		})
	}

	<-gctx.Done()
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("emulator stopped")
	return nil
}

func splitTargets(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
