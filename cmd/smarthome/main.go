// Smart Home Core
//
// This is the main entry point for the smart home core service. It builds
// the home described in the config file, polls every device, and exposes
// the registry over HTTP, WebSocket and MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/smarthome-core/internal/api"
	"github.com/nerrad567/smarthome-core/internal/bridge"
	"github.com/nerrad567/smarthome-core/internal/device"
	"github.com/nerrad567/smarthome-core/internal/history"
	"github.com/nerrad567/smarthome-core/internal/infrastructure/config"
	"github.com/nerrad567/smarthome-core/internal/infrastructure/database"
	"github.com/nerrad567/smarthome-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/smarthome-core/internal/infrastructure/logging"
	"github.com/nerrad567/smarthome-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/smarthome-core/internal/location"
	"github.com/nerrad567/smarthome-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// historyPruneInterval is how often expired history rows are deleted.
const historyPruneInterval = time.Hour

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting smarthome core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Device history (optional)
	var historyStore *history.SQLiteStore
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", cfg.Database.Path)

		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")

		historyStore = history.NewSQLiteStore(db.DB)
		go history.RunPruner(ctx, historyStore, cfg.Database.HistoryRetention, historyPruneInterval, log.Component("history"))
	} else {
		log.Info("database disabled, device history off")
	}

	// Build the home from config
	factory := device.NewFactory(ctx, device.FactoryOptions{
		OutletAddress:     cfg.Outlet.DefaultAddress,
		OutletDialTimeout: cfg.Outlet.DialTimeout,
		OutletIOTimeout:   cfg.Outlet.IOTimeout,
		Logger:            log.Component("device"),
	})

	home, err := buildHome(cfg.Home, factory, log)
	if err != nil {
		return fmt.Errorf("building home: %w", err)
	}
	defer func() {
		log.Info("closing devices")
		if closeErr := home.Close(); closeErr != nil {
			log.Error("error closing devices", "error", closeErr)
		}
	}()

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(ctx, cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the state bridge. Optional sinks are only set when present so
	// the bridge never sees a typed nil.
	bridgeOpts := bridge.Options{
		Home:           home,
		Logger:         log.Component("bridge"),
		PollInterval:   cfg.Bridge.PollInterval,
		CommandTimeout: cfg.Bridge.CommandTimeout,
	}
	if mqttClient != nil {
		bridgeOpts.MQTT = mqttClient
	}
	if influxClient != nil {
		bridgeOpts.Metrics = influxClient
	}
	if historyStore != nil {
		bridgeOpts.History = historyStore
	}
	stateBridge, err := bridge.New(bridgeOpts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	// Start the API server (optional). It registers its bridge listener in
	// New, so it is created before the bridge starts polling.
	var apiServer *api.Server
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:        cfg.API,
			WS:            cfg.WebSocket,
			Logger:        log.Component("api"),
			Home:          home,
			Factory:       factory,
			Bridge:        stateBridge,
			DeviceTimeout: cfg.Outlet.DialTimeout + cfg.Outlet.IOTimeout,
			Version:       version,
		}
		if historyStore != nil {
			deps.History = historyStore
		}
		apiServer, err = api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
	}

	if err := stateBridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		stateBridge.Stop()
	}()
	log.Info("bridge started", "poll_interval", cfg.Bridge.PollInterval.String())

	if apiServer != nil {
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"rooms", len(home.ListRoomNames()),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, bridge, InfluxDB, MQTT,
	// devices, database.

	log.Info("smarthome core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SMARTHOME_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SMARTHOME_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildHome creates the rooms and devices listed in cfg.
//
// A device that cannot be added is closed before the error is returned,
// and devices already placed are released by home.Close.
func buildHome(cfg config.HomeConfig, factory *device.Factory, log *logging.Logger) (*location.Home, error) {
	home := location.NewHome(cfg.Name)
	home.SetLogger(log.Component("home"))

	for _, rc := range cfg.Rooms {
		if _, err := home.AddRoom(location.NewRoom(rc.Name, rc.Capacity)); err != nil {
			home.Close() //nolint:errcheck // Already failing
			return nil, fmt.Errorf("room %q: %w", rc.Name, err)
		}

		for _, dc := range rc.Devices {
			kind, err := device.ParseKind(dc.Kind)
			if err != nil {
				home.Close() //nolint:errcheck // Already failing
				return nil, fmt.Errorf("room %q device %q: %w", rc.Name, dc.Name, err)
			}

			d, err := factory.Build(device.Spec{
				Name:        dc.Name,
				Description: dc.Description,
				Kind:        kind,
				Address:     dc.Address,
			})
			if err != nil {
				home.Close() //nolint:errcheck // Already failing
				return nil, fmt.Errorf("room %q device %q: %w", rc.Name, dc.Name, err)
			}

			if _, err := home.AddDevice(rc.Name, d); err != nil {
				d.Close()    //nolint:errcheck // Never registered
				home.Close() //nolint:errcheck // Already failing
				return nil, fmt.Errorf("room %q device %q: %w", rc.Name, dc.Name, err)
			}

			if src, ok := d.(interface{ Err() error }); ok && src.Err() != nil {
				log.Warn("sensor listener unavailable", "room", rc.Name, "device", dc.Name, "error", src.Err())
			}
		}

		log.Info("room created", "room", rc.Name, "capacity", rc.Capacity, "devices", len(rc.Devices))
	}

	return home, nil
}

// healthCheck verifies the enabled infrastructure connections. Nil
// arguments are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	var errs []error

	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mqtt: %w", err))
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}

	return errors.Join(errs...)
}
