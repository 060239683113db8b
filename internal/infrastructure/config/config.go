package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// maxRoomCapacity mirrors the registry's per-room slot limit.
const maxRoomCapacity = 256

// Config is the root configuration structure for the smart home core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Home      HomeConfig      `yaml:"home"`
	Outlet    OutletConfig    `yaml:"outlet"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HomeConfig describes the home and the rooms and devices created at startup.
type HomeConfig struct {
	Name  string       `yaml:"name"`
	Rooms []RoomConfig `yaml:"rooms"`
}

// RoomConfig describes one room.
type RoomConfig struct {
	Name     string         `yaml:"name"`
	Capacity int            `yaml:"capacity"`
	Devices  []DeviceConfig `yaml:"devices"`
}

// DeviceConfig describes one device.
type DeviceConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Kind is "outlet" or "sensor".
	Kind string `yaml:"kind"`

	// Address is the outlet's TCP endpoint or the sensor's UDP listen endpoint.
	// Outlets without an address use outlet.default_address. Sensors without
	// an address never receive readings.
	Address string `yaml:"address"`
}

// OutletConfig contains defaults applied to every outlet.
type OutletConfig struct {
	DefaultAddress string        `yaml:"default_address"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	IOTimeout      time.Duration `yaml:"io_timeout"`
}

// DatabaseConfig contains SQLite database settings for the reading history.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetention is how long history rows are kept. Zero keeps them forever.
	HistoryRetention time.Duration `yaml:"history_retention"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// BridgeConfig contains settings for the loop that publishes device state.
type BridgeConfig struct {
	// PollInterval is how often every device's state is read.
	PollInterval time.Duration `yaml:"poll_interval"`

	// CommandTimeout bounds an outlet command received over MQTT.
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SMARTHOME_SECTION_KEY
// For example: SMARTHOME_DATABASE_PATH, SMARTHOME_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Home: HomeConfig{
			Name: "Home",
		},
		Outlet: OutletConfig{
			DefaultAddress: "127.0.0.1:9555",
			DialTimeout:    3 * time.Second,
			IOTimeout:      5 * time.Second,
		},
		Database: DatabaseConfig{
			Enabled:          true,
			Path:             "./data/smarthome.db",
			WALMode:          true,
			BusyTimeout:      5,
			HistoryRetention: 30 * 24 * time.Hour,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "smarthome-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Bridge: BridgeConfig{
			PollInterval:   5 * time.Second,
			CommandTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SMARTHOME_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Home
	if v := os.Getenv("SMARTHOME_HOME_NAME"); v != "" {
		cfg.Home.Name = v
	}

	// Outlet
	if v := os.Getenv("SMARTHOME_OUTLET_ADDRESS"); v != "" {
		cfg.Outlet.DefaultAddress = v
	}

	// Database
	if v := os.Getenv("SMARTHOME_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SMARTHOME_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SMARTHOME_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SMARTHOME_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("SMARTHOME_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SMARTHOME_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("SMARTHOME_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("SMARTHOME_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors. All problems are reported together.
func (c *Config) Validate() error {
	var errs []string

	// Home validation
	if strings.TrimSpace(c.Home.Name) == "" {
		errs = append(errs, "home.name is required")
	}
	errs = append(errs, c.validateRooms()...)

	// Outlet validation
	if c.Outlet.DialTimeout < 0 || c.Outlet.IOTimeout < 0 {
		errs = append(errs, "outlet timeouts must not be negative")
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Bridge validation
	if c.Bridge.PollInterval <= 0 {
		errs = append(errs, "bridge.poll_interval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) validateRooms() []string {
	var errs []string
	rooms := make(map[string]bool, len(c.Home.Rooms))

	for i, r := range c.Home.Rooms {
		if strings.TrimSpace(r.Name) == "" {
			errs = append(errs, fmt.Sprintf("home.rooms[%d].name is required", i))
			continue
		}
		if rooms[r.Name] {
			errs = append(errs, fmt.Sprintf("home.rooms: duplicate room name %q", r.Name))
		}
		rooms[r.Name] = true

		if r.Capacity < 0 || r.Capacity > maxRoomCapacity {
			errs = append(errs, fmt.Sprintf("room %q: capacity must be between 0 and %d", r.Name, maxRoomCapacity))
		}
		if len(r.Devices) > r.Capacity {
			errs = append(errs, fmt.Sprintf("room %q: %d devices exceed capacity %d", r.Name, len(r.Devices), r.Capacity))
		}

		devices := make(map[string]bool, len(r.Devices))
		for j, d := range r.Devices {
			if strings.TrimSpace(d.Name) == "" {
				errs = append(errs, fmt.Sprintf("room %q: devices[%d].name is required", r.Name, j))
				continue
			}
			if devices[d.Name] {
				errs = append(errs, fmt.Sprintf("room %q: duplicate device name %q", r.Name, d.Name))
			}
			devices[d.Name] = true

			switch strings.ToLower(d.Kind) {
			case "outlet", "sensor":
			default:
				errs = append(errs, fmt.Sprintf("room %q: device %q has unknown kind %q", r.Name, d.Name, d.Kind))
			}
		}
	}

	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
