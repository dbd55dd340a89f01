package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for drmemd. All configuration
// is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Location     LocationConfig     `yaml:"location"`
	Logging      LoggingConfig      `yaml:"logging"`
	Backend      BackendConfig      `yaml:"backend"`
	ClientServer ClientServerConfig `yaml:"client_server"`
	StatusAPI    StatusAPIConfig    `yaml:"status_api"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	Drivers      []DriverConfig     `yaml:"driver"`
	Logic        []LogicConfig      `yaml:"logic"`
}

// LocationConfig carries the latitude/longitude the logic engine's solar
// built-ins (spec §4.5) are computed against. Optional: solar fields
// simply read as flat/unavailable when unset.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// LoggingConfig selects the daemon's log level/format/destination. Level
// is one of warn/info/debug/trace per spec §6.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// BackendConfig selects and configures the fabric's storage backend
// (spec §4.2): "ephemeral" or "durable".
type BackendConfig struct {
	Driver  string        `yaml:"driver"`
	Durable DurableConfig `yaml:"durable"`
}

// DurableConfig configures the durable backend's two halves: a SQLite
// latest-value store and an InfluxDB bounded history stream.
type DurableConfig struct {
	Addr     string         `yaml:"addr"`
	Port     int            `yaml:"port"`
	Database int            `yaml:"database"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
}

// SQLiteConfig contains the durable backend's SQLite connection settings.
type SQLiteConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains the durable backend's history-stream settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// ClientServerConfig is the listen address of the out-of-scope external
// client protocol server. No protocol logic lives here; drmemd only needs
// to know whether to bind a port for it.
type ClientServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// StatusAPIConfig is the ambient read-only debug HTTP surface
// (internal/statusapi), distinct from ClientServerConfig.
type StatusAPIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// MQTTConfig contains broker connection settings consumed only by the
// mqttsensor example driver.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	QoS       int                 `yaml:"qos"`
}

// MQTTBrokerConfig identifies the broker to connect to.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig holds broker credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds the paho client's auto-reconnect backoff,
// in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay_seconds"`
	MaxDelay     int `yaml:"max_delay_seconds"`
}

// DriverConfig is one repeated `driver` section: a factory key, the
// device-name prefix for the instance it creates, and a cfg sub-table
// passed verbatim to the factory (spec §6).
type DriverConfig struct {
	Name   string         `yaml:"name"`
	Prefix string         `yaml:"prefix"`
	Cfg    map[string]any `yaml:"cfg"`
}

// LogicConfig is one repeated `logic` section (spec §4.5/§6).
type LogicConfig struct {
	Label   string            `yaml:"label"`
	Inputs  map[string]string `yaml:"inputs"`
	Outputs map[string]string `yaml:"outputs"`
	Defs    map[string]string `yaml:"defs"`
	Exprs   []string          `yaml:"exprs"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// Loading order: defaults -> YAML file -> environment -> Validate().
// Environment variables follow the pattern DRMEMD_SECTION_KEY.
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

func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Backend: BackendConfig{
			Driver: "ephemeral",
			Durable: DurableConfig{
				SQLite: SQLiteConfig{
					Path:        "./data/drmemd.db",
					WALMode:     true,
					BusyTimeout: 5,
				},
			},
		},
		StatusAPI: StatusAPIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8000,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "drmemd",
			},
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			QoS: 1,
		},
	}
}

// applyEnvOverrides applies DRMEMD_SECTION_KEY overrides on top of the
// file-loaded configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DRMEMD_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DRMEMD_BACKEND_DURABLE_SQLITE_PATH"); v != "" {
		cfg.Backend.Durable.SQLite.Path = v
	}
	if v := os.Getenv("DRMEMD_BACKEND_DURABLE_INFLUXDB_TOKEN"); v != "" {
		cfg.Backend.Durable.InfluxDB.Token = v
	}
	if v := os.Getenv("DRMEMD_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DRMEMD_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DRMEMD_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
}

// Validate checks the configuration against spec §6's shape.
func (c *Config) Validate() error {
	var errs []string

	switch c.Logging.Level {
	case "warn", "info", "debug", "trace":
	default:
		errs = append(errs, fmt.Sprintf("logging.level must be warn/info/debug/trace, got %q", c.Logging.Level))
	}

	switch c.Backend.Driver {
	case "ephemeral":
	case "durable":
		if c.Backend.Durable.SQLite.Path == "" {
			errs = append(errs, "backend.durable.sqlite.path is required when backend.driver is durable")
		}
		if c.Backend.Durable.InfluxDB.Enabled {
			if c.Backend.Durable.InfluxDB.URL == "" || c.Backend.Durable.InfluxDB.Bucket == "" {
				errs = append(errs, "backend.durable.influxdb.url and .bucket are required when influxdb is enabled")
			}
		}
	default:
		errs = append(errs, fmt.Sprintf("backend.driver must be ephemeral or durable, got %q", c.Backend.Driver))
	}

	seenPrefixes := make(map[string]bool)
	for i, d := range c.Drivers {
		if d.Name == "" {
			errs = append(errs, fmt.Sprintf("driver[%d].name is required", i))
		}
		if d.Prefix == "" {
			errs = append(errs, fmt.Sprintf("driver[%d].prefix is required", i))
		} else if seenPrefixes[d.Prefix] {
			errs = append(errs, fmt.Sprintf("driver[%d].prefix %q reused by an earlier driver", i, d.Prefix))
		} else {
			seenPrefixes[d.Prefix] = true
		}
	}

	outputOwners := make(map[string]int)
	for i, l := range c.Logic {
		for local, dev := range l.Outputs {
			if prior, ok := outputOwners[dev]; ok {
				errs = append(errs, fmt.Sprintf("logic[%d] output %q (%s) already written by logic[%d]", i, local, dev, prior))
			} else {
				outputOwners[dev] = i
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
