package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Insteon bridge.
// All configuration is loaded from YAML and can be overridden by
// environment variables.
type Config struct {
	Bridge   BridgeConfig   `yaml:"bridge"`
	Modem    ModemConfig    `yaml:"modem"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Devices  []DeviceConfig `yaml:"devices"`
}

// BridgeConfig identifies this bridge instance.
type BridgeConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ModemConfig contains PLM connection settings.
type ModemConfig struct {
	// Connection is "tcp://host:port" or a serial device path.
	Connection string `yaml:"connection"`

	// ConnectTimeout is the connection timeout in seconds.
	ConnectTimeout int `yaml:"connect_timeout"`

	// ReconnectInterval is the initial reconnect delay in seconds.
	ReconnectInterval int `yaml:"reconnect_interval"`
}

// DatabaseConfig contains SQLite database settings for the link
// database mirrors.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// StatusTopic is where online/offline status (and the LWT) goes.
	StatusTopic string `yaml:"status_topic"`

	// HealthTopic is where periodic bridge health reports go.
	HealthTopic string `yaml:"health_topic"`

	// HealthInterval is the seconds between health reports.
	HealthInterval int `yaml:"health_interval"`
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
}

// InfluxDBConfig contains settings for device telemetry history.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DeviceConfig describes one Insteon device the bridge manages. Topic
// strings are given verbatim; nothing is derived from them.
type DeviceConfig struct {
	// Address is the device address in "aa.bb.cc" form.
	Address string `yaml:"address"`

	Name string `yaml:"name"`

	// Type is "dimmer" or "switch".
	Type string `yaml:"type"`

	// StateTopic receives retained state updates.
	StateTopic string `yaml:"state_topic"`

	// CommandTopic is subscribed for on/off/set/refresh commands.
	CommandTopic string `yaml:"command_topic"`
}

// Load reads, layers and validates the configuration at path.
func Load(path string) (*Config, error) {
	// Start with defaults
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
		Bridge: BridgeConfig{
			ID:   "insteon-001",
			Name: "Insteon Bridge",
		},
		Modem: ModemConfig{
			Connection:        "/dev/insteon",
			ConnectTimeout:    10,
			ReconnectInterval: 5,
		},
		Database: DatabaseConfig{
			Path:        "./data/insteon.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "insteon-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			StatusTopic:    "insteon/system/status",
			HealthTopic:    "insteon/system/health",
			HealthInterval: 30,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides.
// Environment variables follow the pattern: INSTEON_SECTION_KEY.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INSTEON_MODEM_CONNECTION"); v != "" {
		cfg.Modem.Connection = v
	}
	if v := os.Getenv("INSTEON_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("INSTEON_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("INSTEON_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("INSTEON_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("INSTEON_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Modem.Connection == "" {
		errs = append(errs, "modem.connection is required")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set INSTEON_INFLUXDB_TOKEN)")
		}
	}

	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		prefix := fmt.Sprintf("devices[%d]", i)
		if d.Address == "" {
			errs = append(errs, prefix+".address is required")
		} else if seen[d.Address] {
			errs = append(errs, prefix+".address duplicates "+d.Address)
		} else {
			seen[d.Address] = true
		}
		if d.StateTopic == "" {
			errs = append(errs, prefix+".state_topic is required")
		}
		if d.CommandTopic == "" {
			errs = append(errs, prefix+".command_topic is required")
		}
		switch d.Type {
		case "", "dimmer", "switch":
		default:
			errs = append(errs, prefix+`.type must be "dimmer" or "switch"`)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetConnectTimeout returns the modem connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.Modem.ConnectTimeout) * time.Second
}

// GetReconnectInterval returns the modem reconnect interval as a
// Duration.
func (c *Config) GetReconnectInterval() time.Duration {
	return time.Duration(c.Modem.ReconnectInterval) * time.Second
}

// GetHealthInterval returns the health report interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.MQTT.HealthInterval) * time.Second
}
