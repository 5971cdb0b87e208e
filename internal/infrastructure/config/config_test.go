package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes a temporary config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const validConfig = `
bridge:
  id: test-bridge
modem:
  connection: tcp://localhost:9761
mqtt:
  broker:
    host: broker.local
    port: 1883
devices:
  - address: 48.3d.9f
    name: Hall Dimmer
    type: dimmer
    state_topic: insteon/hall/state
    command_topic: insteon/hall/set
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Bridge.ID != "test-bridge" {
		t.Errorf("Bridge.ID = %q", cfg.Bridge.ID)
	}
	if cfg.Modem.Connection != "tcp://localhost:9761" {
		t.Errorf("Modem.Connection = %q", cfg.Modem.Connection)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q", cfg.MQTT.Broker.Host)
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0].CommandTopic != "insteon/hall/set" {
		t.Errorf("Devices = %+v", cfg.Devices)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MQTT.QoS != 1 {
		t.Errorf("default QoS = %d, want 1", cfg.MQTT.QoS)
	}
	if cfg.MQTT.StatusTopic != "insteon/system/status" {
		t.Errorf("default StatusTopic = %q", cfg.MQTT.StatusTopic)
	}
	if cfg.MQTT.HealthTopic != "insteon/system/health" {
		t.Errorf("default HealthTopic = %q", cfg.MQTT.HealthTopic)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("default logging = %+v", cfg.Logging)
	}
	if got := cfg.GetConnectTimeout().Seconds(); got != 10 {
		t.Errorf("default connect timeout = %vs", got)
	}
	if got := cfg.GetHealthInterval().Seconds(); got != 30 {
		t.Errorf("default health interval = %vs", got)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("INSTEON_MODEM_CONNECTION", "serial:///dev/ttyUSB1")
	t.Setenv("INSTEON_MQTT_HOST", "env.broker.local")
	t.Setenv("INSTEON_MQTT_PASSWORD", "hunter2")

	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Modem.Connection != "serial:///dev/ttyUSB1" {
		t.Errorf("Modem.Connection = %q, env override lost", cfg.Modem.Connection)
	}
	if cfg.MQTT.Broker.Host != "env.broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, env override lost", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Auth.Password != "hunter2" {
		t.Error("MQTT password env override lost")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load of missing file succeeded")
	}
}

func TestLoadBadYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "bridge: [unclosed")); err == nil {
		t.Fatal("Load of malformed YAML succeeded")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			"missing bridge id",
			func(c *Config) { c.Bridge.ID = "" },
			"bridge.id",
		},
		{
			"missing modem connection",
			func(c *Config) { c.Modem.Connection = "" },
			"modem.connection",
		},
		{
			"bad qos",
			func(c *Config) { c.MQTT.QoS = 3 },
			"mqtt.qos",
		},
		{
			"bad port",
			func(c *Config) { c.MQTT.Broker.Port = 0 },
			"mqtt.broker.port",
		},
		{
			"influx enabled without url",
			func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Token = "t" },
			"influxdb.url",
		},
		{
			"device missing address",
			func(c *Config) { c.Devices[0].Address = "" },
			"devices[0].address",
		},
		{
			"device missing state topic",
			func(c *Config) { c.Devices[0].StateTopic = "" },
			"state_topic",
		},
		{
			"device missing command topic",
			func(c *Config) { c.Devices[0].CommandTopic = "" },
			"command_topic",
		},
		{
			"device bad type",
			func(c *Config) { c.Devices[0].Type = "thermostat" },
			"type",
		},
		{
			"duplicate device address",
			func(c *Config) { c.Devices = append(c.Devices, c.Devices[0]) },
			"duplicates",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Devices = []DeviceConfig{{
				Address:      "48.3d.9f",
				Type:         "dimmer",
				StateTopic:   "insteon/a/state",
				CommandTopic: "insteon/a/set",
			}}
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate passed, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}
