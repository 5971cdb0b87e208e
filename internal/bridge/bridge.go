package bridge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nerrad567/gray-logic-insteon/internal/device"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
)

// MQTTClient is the broker surface the bridge needs. Satisfied by
// *mqtt.Client; mocked in tests.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// MetricsWriter records device telemetry. Satisfied by the InfluxDB
// client; may be nil when telemetry is disabled.
type MetricsWriter interface {
	WriteDeviceLevel(addr string, name string, level byte)
}

// Bridge wires the device registry to the broker: one command-topic
// subscription and one state-topic publisher per configured device.
//
// Thread Safety: all methods are safe for concurrent use. Command
// handlers run on the MQTT client's goroutines; the device layer
// serializes the resulting protocol work.
type Bridge struct {
	mqtt     MQTTClient
	registry *device.Registry
	metrics  MetricsWriter
	qos      byte

	// topics maps a device address to its configured topics.
	topics   map[insteon.Address]config.DeviceConfig
	topicsMu sync.RWMutex
}

// New creates a bridge over the given registry. metrics may be nil.
func New(client MQTTClient, registry *device.Registry, metrics MetricsWriter, qos byte) *Bridge {
	return &Bridge{
		mqtt:     client,
		registry: registry,
		metrics:  metrics,
		qos:      qos,
		topics:   make(map[insteon.Address]config.DeviceConfig),
	}
}

// Register hooks one device up: state changes publish to its state
// topic, and its command topic is subscribed for inbound commands.
func (b *Bridge) Register(d *device.Device, cfg config.DeviceConfig) error {
	b.topicsMu.Lock()
	b.topics[d.Addr()] = cfg
	b.topicsMu.Unlock()

	d.SetOnLevel(b.publishState)

	if err := b.mqtt.Subscribe(cfg.CommandTopic, b.qos, func(topic string, payload []byte) error {
		return b.handleCommand(d, topic, payload)
	}); err != nil {
		return fmt.Errorf("subscribing %s for %s: %w", cfg.CommandTopic, d.Addr(), err)
	}

	slog.Info("device registered",
		"addr", d.Addr(), "name", d.Name(),
		"command_topic", cfg.CommandTopic, "state_topic", cfg.StateTopic)
	return nil
}

// RefreshAll probes every registered device for state and database
// freshness. Called once at startup; the dispatch loop serializes the
// probes.
func (b *Bridge) RefreshAll(force bool) {
	for _, d := range b.registry.All() {
		d.Refresh(force)
	}
}

// handleCommand parses and executes one inbound command payload.
func (b *Bridge) handleCommand(d *device.Device, topic string, payload []byte) error {
	var cmd commandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("command on %s: %w", topic, err)
	}

	slog.Debug("command received", "addr", d.Addr(), "cmd", cmd.Cmd)

	switch cmd.Cmd {
	case CmdOn:
		level := 0xff
		if cmd.Level != nil {
			level = *cmd.Level
		}
		if level < 0 || level > 0xff {
			return fmt.Errorf("command on %s: level %d out of range", topic, level)
		}
		d.On(byte(level))

	case CmdOff:
		d.Off()

	case CmdSet:
		if cmd.Level == nil {
			return fmt.Errorf("command on %s: set requires a level", topic)
		}
		level := *cmd.Level
		if level < 0 || level > 0xff {
			return fmt.Errorf("command on %s: level %d out of range", topic, level)
		}
		if level == 0 {
			d.Off()
		} else {
			d.On(byte(level))
		}

	case CmdRefresh:
		d.Refresh(cmd.Force)

	default:
		return fmt.Errorf("command on %s: unknown command %q", topic, cmd.Cmd)
	}
	return nil
}

// publishState pushes a confirmed level to the device's state topic as
// a retained message and records the telemetry point.
func (b *Bridge) publishState(d *device.Device, level byte) {
	b.topicsMu.RLock()
	cfg, ok := b.topics[d.Addr()]
	b.topicsMu.RUnlock()
	if !ok {
		return
	}

	msg := stateMessage{
		Address:   d.Addr().String(),
		Name:      d.Name(),
		Level:     int(level),
		On:        level > 0,
		Timestamp: timestamp(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("encoding state message", "addr", d.Addr(), "error", err)
		return
	}

	if err := b.mqtt.PublishRetained(cfg.StateTopic, payload); err != nil {
		slog.Warn("publishing state", "addr", d.Addr(), "topic", cfg.StateTopic, "error", err)
	}

	if b.metrics != nil {
		b.metrics.WriteDeviceLevel(d.Addr().String(), d.Name(), level)
	}
}
