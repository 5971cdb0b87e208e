// Insteon Bridge - Insteon to MQTT gateway
//
// This is the main entry point for the Insteon bridge. It connects an
// Insteon PLM modem to an MQTT broker: device commands arrive over
// MQTT, confirmed state changes are published back, and each device's
// all-link database is mirrored into SQLite.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-insteon/internal/bridge"
	"github.com/nerrad567/gray-logic-insteon/internal/device"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/linkdb"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/plm"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/protocol"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Insteon bridge", "version", version, "commit", commit)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings and make it the slog
	// default so the protocol packages log through it too.
	log = logging.New(cfg.Logging, version)
	log.Install()
	log.Info("logger initialised", "level", cfg.Logging.Level, "format", cfg.Logging.Format)

	// Open the link database mirror store
	db, err := database.Open(database.Config{
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

	store, err := linkdb.NewSQLiteStore(db.DB)
	if err != nil {
		return fmt.Errorf("preparing link database store: %w", err)
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	var metrics bridge.MetricsWriter
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			influxClient.Close()
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		metrics = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to the PLM modem
	modem, err := plm.Dial(plm.Config{
		Connection:        cfg.Modem.Connection,
		ConnectTimeout:    cfg.GetConnectTimeout(),
		ReconnectInterval: cfg.GetReconnectInterval(),
	})
	if err != nil {
		return fmt.Errorf("connecting to modem: %w", err)
	}
	defer func() {
		log.Info("closing modem connection")
		if closeErr := modem.Close(); closeErr != nil {
			log.Error("error closing modem", "error", closeErr)
		}
	}()
	log.Info("modem connected", "connection", cfg.Modem.Connection)

	// Start the dispatch loop
	proto := protocol.New(modem)
	proto.Start()
	defer proto.Stop()

	// Build the device registry from config, loading each device's
	// link database mirror from the store.
	registry := device.NewRegistry()
	for _, dc := range cfg.Devices {
		addr, parseErr := insteon.ParseAddress(dc.Address)
		if parseErr != nil {
			return fmt.Errorf("device %q: %w", dc.Address, parseErr)
		}

		ldb := linkdb.New(addr, store)
		if loadErr := ldb.Load(ctx); loadErr != nil {
			return fmt.Errorf("loading link database for %s: %w", addr, loadErr)
		}

		registry.Add(device.New(addr, dc.Name, device.Type(dc.Type), proto, ldb))
	}
	log.Info("device registry initialised", "devices", registry.Len())

	// Wire devices to the broker
	br := bridge.New(mqttClient, registry, metrics, byte(cfg.MQTT.QoS))
	for _, dc := range cfg.Devices {
		addr, _ := insteon.ParseAddress(dc.Address)
		dev, _ := registry.Get(addr)
		if regErr := br.Register(dev, dc); regErr != nil {
			return fmt.Errorf("registering device %s: %w", addr, regErr)
		}
	}

	// Start health reporting
	health := bridge.NewHealthReporter(bridge.HealthReporterConfig{
		BridgeID:   cfg.Bridge.ID,
		Version:    version,
		Topic:      cfg.MQTT.HealthTopic,
		Interval:   cfg.GetHealthInterval(),
		Publisher:  mqttClient,
		Modem:      modem,
		Dispatcher: proto,
	})
	health.SetDeviceCount(registry.Len())
	health.Start(ctx)
	defer health.Stop()

	// Probe every device once so state and link mirrors start fresh.
	// The dispatch loop serializes the probes one at a time.
	br.RefreshAll(false)

	log.Info("Insteon bridge running")
	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses INSTEON_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("INSTEON_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
